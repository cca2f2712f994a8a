package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/portaltest"
	"github.com/oncoprint-server/internal/remote"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOncoKB struct {
	mock.Mock
}

func (m *MockOncoKB) AnnotateOncogenic(ctx context.Context, mutations []domain.MutationEvent) (map[string]bool, error) {
	args := m.Called(ctx, mutations)
	res, _ := args.Get(0).(map[string]bool)
	return res, args.Error(1)
}

type MockCOSMIC struct {
	mock.Mock
}

func (m *MockCOSMIC) CountCOSMIC(ctx context.Context, mutations []domain.MutationEvent) (map[string]int, error) {
	args := m.Called(ctx, mutations)
	res, _ := args.Get(0).(map[string]int)
	return res, args.Error(1)
}

func fixtureRequest(genes string) Request {
	return Request{
		StudyIDs:      []string{portaltest.StudyID},
		OQLLines:      ParseGeneList(genes),
		MRNAZScore:    2,
		ProteinZScore: 2,
	}
}

func loadFixture(t *testing.T, portal *portaltest.Portal, annotators Annotators, req Request) *ResultsViewStore {
	t.Helper()
	logger, _ := test.NewNullLogger()
	s := NewResultsViewStore(portal, annotators, logger)
	t.Cleanup(s.Close)
	require.True(t, s.Load(context.Background(), req))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	return s
}

func eventCount(m map[string][]domain.AlterationEvent) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = len(v)
	}
	return out
}

func TestResultsViewStore_Load(t *testing.T) {
	oncokb := new(MockOncoKB)
	oncokb.On("AnnotateOncogenic", mock.Anything, mock.Anything).Return(map[string]bool{"TP53|R273H|17|7577120": true}, nil)
	cosmic := new(MockCOSMIC)
	cosmic.On("CountCOSMIC", mock.Anything, mock.Anything).Return(nil, errors.New("COSMIC unavailable"))

	s := loadFixture(t, portaltest.NewFixture(), Annotators{OncoKB: oncokb, COSMIC: cosmic}, fixtureRequest("TP53 KRAS"))
	snap := s.Snapshot()

	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Samples.MustValue(), 4)
	assert.Len(t, snap.Patients.MustValue(), 3)
	assert.Equal(t, "All samples", snap.CaseSet.MustValue().Name)

	selected := snap.SelectedProfiles.MustValue()
	require.Len(t, selected, 2)
	assert.Equal(t, portaltest.MutationProfile, selected[0].MolecularProfileID)
	assert.Equal(t, portaltest.CNAProfile, selected[1].MolecularProfileID)

	agg := snap.CaseAggregatedData.MustValue()
	require.Len(t, agg, 2)
	assert.Equal(t, "TP53", agg[0].Gene)
	assert.Equal(t, map[string]int{"acc_tcga:S1": 1, "acc_tcga:S2": 1, "acc_tcga:S3": 1}, eventCount(agg[0].Samples))
	assert.Equal(t, map[string]int{"acc_tcga:P1": 2, "acc_tcga:P2": 1}, eventCount(agg[0].Patients))
	assert.Equal(t, map[string]int{"acc_tcga:S3": 1, "acc_tcga:S4": 1}, eventCount(agg[1].Samples), "diploid calls are dropped")

	assert.Len(t, snap.Mutations.MustValue(), 3)
	assert.Equal(t, CustomDriverInfo{HasBinary: true, Tiers: []string{"Tier 1"}}, snap.CustomDrivers.MustValue())

	coverage := snap.Coverage.MustValue()
	s4 := coverage.Samples["acc_tcga:S4"]
	require.Len(t, s4.ByGene["KRAS"], 1)
	assert.Equal(t, portaltest.TargetedPanel, s4.ByGene["KRAS"][0].GenePanelID)
	assert.Empty(t, s4.ByGene["TP53"])
	assert.Len(t, coverage.Patients["acc_tcga:P1"].AllGenes, 4, "patients take the union of their samples")

	assert.Equal(t, map[string]bool{"TP53|R273H|17|7577120": true}, snap.OncoKB.MustValue())
	assert.ErrorIs(t, snap.Hotspots.Err(), ErrSourceDisabled)
	assert.True(t, snap.COSMICCounts.IsError())
	assert.Equal(t, map[string]int{"TP53|273": 50, "TP53|196": 4, "KRAS|12": 200}, snap.CBioPortalCounts.MustValue())

	ann := snap.Annotations()
	assert.True(t, ann.OncoKB["TP53|R273H|17|7577120"])
	assert.Nil(t, ann.COSMICCounts)
	oncokb.AssertExpectations(t)
	cosmic.AssertExpectations(t)
}

func TestResultsViewStore_SameRequestIsNotReloaded(t *testing.T) {
	portal := portaltest.NewFixture()
	s := loadFixture(t, portal, Annotators{}, fixtureRequest("TP53"))
	calls := portal.Calls("FetchMutations")

	assert.False(t, s.Load(context.Background(), fixtureRequest("TP53")))
	assert.Equal(t, calls, portal.Calls("FetchMutations"))
	assert.Equal(t, uint64(1), s.Snapshot().Generation)
}

func TestResultsViewStore_NewRequestSupersedesRunningLoad(t *testing.T) {
	portal := portaltest.NewFixture()
	portal.Gate = make(chan struct{})
	logger, _ := test.NewNullLogger()
	s := NewResultsViewStore(portal, Annotators{}, logger)
	defer s.Close()

	require.True(t, s.Load(context.Background(), fixtureRequest("TP53")))
	assert.True(t, s.Snapshot().Samples.IsPending())
	require.True(t, s.Load(context.Background(), fixtureRequest("KRAS")))
	close(portal.Gate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Generation)
	agg := snap.CaseAggregatedData.MustValue()
	require.Len(t, agg, 1)
	assert.Equal(t, "KRAS", agg[0].Gene)
}

func TestResultsViewStore_FailurePropagates(t *testing.T) {
	portal := portaltest.NewFixture()
	portal.Errors = map[string]error{"FetchMutations": errors.New("upstream 500")}

	s := loadFixture(t, portal, Annotators{}, fixtureRequest("TP53"))
	snap := s.Snapshot()

	assert.True(t, snap.Samples.IsComplete())
	assert.True(t, snap.CaseAggregatedData.IsError())
	assert.Contains(t, snap.CaseAggregatedData.Err().Error(), "upstream 500")
	assert.True(t, snap.OncoKB.IsError())
	assert.True(t, snap.CBioPortalCounts.IsError())
}

func TestResultsViewStore_CaseSelection(t *testing.T) {
	t.Run("case set", func(t *testing.T) {
		req := fixtureRequest("TP53")
		req.CaseSetID = portaltest.StudyID + "_sequenced"
		s := loadFixture(t, portaltest.NewFixture(), Annotators{}, req)
		assert.Len(t, s.Snapshot().Samples.MustValue(), 2)
		assert.Equal(t, "Sequenced samples", s.Snapshot().CaseSet.MustValue().Name)
	})

	t.Run("explicit case ids", func(t *testing.T) {
		req := fixtureRequest("TP53")
		req.CaseIDs = []domain.SampleIdentifier{{StudyID: portaltest.StudyID, SampleID: "S4"}}
		s := loadFixture(t, portaltest.NewFixture(), Annotators{}, req)
		snap := s.Snapshot()
		assert.Len(t, snap.Samples.MustValue(), 1)
		assert.Nil(t, snap.CaseSet.MustValue())
	})

	t.Run("unknown case set", func(t *testing.T) {
		req := fixtureRequest("TP53")
		req.CaseSetID = portaltest.StudyID + "_missing"
		s := loadFixture(t, portaltest.NewFixture(), Annotators{}, req)
		snap := s.Snapshot()
		assert.True(t, snap.Samples.IsError())
		assert.True(t, snap.Patients.IsError())
		assert.True(t, snap.CaseAggregatedData.IsError())
	})
}

func TestResultsViewStore_ExplicitProfiles(t *testing.T) {
	req := fixtureRequest("TP53")
	req.ProfileIDs = []string{portaltest.MRNAProfile}
	s := loadFixture(t, portaltest.NewFixture(), Annotators{}, req)

	agg := s.Snapshot().CaseAggregatedData.MustValue()
	require.Len(t, agg, 1)
	events := agg[0].Samples["acc_tcga:S4"]
	require.Len(t, events, 1)
	e, ok := events[0].(domain.ContinuousEvent)
	require.True(t, ok)
	assert.Equal(t, 1, e.RegulationDirection)
	assert.Empty(t, agg[0].Samples["acc_tcga:S1"], "values below the threshold are not alterations")
}

func TestResultsViewStore_Subscribe(t *testing.T) {
	portal := portaltest.NewFixture()
	logger, _ := test.NewNullLogger()
	s := NewResultsViewStore(portal, Annotators{}, logger)
	defer s.Close()

	ch, cancel := s.Subscribe()
	s.Load(context.Background(), fixtureRequest("TP53"))

	select {
	case v := <-ch:
		assert.Greater(t, v, uint64(0))
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
	cancel()
	_, open := <-ch
	for open {
		_, open = <-ch
	}
}

func TestResultsViewStore_OnDemand(t *testing.T) {
	portal := portaltest.NewFixture()
	logger, _ := test.NewNullLogger()
	empty := NewResultsViewStore(portal, Annotators{}, logger)
	_, err := empty.HeatmapData(context.Background(), domain.MolecularProfile{}, []string{"TP53"})
	assert.ErrorIs(t, err, domain.ErrNotReady)

	s := loadFixture(t, portal, Annotators{}, fixtureRequest("TP53"))
	profiles := s.Snapshot().MolecularProfiles.MustValue()
	byID := make(map[string]domain.MolecularProfile)
	for _, p := range profiles {
		byID[p.MolecularProfileID] = p
	}

	rows, err := s.HeatmapData(context.Background(), byID[portaltest.TreatmentProfile], []string{"17-AAG"})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 1, portal.Calls("FetchGenericAssayData"))

	rows, err = s.HeatmapData(context.Background(), byID[portaltest.MRNAProfile], []string{"TP53", "KRAS"})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	clinical, err := s.ClinicalData(context.Background(), domain.ClinicalAttribute{ClinicalAttributeID: "AGE", PatientAttribute: true})
	require.NoError(t, err)
	assert.Len(t, clinical, 3)

	clinical, err = s.ClinicalData(context.Background(), domain.ClinicalAttribute{ClinicalAttributeID: "SAMPLE_TYPE"})
	require.NoError(t, err)
	assert.Len(t, clinical, 4)
}

func TestPatientsOf(t *testing.T) {
	samples := portaltest.NewFixture().Samples
	patients := PatientsOf(samples)
	require.Len(t, patients, 3)
	assert.Equal(t, "P1", patients[0].PatientID)
	assert.Equal(t, remote.StatusComplete, remote.Complete(patients).Status())
}
