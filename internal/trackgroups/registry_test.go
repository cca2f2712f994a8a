package trackgroups

import (
	"testing"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	urls     *urlstate.Store
	registry *Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.registry, s.urls = newRegistry(s.T(), "")
}

func newRegistry(t *testing.T, raw string) (*Registry, *urlstate.Store) {
	t.Helper()
	q, err := urlstate.ParseQuery(raw)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	urls := urlstate.NewStore(q, urlstate.ResultsViewProperties, logger)
	registry := NewRegistry(urls, logger)
	registry.SetProfiles([]domain.MolecularProfile{
		{MolecularProfileID: "A", MolecularAlterationType: domain.MRNAExpression},
		{MolecularProfileID: "B", MolecularAlterationType: domain.ProteinLevel},
		{MolecularProfileID: "T", MolecularAlterationType: domain.GenericAssay},
		{MolecularProfileID: "M", MolecularAlterationType: domain.MutationExtended},
	})
	return registry, urls
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (s *RegistryTestSuite) TestIndexStabilityAcrossRemoveAndReAdd() {
	s.Require().NoError(s.registry.AddTracks("A", []string{"TP53"}))
	s.Require().NoError(s.registry.AddTracks("B", []string{"AKT1"}))

	idxA, ok := s.registry.IndexOf(s.urls.Query(), "A")
	s.True(ok)
	s.Equal(2, idxA)
	idxB, _ := s.registry.IndexOf(s.urls.Query(), "B")
	s.Equal(3, idxB)

	s.Require().NoError(s.registry.AddTracks("A", nil))
	_, ok = s.registry.IndexOf(s.urls.Query(), "A")
	s.False(ok, "emptied group must be deleted")

	s.Require().NoError(s.registry.AddTracks("A", []string{"KRAS"}))
	idxA, ok = s.registry.IndexOf(s.urls.Query(), "A")
	s.True(ok)
	s.Equal(2, idxA)

	groups := s.registry.Groups(s.urls.Query())
	s.Require().Len(groups, 2)
	s.Equal("A", groups[0].MolecularProfileID)
	s.Equal([]string{"KRAS"}, groups[0].Entities)
}

func (s *RegistryTestSuite) TestAddTracksWritesCanonicalEncoding() {
	s.Require().NoError(s.registry.AddTracks("A", []string{"TP53", " KRAS", "TP53", ""}))
	s.Require().NoError(s.registry.AddTracks("B", []string{"AKT1"}))
	s.Require().NoError(s.registry.AddTracks("A", []string{"EGFR"}))

	s.Equal("A,EGFR;B,AKT1", s.urls.Query().Value(urlstate.KeyHeatmapTrackGroups))
}

func (s *RegistryTestSuite) TestTreatmentProjection() {
	s.Require().NoError(s.registry.AddTracks("T", []string{"17-AAG", "AEW541"}))
	s.Equal("17-AAG;AEW541", s.urls.Query().Value(urlstate.KeyTreatmentList))

	s.Require().NoError(s.registry.AddTracks("A", []string{"TP53"}))
	s.Equal("17-AAG;AEW541", s.urls.Query().Value(urlstate.KeyTreatmentList))

	removed, err := s.registry.RemoveTrack("T", "17-AAG")
	s.Require().NoError(err)
	s.False(removed)
	s.Equal("AEW541", s.urls.Query().Value(urlstate.KeyTreatmentList))

	removed, err = s.registry.RemoveTrack("T", "AEW541")
	s.Require().NoError(err)
	s.True(removed)
	s.False(s.urls.Query().Has(urlstate.KeyTreatmentList))
}

func (s *RegistryTestSuite) TestClear() {
	s.Require().NoError(s.registry.AddTracks("A", []string{"TP53"}))
	s.Require().NoError(s.registry.AddTracks("T", []string{"17-AAG"}))

	s.registry.Clear()

	s.Empty(s.registry.Groups(s.urls.Query()))
	s.False(s.urls.Query().Has(urlstate.KeyHeatmapTrackGroups))
	s.False(s.urls.Query().Has(urlstate.KeyTreatmentList))
}

func (s *RegistryTestSuite) TestUnknownOrNonHeatmapProfile() {
	s.ErrorIs(s.registry.AddTracks("missing", []string{"TP53"}), ErrUnknownProfile)
	s.ErrorIs(s.registry.AddTracks("M", []string{"TP53"}), ErrUnknownProfile)

	removed, err := s.registry.RemoveTrack("A", "TP53")
	s.NoError(err)
	s.False(removed)
}

func (s *RegistryTestSuite) TestIndexForSharesTheSideTable() {
	s.Require().NoError(s.registry.AddTracks("A", []string{"TP53"}))
	s.Equal(3, s.registry.IndexFor("geneset:gsva"))
	s.Require().NoError(s.registry.AddTracks("B", []string{"AKT1"}))

	idxB, _ := s.registry.IndexOf(s.urls.Query(), "B")
	s.Equal(4, idxB)
	s.Equal(3, s.registry.IndexFor("geneset:gsva"))
}

func TestGroups_FromBookmarkedURL(t *testing.T) {
	registry, urls := newRegistry(t, "heatmap_track_groups=B,AKT1;unknown,X;A,TP53,KRAS;M,TP53")

	groups := registry.Groups(urls.Query())
	require.Len(t, groups, 2)
	assert.Equal(t, Group{TrackGroupIndex: 2, MolecularAlterationType: domain.ProteinLevel, MolecularProfileID: "B", Entities: []string{"AKT1"}}, groups[0])
	assert.Equal(t, Group{TrackGroupIndex: 3, MolecularAlterationType: domain.MRNAExpression, MolecularProfileID: "A", Entities: []string{"TP53", "KRAS"}}, groups[1])
}

func TestGroups_URLRoundTrip(t *testing.T) {
	registry, urls := newRegistry(t, "")
	require.NoError(t, registry.AddTracks("A", []string{"TP53", "KRAS"}))
	require.NoError(t, registry.AddTracks("T", []string{"17-AAG"}))
	original := registry.Groups(urls.Query())

	restored, restoredURLs := newRegistry(t, urls.Query().Encode())
	groups := restored.Groups(restoredURLs.Query())

	require.Len(t, groups, len(original))
	for i := range original {
		assert.Equal(t, original[i].MolecularProfileID, groups[i].MolecularProfileID)
		assert.ElementsMatch(t, original[i].Entities, groups[i].Entities)
	}
}
