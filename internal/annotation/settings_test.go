package annotation

import (
	"errors"
	"testing"

	"github.com/oncoprint-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettings(t *testing.T, oncoKBEnabled bool) (*Settings, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	cfg := domain.AnnotationConfig{
		OncoKB:                   domain.AnnotationSourceConfig{Enabled: oncoKBEnabled},
		Hotspots:                 domain.AnnotationSourceConfig{Enabled: true},
		COSMIC:                   domain.AnnotationSourceConfig{Enabled: true},
		CBioPortalCountThreshold: 10,
		COSMICCountThreshold:     5,
	}
	return NewSettings(cfg, logger), hook
}

func TestNewSettings_EnablesAvailableSources(t *testing.T) {
	s, _ := newSettings(t, false)
	snap := s.Snapshot()

	assert.False(t, snap.OncoKB, "globally disabled source stays off")
	assert.True(t, snap.Hotspots)
	assert.True(t, snap.CBioPortalCount)
	assert.True(t, snap.COSMICCount)
	assert.True(t, snap.CustomBinary)
	assert.True(t, snap.DistinguishDrivers())
	assert.True(t, snap.DistinguishMutationType)
	assert.Equal(t, 10, snap.CBioPortalCountThreshold)
}

func TestSetDistinguishDrivers_Cascade(t *testing.T) {
	s, _ := newSettings(t, true)
	s.SetAvailableTiers([]string{"Tier2", "Tier1"})
	s.SetHideVUS(true)

	s.SetDistinguishDrivers(false)
	off := s.Snapshot()
	assert.False(t, off.DistinguishDrivers())
	assert.False(t, off.HideVUS)
	assert.Equal(t, map[string]bool{"Tier1": false, "Tier2": false}, off.Tiers)

	s.MarkErrored(SourceHotspots, errors.New("connection refused"))
	s.SetDistinguishDrivers(true)
	on := s.Snapshot()
	assert.True(t, on.OncoKB)
	assert.False(t, on.Hotspots, "errored source is not re-enabled")
	assert.True(t, on.CBioPortalCount)
	assert.True(t, on.COSMICCount)
	assert.True(t, on.CustomBinary)
	assert.Equal(t, map[string]bool{"Tier1": true, "Tier2": true}, on.Tiers)
	assert.Equal(t, []string{"Tier1", "Tier2"}, s.AvailableTiers())
}

func TestMarkErrored(t *testing.T) {
	s, hook := newSettings(t, true)

	assert.True(t, s.MarkErrored(SourceOncoKB, errors.New("timeout")))
	assert.False(t, s.MarkErrored(SourceOncoKB, errors.New("timeout")))

	snap := s.Snapshot()
	assert.False(t, snap.OncoKB)
	assert.True(t, snap.Errored[SourceOncoKB])
	assert.False(t, s.SetOncoKB(true), "errored source cannot be re-enabled")

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, SourceOncoKB, hook.LastEntry().Data["source"])
}

func TestMarkDisabled(t *testing.T) {
	s, _ := newSettings(t, true)

	assert.True(t, s.MarkDisabled(SourceHotspots))
	assert.False(t, s.MarkDisabled(SourceHotspots))

	snap := s.Snapshot()
	assert.False(t, snap.Hotspots)
	assert.True(t, snap.GloballyDisabled[SourceHotspots])
	assert.False(t, snap.Errored[SourceHotspots])
	assert.False(t, s.SetHotspots(true))

	s.SetDistinguishDrivers(false)
	s.SetDistinguishDrivers(true)
	assert.False(t, s.Snapshot().Hotspots)
	assert.True(t, s.Snapshot().OncoKB)
}

func TestThresholdSettersEnableSource(t *testing.T) {
	s, _ := newSettings(t, true)
	s.SetCBioPortalCount(false)
	s.SetCOSMICCount(false)

	assert.True(t, s.SetCBioPortalCountThreshold(3))
	assert.True(t, s.SetCOSMICCountThreshold(7))

	snap := s.Snapshot()
	assert.True(t, snap.CBioPortalCount)
	assert.Equal(t, 3, snap.CBioPortalCountThreshold)
	assert.True(t, snap.COSMICCount)
	assert.Equal(t, 7, snap.COSMICCountThreshold)
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newSettings(t, true)
	s.SetAvailableTiers([]string{"Tier1"})
	snap := s.Snapshot()

	s.SetTier("Tier1", false)

	assert.True(t, snap.Tiers["Tier1"])
	assert.False(t, s.Snapshot().Tiers["Tier1"])
}

func TestIsPutativeDriver(t *testing.T) {
	m := domain.MutationEvent{
		EventHeader:     domain.EventHeader{HugoGeneSymbol: "KRAS"},
		ProteinChange:   "G12D",
		Keyword:         "KRAS G12 missense",
		Chromosome:      "12",
		StartPosition:   25398284,
		ProteinPosStart: 12,
	}
	none := domain.MutationAnnotations{}

	tests := []struct {
		name string
		snap Snapshot
		ann  domain.MutationAnnotations
		mut  domain.MutationEvent
		want bool
	}{
		{
			name: "oncokb call",
			snap: Snapshot{OncoKB: true},
			ann:  domain.MutationAnnotations{OncoKB: map[string]bool{m.Key(): true}},
			mut:  m,
			want: true,
		},
		{
			name: "oncokb call ignored when source off",
			snap: Snapshot{Hotspots: true},
			ann:  domain.MutationAnnotations{OncoKB: map[string]bool{m.Key(): true}},
			mut:  m,
			want: false,
		},
		{
			name: "hotspot",
			snap: Snapshot{Hotspots: true},
			ann:  domain.MutationAnnotations{Hotspots: map[string]bool{m.Key(): true}},
			mut:  m,
			want: true,
		},
		{
			name: "cbioportal count at threshold",
			snap: Snapshot{CBioPortalCount: true, CBioPortalCountThreshold: 10},
			ann:  domain.MutationAnnotations{CBioPortalCounts: map[string]int{m.PositionKey(): 10}},
			mut:  m,
			want: true,
		},
		{
			name: "cbioportal count below threshold",
			snap: Snapshot{CBioPortalCount: true, CBioPortalCountThreshold: 10},
			ann:  domain.MutationAnnotations{CBioPortalCounts: map[string]int{m.PositionKey(): 9}},
			mut:  m,
			want: false,
		},
		{
			name: "cosmic count",
			snap: Snapshot{COSMICCount: true, COSMICCountThreshold: 5},
			ann:  domain.MutationAnnotations{COSMICCounts: map[string]int{domain.COSMICKey("KRAS", "KRAS G12 missense"): 120}},
			mut:  m,
			want: true,
		},
		{
			name: "zero count never qualifies",
			snap: Snapshot{COSMICCount: true, COSMICCountThreshold: 0},
			ann:  none,
			mut:  m,
			want: false,
		},
		{
			name: "custom binary",
			snap: Snapshot{CustomBinary: true},
			ann:  none,
			mut:  domain.MutationEvent{DriverFilter: PutativeDriver},
			want: true,
		},
		{
			name: "selected tier",
			snap: Snapshot{Tiers: map[string]bool{"Class 1": true}},
			ann:  none,
			mut:  domain.MutationEvent{DriverTiersFilter: "Class 1"},
			want: true,
		},
		{
			name: "deselected tier",
			snap: Snapshot{Tiers: map[string]bool{"Class 1": false}},
			ann:  none,
			mut:  domain.MutationEvent{DriverTiersFilter: "Class 1"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.IsPutativeDriver(tt.mut, tt.ann))
		})
	}
}
