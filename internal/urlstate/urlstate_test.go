package urlstate

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, raw string) *Store {
	t.Helper()
	q, err := ParseQuery(raw)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewStore(q, ResultsViewProperties, logger)
}

func TestQuery_EmptyIsDistinctFromAbsent(t *testing.T) {
	q, err := ParseQuery("?clinicallist=&show_samples=false")
	require.NoError(t, err)

	v, ok := q.Get(KeyClinicalList)
	assert.True(t, ok)
	assert.Equal(t, "", v)

	_, ok = q.Get(KeyHeatmapTrackGroups)
	assert.False(t, ok)
	assert.Equal(t, "false", q.Value(KeyShowSamples))
}

func TestQuery_MergeDoesNotMutate(t *testing.T) {
	q := NewQuery(map[string]string{"a": "1", "b": "2"})
	next := q.Merge(map[string]string{"a": "3", "c": "4"}, "b")

	assert.Equal(t, "1", q.Value("a"))
	assert.True(t, q.Has("b"))
	assert.Equal(t, map[string]string{"a": "3", "c": "4"}, next.Map())
	assert.Equal(t, "a=3&c=4", next.Encode())
}

func TestResolveProperties_Aliases(t *testing.T) {
	raw := NewQuery(map[string]string{
		"cancer_study_id": "brca_tcga",
		"genetic_profile_ids_PROFILE_MUTATION_EXTENDED": "brca_tcga_mutations",
		"unknown_param": "x",
	})

	q := ResolveProperties(raw, ResultsViewProperties)

	assert.Equal(t, "brca_tcga", q.Value(KeyCancerStudyList))
	assert.Equal(t, "brca_tcga_mutations", q.Value(KeyGeneticProfileIDs))
	assert.False(t, q.Has("unknown_param"))
}

func TestResolveProperties_CanonicalWins(t *testing.T) {
	raw := NewQuery(map[string]string{
		"cancer_study_list": "luad_tcga",
		"cancer_study_id":   "brca_tcga",
	})

	q := ResolveProperties(raw, ResultsViewProperties)
	assert.Equal(t, "luad_tcga", q.Value(KeyCancerStudyList))
}

func TestStore_UpdateRoute(t *testing.T) {
	s := newTestStore(t, "cancer_study_list=brca_tcga&show_samples=true")
	require.Equal(t, uint64(1), s.Version())

	changed := s.UpdateRoute(map[string]string{KeyShowSamples: "false"})
	assert.True(t, changed)
	assert.Equal(t, uint64(2), s.Version())
	assert.Equal(t, "false", s.Query().Value(KeyShowSamples))

	changed = s.UpdateRoute(map[string]string{KeyShowSamples: "false"})
	assert.False(t, changed, "identical update must be dropped")
	assert.Equal(t, uint64(2), s.Version())

	s.UpdateRoute(nil, KeyShowSamples)
	assert.False(t, s.Query().Has(KeyShowSamples))
	assert.Equal(t, "brca_tcga", s.Query().Value(KeyCancerStudyList))
}

func TestStore_SnapshotsAreImmutable(t *testing.T) {
	s := newTestStore(t, "gene_list=TP53")
	before := s.Query()

	s.UpdateRoute(map[string]string{KeyGeneList: "KRAS"})

	assert.Equal(t, "TP53", before.Value(KeyGeneList))
	assert.Equal(t, "KRAS", s.Query().Value(KeyGeneList))
}

func TestStore_Subscribe(t *testing.T) {
	s := newTestStore(t, "")
	ch, cancel := s.Subscribe()

	s.UpdateRoute(map[string]string{KeySortBy: "case_id"})
	s.UpdateRoute(map[string]string{KeySortBy: "case_list"})

	// Only the latest version is kept for a slow subscriber.
	assert.Equal(t, uint64(3), <-ch)

	cancel()
	_, open := <-ch
	assert.False(t, open)

	assert.NotPanics(t, func() { s.UpdateRoute(map[string]string{KeySortBy: "data"}) })
}

func TestStore_SessionPropsAndReplace(t *testing.T) {
	s := newTestStore(t, "cancer_study_list=brca_tcga&gene_list=TP53+KRAS&show_samples=false&oncoprint_sortby=case_id")

	props := s.SessionProps()
	assert.Equal(t, map[string]string{
		KeyCancerStudyList: "brca_tcga",
		KeyGeneList:        "TP53 KRAS",
	}, props)

	changed := s.Replace(NewQuery(props))
	assert.True(t, changed)
	assert.False(t, s.Query().Has(KeySortBy))
	assert.False(t, s.Query().Has(KeyShowSamples))
	assert.Equal(t, "TP53 KRAS", s.Query().Value(KeyGeneList))
}

func TestParseHeatmapTrackGroups(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []HeatmapGroupParam
	}{
		{
			name: "two groups",
			raw:  "brca_mrna,TP53,KRAS;brca_treatment_ic50,17-AAG",
			want: []HeatmapGroupParam{
				{MolecularProfileID: "brca_mrna", Entities: []string{"TP53", "KRAS"}},
				{MolecularProfileID: "brca_treatment_ic50", Entities: []string{"17-AAG"}},
			},
		},
		{
			name: "malformed groups are ignored",
			raw:  ",TP53;brca_mrna;;brca_rppa,AKT1,,AKT1",
			want: []HeatmapGroupParam{
				{MolecularProfileID: "brca_rppa", Entities: []string{"AKT1"}},
			},
		},
		{
			name: "repeated profile keeps position",
			raw:  "a,X;b,Y;a,Z",
			want: []HeatmapGroupParam{
				{MolecularProfileID: "a", Entities: []string{"Z"}},
				{MolecularProfileID: "b", Entities: []string{"Y"}},
			},
		},
		{name: "empty", raw: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseHeatmapTrackGroups(tt.raw))
		})
	}
}

func TestHeatmapTrackGroups_RoundTrip(t *testing.T) {
	groups := []HeatmapGroupParam{
		{MolecularProfileID: "brca_mrna", Entities: []string{"TP53", "KRAS", "EGFR"}},
		{MolecularProfileID: "brca_treatment_ic50", Entities: []string{"17-AAG", "AEW541"}},
	}

	encoded := EncodeHeatmapTrackGroups(groups)
	assert.Equal(t, "brca_mrna,TP53,KRAS,EGFR;brca_treatment_ic50,17-AAG,AEW541", encoded)

	decoded := ParseHeatmapTrackGroups(encoded)
	require.Len(t, decoded, len(groups))
	for i := range groups {
		assert.Equal(t, groups[i].MolecularProfileID, decoded[i].MolecularProfileID)
		assert.ElementsMatch(t, groups[i].Entities, decoded[i].Entities)
	}

	assert.Equal(t, encoded, EncodeHeatmapTrackGroups(decoded))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList("  ", ","))
	assert.Equal(t, []string{"A", "B"}, SplitList(" A, ,B ", ","))
}
