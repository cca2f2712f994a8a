package urlstate

// Query parameter names read and written by the results view.
const (
	KeyCancerStudyList    = "cancer_study_list"
	KeyCaseSetID          = "case_set_id"
	KeyCaseIDs            = "case_ids"
	KeyGeneList           = "gene_list"
	KeyGenesetList        = "geneset_list"
	KeyTreatmentList      = "treatment_list"
	KeyGeneticProfileIDs  = "genetic_profile_ids"
	KeyZScoreThreshold    = "Z_SCORE_THRESHOLD"
	KeyRPPAScoreThreshold = "RPPA_SCORE_THRESHOLD"

	KeyShowSamples        = "show_samples"
	KeyClinicalList       = "clinicallist"
	KeyHeatmapTrackGroups = "heatmap_track_groups"
	KeySortBy             = "oncoprint_sortby"
	KeyClusterProfile     = "oncoprint_cluster_profile"
	KeySortByMutationType = "oncoprint_sort_by_mutation_type"
	KeySortByDrivers      = "oncoprint_sort_by_drivers"
)

// Property describes one recognised query parameter. Aliases are older names that are read
// when the canonical name is absent. Session properties are the ones saved in bookmarks.
type Property struct {
	Name          string
	IsSessionProp bool
	Aliases       []string
}

// ResultsViewProperties lists the parameters of the results view.
var ResultsViewProperties = []Property{
	{Name: KeyCancerStudyList, IsSessionProp: true, Aliases: []string{"cancer_study_id"}},
	{Name: KeyCaseSetID, IsSessionProp: true},
	{Name: KeyCaseIDs, IsSessionProp: true},
	{Name: KeyGeneList, IsSessionProp: true},
	{Name: KeyGenesetList, IsSessionProp: true},
	{Name: KeyTreatmentList, IsSessionProp: true},
	{Name: KeyGeneticProfileIDs, IsSessionProp: true, Aliases: []string{
		"genetic_profile_ids_PROFILE_MUTATION_EXTENDED",
		"genetic_profile_ids_PROFILE_COPY_NUMBER_ALTERATION",
		"genetic_profile_ids_PROFILE_MRNA_EXPRESSION",
		"genetic_profile_ids_PROFILE_PROTEIN_EXPRESSION",
	}},
	{Name: KeyZScoreThreshold, IsSessionProp: true},
	{Name: KeyRPPAScoreThreshold, IsSessionProp: true},
	{Name: KeyShowSamples, IsSessionProp: false},
	{Name: KeyClinicalList, IsSessionProp: false},
	{Name: KeyHeatmapTrackGroups, IsSessionProp: false},
	{Name: KeySortBy, IsSessionProp: false},
	{Name: KeyClusterProfile, IsSessionProp: false},
	{Name: KeySortByMutationType, IsSessionProp: false},
	{Name: KeySortByDrivers, IsSessionProp: false},
}

// ResolveProperties projects raw parameters onto the property table: unknown keys are
// dropped and a missing canonical name is filled from the first non-empty alias.
func ResolveProperties(raw Query, props []Property) Query {
	out := make(map[string]string, len(props))
	for _, p := range props {
		if v, ok := raw.Get(p.Name); ok {
			out[p.Name] = v
			continue
		}
		for _, alias := range p.Aliases {
			if v, ok := raw.Get(alias); ok && v != "" {
				out[p.Name] = v
				break
			}
		}
	}
	return Query{values: out}
}
