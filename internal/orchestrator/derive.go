package orchestrator

import (
	"sort"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/oncoprint"
	"github.com/oncoprint-server/internal/remote"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/internal/urlstate"
)

// URL values of the sort selector.
const (
	sortByCaseID   = "case_id"
	sortByCaseList = "case_list"
	sortByCluster  = "cluster"
)

// genesetGroupKey reserves the track group index of the gene set heatmap of a profile.
func genesetGroupKey(molecularProfileID string) string {
	return "geneset:" + molecularProfileID
}

// ColumnModeOf reads the column mode from the URL. Only an explicit "false" selects patients.
func ColumnModeOf(q urlstate.Query) domain.ColumnMode {
	if q.Value(urlstate.KeyShowSamples) == "false" {
		return domain.ColumnModePatient
	}
	return domain.ColumnModeSample
}

// SortModeOf reads the sort mode from the URL, defaulting to data.
func SortModeOf(q urlstate.Query) domain.SortMode {
	switch q.Value(urlstate.KeySortBy) {
	case sortByCaseID:
		return domain.SortMode{Type: domain.SortAlphabetical}
	case sortByCaseList:
		return domain.SortMode{Type: domain.SortByCaseList}
	case sortByCluster:
		if profile := q.Value(urlstate.KeyClusterProfile); profile != "" {
			return domain.SortMode{Type: domain.SortByHeatmapCluster, ClusteredHeatmapProfile: profile}
		}
	}
	return domain.SortMode{Type: domain.SortByData}
}

// flagOf reads a boolean URL flag that is on unless set to "false".
func flagOf(q urlstate.Query, key string) bool {
	return q.Value(key) != "false"
}

// SelectedClinicalAttributeIDs honours an explicit clinicallist, even an empty one. Without
// one, the defaults are inferred once studies, cases and genetic profiles are known.
func SelectedClinicalAttributeIDs(q urlstate.Query, snap store.Snapshot) remote.Result[[]string] {
	if raw, ok := q.Get(urlstate.KeyClinicalList); ok {
		ids := urlstate.SplitList(raw, ",")
		if ids == nil {
			ids = []string{}
		}
		return remote.Complete(ids)
	}
	deps := []remote.Awaitable{snap.Studies, snap.Samples, snap.Patients, snap.SelectedProfiles}
	return remote.Derive(deps, func() ([]string, error) {
		profiles := snap.SelectedProfiles.MustValue()
		profiled := make([]string, 0, len(profiles))
		for _, p := range profiles {
			profiled = append(profiled, p.MolecularProfileID)
		}
		return oncoprint.DefaultClinicalAttributeIDs(
			len(snap.Studies.MustValue()),
			len(snap.Samples.MustValue()),
			len(snap.Patients.MustValue()),
			profiled,
		), nil
	})
}

// casesOf returns the oncoprint columns of the mode in load order.
func casesOf(mode domain.ColumnMode, snap store.Snapshot) remote.Result[[]domain.CaseRef] {
	if mode == domain.ColumnModePatient {
		return remote.Map(snap.Patients, domain.PatientRefs)
	}
	return remote.Map(snap.Samples, domain.SampleRefs)
}

// alphabeticalOrder sorts columns by case id, then by uid across studies.
func alphabeticalOrder(cases []domain.CaseRef) []string {
	sorted := append([]domain.CaseRef(nil), cases...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if a, b := sorted[i].CaseID(), sorted[j].CaseID(); a != b {
			return a < b
		}
		return sorted[i].UID < sorted[j].UID
	})
	out := make([]string, len(sorted))
	for i, c := range sorted {
		out[i] = c.UID
	}
	return out
}

// caseListOrder follows the queried case ids or the case set, then any remaining samples in
// load order. In patient mode a patient takes the position of its first sample.
func caseListOrder(mode domain.ColumnMode, snap store.Snapshot) []string {
	samples := snap.Samples.ValueOr(nil)
	byID := make(map[domain.SampleIdentifier]domain.Sample, len(samples))
	for _, s := range samples {
		byID[domain.SampleIdentifier{StudyID: s.StudyID, SampleID: s.SampleID}] = s
	}

	ids := snap.Request.CaseIDs
	if len(ids) == 0 {
		if list := snap.CaseSet.ValueOr(nil); list != nil {
			for _, id := range list.SampleIDs {
				ids = append(ids, domain.SampleIdentifier{StudyID: list.StudyID, SampleID: id})
			}
		}
	}
	ordered := make([]domain.Sample, 0, len(samples))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	ordered = append(ordered, samples...)

	seen := make(map[string]bool, len(ordered))
	out := make([]string, 0, len(samples))
	for _, s := range ordered {
		key := s.UniqueSampleKey
		if mode == domain.ColumnModePatient {
			key = s.UniquePatientKey
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

// partitionAltered splits the columns into those with at least one altered genetic datum and
// the rest, both in case order.
func partitionAltered(cases []domain.CaseRef, tracks []domain.GeneticTrackSpec) (altered, unaltered []string) {
	hit := make(map[string]bool)
	for _, t := range tracks {
		for _, d := range t.Data {
			if d.Altered() {
				hit[d.UID] = true
			}
		}
	}
	altered, unaltered = []string{}, []string{}
	for _, c := range cases {
		if hit[c.UID] {
			altered = append(altered, c.UID)
		} else {
			unaltered = append(unaltered, c.UID)
		}
	}
	return altered, unaltered
}

// sequencedCount counts the columns profiled for any gene. Columns without panel information
// count as sequenced.
func sequencedCount(cases []domain.CaseRef, coverage map[string]domain.CaseCoverage) int {
	n := 0
	for _, c := range cases {
		cov, ok := coverage[c.UID]
		if !ok || profiledAnywhere(cov) {
			n++
		}
	}
	return n
}

func profiledAnywhere(c domain.CaseCoverage) bool {
	for _, d := range c.AllGenes {
		if d.Profiled {
			return true
		}
	}
	for _, panels := range c.ByGene {
		for _, d := range panels {
			if d.Profiled {
				return true
			}
		}
	}
	return false
}

// trackInfo is the percentage of profiled columns altered in one genetic track.
func trackInfo(data []domain.GeneticTrackDatum) string {
	altered, sequenced := 0, 0
	for _, d := range data {
		if d.NA {
			continue
		}
		sequenced++
		if d.Altered() {
			altered++
		}
	}
	return oncoprint.PercentAltered(altered, sequenced)
}

// genesetProfile returns the gene set score profile of the query, if any.
func genesetProfile(profiles []domain.MolecularProfile) (domain.MolecularProfile, bool) {
	for _, p := range profiles {
		if p.MolecularAlterationType == domain.GenesetScore {
			return p, true
		}
	}
	return domain.MolecularProfile{}, false
}

// heatmapProfiles lists the profiles offered in the heatmap menu.
func heatmapProfiles(profiles []domain.MolecularProfile) []domain.MolecularProfile {
	out := []domain.MolecularProfile{}
	for _, p := range profiles {
		if p.MolecularAlterationType.IsHeatmapType() {
			out = append(out, p)
		}
	}
	return out
}
