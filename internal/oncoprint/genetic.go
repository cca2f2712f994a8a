package oncoprint

import (
	"github.com/oncoprint-server/internal/domain"
)

// DriverPredicate reports whether a mutation is a putative driver.
type DriverPredicate func(domain.MutationEvent) bool

var cnaLabels = map[int]string{
	-2: "homdel",
	-1: "hetloss",
	1:  "gain",
	2:  "amp",
}

// CNALabel returns the display label of a discrete copy number call; diploid and unknown
// values have none.
func CNALabel(value int) (string, bool) {
	label, ok := cnaLabels[value]
	return label, ok
}

func regulationLabel(direction int) string {
	if direction > 0 {
		return "up"
	}
	return "down"
}

// FillGeneticTrackDatum sets the contributing events and the derived display fields of datum.
func FillGeneticTrackDatum(datum *domain.GeneticTrackDatum, gene string, events []domain.AlterationEvent, isDriver DriverPredicate) {
	datum.Gene = gene
	datum.Data = events

	cnaCounts := make(map[string]int)
	mrnaCounts := make(map[string]int)
	protCounts := make(map[string]int)
	mutCounts := make(map[string]int)
	fusion := false

	for _, event := range events {
		switch e := event.(type) {
		case domain.CNAEvent:
			if label, ok := CNALabel(e.Value); ok {
				cnaCounts[label]++
			}
		case domain.ContinuousEvent:
			if e.RegulationDirection == 0 {
				continue
			}
			switch e.Kind {
			case domain.MRNAExpression:
				mrnaCounts[regulationLabel(e.RegulationDirection)]++
			case domain.ProteinLevel:
				protCounts[regulationLabel(e.RegulationDirection)]++
			}
		case domain.MutationEvent:
			bucket := OncoprintMutationType(SimplifiedMutationType(e.MutationType))
			if bucket == BucketFusion {
				fusion = true
				continue
			}
			if isDriver != nil && isDriver(e) {
				bucket += driverSuffix
			}
			mutCounts[bucket]++
		}
	}

	datum.DispFusion = fusion
	datum.DispCNA, _ = SelectDisplayValue(cnaCounts, CNARenderPriority)
	datum.DispMRNA, _ = SelectDisplayValue(mrnaCounts, MRNARenderPriority)
	datum.DispProt, _ = SelectDisplayValue(protCounts, ProteinRenderPriority)
	datum.DispMut, _ = SelectDisplayValue(mutCounts, MutationRenderPriority)
}

// CaseCoverageState looks up whether gene was profiled for the case. A case without any panel
// information is CoverageUnknown; a case with panel information that lists no profiling of
// gene is CoverageNotProfiled.
func CaseCoverageState(coverage map[string]domain.CaseCoverage, uid, gene string) (domain.CoverageState, []domain.GenePanelDatum) {
	c, ok := coverage[uid]
	if !ok {
		return domain.CoverageUnknown, nil
	}
	panels := make([]domain.GenePanelDatum, 0, len(c.ByGene[gene])+len(c.AllGenes))
	panels = append(panels, c.ByGene[gene]...)
	panels = append(panels, c.AllGenes...)
	for _, p := range panels {
		if p.Profiled {
			return domain.CoverageProfiled, panels
		}
	}
	return domain.CoverageNotProfiled, panels
}

// MakeGeneticTrackData builds one datum per case for gene, in case order.
func MakeGeneticTrackData(
	caseData map[string][]domain.AlterationEvent,
	gene string,
	cases []domain.CaseRef,
	coverage map[string]domain.CaseCoverage,
	isDriver DriverPredicate,
) []domain.GeneticTrackDatum {
	if len(cases) == 0 {
		return []domain.GeneticTrackDatum{}
	}
	data := make([]domain.GeneticTrackDatum, 0, len(cases))
	for _, c := range cases {
		datum := domain.GeneticTrackDatum{CaseRef: c}
		datum.CoverageState, datum.Coverage = CaseCoverageState(coverage, c.UID, gene)
		datum.NA = datum.CoverageState == domain.CoverageNotProfiled
		FillGeneticTrackDatum(&datum, gene, caseData[c.UID], isDriver)
		data = append(data, datum)
	}
	return data
}

// HidePassengers drops mutations that are not putative drivers. Other events are kept.
func HidePassengers(events []domain.AlterationEvent, isDriver DriverPredicate) []domain.AlterationEvent {
	if isDriver == nil {
		return events
	}
	out := make([]domain.AlterationEvent, 0, len(events))
	for _, event := range events {
		if m, ok := event.(domain.MutationEvent); ok && !isDriver(m) {
			continue
		}
		out = append(out, event)
	}
	return out
}
