package store

import (
	"github.com/oncoprint-server/internal/domain"
)

// BuildCoverage indexes gene panel data by case. panelGenes maps a gene panel id to the
// symbols it targets; only genes in queried are indexed. Samples without any gene panel row
// get no entry, which keeps their coverage unknown rather than unprofiled.
func BuildCoverage(
	rows []domain.GenePanelData,
	panelGenes map[string][]string,
	queried []string,
	samples []domain.Sample,
) domain.CoverageInformation {
	wanted := make(map[string]bool, len(queried))
	for _, g := range queried {
		wanted[g] = true
	}

	info := domain.CoverageInformation{
		Samples:  make(map[string]domain.CaseCoverage),
		Patients: make(map[string]domain.CaseCoverage),
	}
	for _, row := range rows {
		cov, ok := info.Samples[row.UniqueSampleKey]
		if !ok {
			cov = domain.CaseCoverage{ByGene: make(map[string][]domain.GenePanelDatum)}
		}
		datum := domain.GenePanelDatum{
			MolecularProfileID: row.MolecularProfileID,
			GenePanelID:        row.GenePanelID,
			Profiled:           row.Profiled,
		}
		switch {
		case !row.Profiled || row.GenePanelID == "":
			cov.AllGenes = append(cov.AllGenes, datum)
		default:
			for _, gene := range panelGenes[row.GenePanelID] {
				if wanted[gene] {
					cov.ByGene[gene] = append(cov.ByGene[gene], datum)
				}
			}
		}
		info.Samples[row.UniqueSampleKey] = cov
	}

	// a patient is covered by the union of its samples
	for _, sample := range samples {
		sc, ok := info.Samples[sample.UniqueSampleKey]
		if !ok {
			continue
		}
		pc, ok := info.Patients[sample.UniquePatientKey]
		if !ok {
			pc = domain.CaseCoverage{ByGene: make(map[string][]domain.GenePanelDatum)}
		}
		for gene, panels := range sc.ByGene {
			pc.ByGene[gene] = append(pc.ByGene[gene], panels...)
		}
		pc.AllGenes = append(pc.AllGenes, sc.AllGenes...)
		info.Patients[sample.UniquePatientKey] = pc
	}
	return info
}

// AggregateByOQL partitions the events accepted by each OQL line by sample and by patient.
func AggregateByOQL(lines []OQLLine, events []domain.AlterationEvent) []domain.CaseAggregatedData {
	out := make([]domain.CaseAggregatedData, 0, len(lines))
	for _, line := range lines {
		agg := domain.CaseAggregatedData{
			Gene:     line.Gene,
			OQLLine:  line.Text,
			Samples:  make(map[string][]domain.AlterationEvent),
			Patients: make(map[string][]domain.AlterationEvent),
		}
		for _, event := range events {
			h := event.Header()
			if h.HugoGeneSymbol != line.Gene || !line.Accepts(event) {
				continue
			}
			agg.Samples[h.UniqueSampleKey] = append(agg.Samples[h.UniqueSampleKey], event)
			agg.Patients[h.UniquePatientKey] = append(agg.Patients[h.UniquePatientKey], event)
		}
		out = append(out, agg)
	}
	return out
}
