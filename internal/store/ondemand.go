package store

import (
	"context"
	"fmt"

	"github.com/oncoprint-server/internal/domain"
)

// HeatmapData fetches the values of entities in a heatmap profile for the loaded samples of
// the profile's study. Entities are gene symbols, generic assay stable ids or gene set ids
// depending on the profile type.
func (s *ResultsViewStore) HeatmapData(ctx context.Context, profile domain.MolecularProfile, entities []string) ([]domain.MolecularDatum, error) {
	snap := s.Snapshot()
	if !snap.Samples.IsComplete() {
		return nil, fmt.Errorf("%w: samples", domain.ErrNotReady)
	}
	sampleIDs := snap.SampleIDsByStudy()[profile.StudyID]
	if len(sampleIDs) == 0 || len(entities) == 0 {
		return []domain.MolecularDatum{}, nil
	}

	switch profile.MolecularAlterationType {
	case domain.GenericAssay:
		return s.portal.FetchGenericAssayData(ctx, profile.MolecularProfileID, sampleIDs, entities)
	case domain.GenesetScore:
		return s.portal.FetchGenesetScores(ctx, profile.MolecularProfileID, sampleIDs, entities)
	}

	genes, err := s.portal.FetchGenes(ctx, entities)
	if err != nil {
		return nil, fmt.Errorf("resolve heatmap genes: %w", err)
	}
	entrezIDs := make([]int, 0, len(genes))
	for _, g := range genes {
		entrezIDs = append(entrezIDs, g.EntrezGeneID)
	}
	if len(entrezIDs) == 0 {
		return []domain.MolecularDatum{}, nil
	}
	return s.portal.FetchMolecularData(ctx, profile.MolecularProfileID, sampleIDs, entrezIDs)
}

// ClinicalData fetches the values of one upstream clinical attribute for the loaded cases.
// Patient attributes are requested once per distinct patient.
func (s *ResultsViewStore) ClinicalData(ctx context.Context, attr domain.ClinicalAttribute) ([]domain.ClinicalDatum, error) {
	snap := s.Snapshot()
	if !snap.Samples.IsComplete() {
		return nil, fmt.Errorf("%w: samples", domain.ErrNotReady)
	}
	samples := snap.Samples.MustValue()
	if len(samples) == 0 {
		return []domain.ClinicalDatum{}, nil
	}

	var ids []domain.SampleIdentifier
	if attr.PatientAttribute {
		for _, p := range PatientsOf(samples) {
			ids = append(ids, domain.SampleIdentifier{StudyID: p.StudyID, SampleID: p.PatientID})
		}
	} else {
		for _, sample := range samples {
			ids = append(ids, domain.SampleIdentifier{StudyID: sample.StudyID, SampleID: sample.SampleID})
		}
	}
	return s.portal.FetchClinicalData(ctx, ids, []string{attr.ClinicalAttributeID}, attr.PatientAttribute)
}
