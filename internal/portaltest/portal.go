// Package portaltest provides an in-memory portal for tests of the packages that load
// results view data.
package portaltest

import (
	"context"
	"fmt"
	"sync"

	"github.com/oncoprint-server/internal/domain"
)

// Portal is an in-memory domain.PortalClient. Fill the exported fields before use; they
// must not be modified while requests are in flight.
type Portal struct {
	Studies            []domain.Study
	SampleLists        map[string]*domain.SampleList
	Samples            []domain.Sample
	Profiles           []domain.MolecularProfile
	Genes              []domain.Gene
	Mutations          []domain.MutationEvent
	MolecularData      []domain.MolecularDatum
	ClinicalAttributes []domain.ClinicalAttribute
	ClinicalData       []domain.ClinicalDatum
	GenePanelData      []domain.GenePanelData
	GenePanels         []domain.GenePanel
	PositionCounts     []domain.MutationPositionCount

	// Errors makes the named method fail, e.g. Errors["FetchMutations"].
	Errors map[string]error
	// Gate, when set, blocks every request until it is closed or the context ends.
	Gate chan struct{}
	// Gates blocks the named method until its channel is closed, e.g. Gates["FetchMutations"].
	Gates map[string]chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

// Calls returns how often method was invoked.
func (p *Portal) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Portal) enter(ctx context.Context, method string) error {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[method]++
	p.mu.Unlock()

	for _, gate := range []chan struct{}{p.Gate, p.Gates[method]} {
		if gate == nil {
			continue
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Errors[method]
}

func set[T comparable](values []T) map[T]bool {
	out := make(map[T]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}

func (p *Portal) FetchStudies(ctx context.Context, studyIDs []string) ([]domain.Study, error) {
	if err := p.enter(ctx, "FetchStudies"); err != nil {
		return nil, err
	}
	wanted := set(studyIDs)
	out := []domain.Study{}
	for _, s := range p.Studies {
		if wanted[s.StudyID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Portal) GetSampleList(ctx context.Context, sampleListID string) (*domain.SampleList, error) {
	if err := p.enter(ctx, "GetSampleList"); err != nil {
		return nil, err
	}
	list, ok := p.SampleLists[sampleListID]
	if !ok {
		return nil, fmt.Errorf("sample list %s not found", sampleListID)
	}
	return list, nil
}

func (p *Portal) FetchSamples(ctx context.Context, ids []domain.SampleIdentifier) ([]domain.Sample, error) {
	if err := p.enter(ctx, "FetchSamples"); err != nil {
		return nil, err
	}
	wanted := set(ids)
	out := []domain.Sample{}
	for _, s := range p.Samples {
		if wanted[domain.SampleIdentifier{StudyID: s.StudyID, SampleID: s.SampleID}] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (p *Portal) FetchMolecularProfiles(ctx context.Context, studyIDs []string) ([]domain.MolecularProfile, error) {
	if err := p.enter(ctx, "FetchMolecularProfiles"); err != nil {
		return nil, err
	}
	wanted := set(studyIDs)
	out := []domain.MolecularProfile{}
	for _, mp := range p.Profiles {
		if wanted[mp.StudyID] {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (p *Portal) FetchGenes(ctx context.Context, hugoGeneSymbols []string) ([]domain.Gene, error) {
	if err := p.enter(ctx, "FetchGenes"); err != nil {
		return nil, err
	}
	wanted := set(hugoGeneSymbols)
	out := []domain.Gene{}
	for _, g := range p.Genes {
		if wanted[g.HugoGeneSymbol] {
			out = append(out, g)
		}
	}
	return out, nil
}

func (p *Portal) FetchMutations(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]domain.MutationEvent, error) {
	if err := p.enter(ctx, "FetchMutations"); err != nil {
		return nil, err
	}
	samples, genes := set(sampleIDs), set(entrezGeneIDs)
	out := []domain.MutationEvent{}
	for _, m := range p.Mutations {
		if m.MolecularProfileID == molecularProfileID && samples[m.SampleID] && genes[m.EntrezGeneID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (p *Portal) entrezOf(symbol string) int {
	for _, g := range p.Genes {
		if g.HugoGeneSymbol == symbol {
			return g.EntrezGeneID
		}
	}
	return 0
}

func (p *Portal) FetchMolecularData(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]domain.MolecularDatum, error) {
	if err := p.enter(ctx, "FetchMolecularData"); err != nil {
		return nil, err
	}
	samples, genes := set(sampleIDs), set(entrezGeneIDs)
	out := []domain.MolecularDatum{}
	for _, d := range p.MolecularData {
		if d.MolecularProfileID == molecularProfileID && samples[d.SampleID] && genes[p.entrezOf(d.EntityID)] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Portal) entityData(ctx context.Context, method, molecularProfileID string, sampleIDs, entityIDs []string) ([]domain.MolecularDatum, error) {
	if err := p.enter(ctx, method); err != nil {
		return nil, err
	}
	samples, entities := set(sampleIDs), set(entityIDs)
	out := []domain.MolecularDatum{}
	for _, d := range p.MolecularData {
		if d.MolecularProfileID == molecularProfileID && samples[d.SampleID] && entities[d.EntityID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Portal) FetchGenericAssayData(ctx context.Context, molecularProfileID string, sampleIDs []string, stableIDs []string) ([]domain.MolecularDatum, error) {
	return p.entityData(ctx, "FetchGenericAssayData", molecularProfileID, sampleIDs, stableIDs)
}

func (p *Portal) FetchGenesetScores(ctx context.Context, molecularProfileID string, sampleIDs []string, genesetIDs []string) ([]domain.MolecularDatum, error) {
	return p.entityData(ctx, "FetchGenesetScores", molecularProfileID, sampleIDs, genesetIDs)
}

func (p *Portal) FetchClinicalAttributes(ctx context.Context, studyIDs []string) ([]domain.ClinicalAttribute, error) {
	if err := p.enter(ctx, "FetchClinicalAttributes"); err != nil {
		return nil, err
	}
	wanted := set(studyIDs)
	out := []domain.ClinicalAttribute{}
	for _, a := range p.ClinicalAttributes {
		if a.StudyID == "" || wanted[a.StudyID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (p *Portal) FetchClinicalData(ctx context.Context, ids []domain.SampleIdentifier, attributeIDs []string, patientLevel bool) ([]domain.ClinicalDatum, error) {
	if err := p.enter(ctx, "FetchClinicalData"); err != nil {
		return nil, err
	}
	wanted, attrs := set(ids), set(attributeIDs)
	out := []domain.ClinicalDatum{}
	for _, d := range p.ClinicalData {
		if !attrs[d.ClinicalAttributeID] {
			continue
		}
		entity := d.SampleID
		if patientLevel {
			if d.SampleID != "" {
				continue
			}
			entity = d.PatientID
		}
		if wanted[domain.SampleIdentifier{StudyID: d.StudyID, SampleID: entity}] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Portal) FetchGenePanelData(ctx context.Context, molecularProfileID string, sampleIDs []string) ([]domain.GenePanelData, error) {
	if err := p.enter(ctx, "FetchGenePanelData"); err != nil {
		return nil, err
	}
	samples := set(sampleIDs)
	out := []domain.GenePanelData{}
	for _, d := range p.GenePanelData {
		if d.MolecularProfileID == molecularProfileID && samples[d.SampleID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (p *Portal) FetchGenePanels(ctx context.Context, genePanelIDs []string) ([]domain.GenePanel, error) {
	if err := p.enter(ctx, "FetchGenePanels"); err != nil {
		return nil, err
	}
	wanted := set(genePanelIDs)
	out := []domain.GenePanel{}
	for _, gp := range p.GenePanels {
		if wanted[gp.GenePanelID] {
			out = append(out, gp)
		}
	}
	return out, nil
}

func (p *Portal) FetchMutationCountsByPosition(ctx context.Context, positions []domain.MutationPositionCount) ([]domain.MutationPositionCount, error) {
	if err := p.enter(ctx, "FetchMutationCountsByPosition"); err != nil {
		return nil, err
	}
	type pos struct{ entrez, start int }
	wanted := make(map[pos]bool, len(positions))
	for _, q := range positions {
		wanted[pos{q.EntrezGeneID, q.ProteinPosStart}] = true
	}
	out := []domain.MutationPositionCount{}
	for _, c := range p.PositionCounts {
		if wanted[pos{c.EntrezGeneID, c.ProteinPosStart}] {
			out = append(out, c)
		}
	}
	return out, nil
}

var _ domain.PortalClient = (*Portal)(nil)
