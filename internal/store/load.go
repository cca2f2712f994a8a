package store

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/remote"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// maxProfileFetches bounds the concurrent per-profile requests of one load
const maxProfileFetches = 4

type alterationResults struct {
	mutations  remote.Result[[]domain.MutationEvent]
	aggregated remote.Result[[]domain.CaseAggregatedData]
	coverage   remote.Result[domain.CoverageInformation]
}

func failedAlterations(err error) alterationResults {
	return alterationResults{
		mutations:  remote.Failed[[]domain.MutationEvent](err),
		aggregated: remote.Failed[[]domain.CaseAggregatedData](err),
		coverage:   remote.Failed[domain.CoverageInformation](err),
	}
}

// loadAlterations fetches the alteration and gene panel data of every selected profile and
// aggregates it per OQL line.
func (s *ResultsViewStore) loadAlterations(
	ctx context.Context,
	req Request,
	samples remote.Result[[]domain.Sample],
	genes remote.Result[[]domain.Gene],
	selected remote.Result[[]domain.MolecularProfile],
) alterationResults {
	if status, err := remote.Await(samples, genes, selected); status == remote.StatusError {
		return failedAlterations(err)
	}
	if err := ctx.Err(); err != nil {
		return failedAlterations(err)
	}

	sampleList := samples.MustValue()
	geneList := genes.MustValue()
	entrezIDs := make([]int, 0, len(geneList))
	entrezBySymbol := make(map[string]int, len(geneList))
	for _, g := range geneList {
		entrezIDs = append(entrezIDs, g.EntrezGeneID)
		entrezBySymbol[g.HugoGeneSymbol] = g.EntrezGeneID
	}
	sampleIDs := make(map[string][]string)
	for _, sample := range sampleList {
		sampleIDs[sample.StudyID] = append(sampleIDs[sample.StudyID], sample.SampleID)
	}

	var (
		mu        sync.Mutex
		mutations []domain.MutationEvent
		events    []domain.AlterationEvent
		panelRows []domain.GenePanelData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProfileFetches)
	for _, profile := range selected.MustValue() {
		profile := profile
		ids := sampleIDs[profile.StudyID]
		if len(ids) == 0 || len(entrezIDs) == 0 {
			continue
		}
		g.Go(func() error {
			muts, evs, err := s.fetchProfileEvents(gctx, profile, ids, entrezIDs, entrezBySymbol, req)
			if err != nil {
				return fmt.Errorf("profile %s: %w", profile.MolecularProfileID, err)
			}
			rows, err := s.portal.FetchGenePanelData(gctx, profile.MolecularProfileID, ids)
			if err != nil {
				return fmt.Errorf("gene panel data of %s: %w", profile.MolecularProfileID, err)
			}
			mu.Lock()
			mutations = append(mutations, muts...)
			events = append(events, evs...)
			panelRows = append(panelRows, rows...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return failedAlterations(err)
	}

	panelGenes, err := s.fetchPanelGenes(ctx, panelRows)
	if err != nil {
		return alterationResults{
			mutations:  remote.Complete(mutations),
			aggregated: remote.Complete(AggregateByOQL(req.OQLLines, events)),
			coverage:   remote.Failed[domain.CoverageInformation](err),
		}
	}
	if mutations == nil {
		mutations = []domain.MutationEvent{}
	}
	return alterationResults{
		mutations:  remote.Complete(mutations),
		aggregated: remote.Complete(AggregateByOQL(req.OQLLines, events)),
		coverage:   remote.Complete(BuildCoverage(panelRows, panelGenes, req.Genes(), sampleList)),
	}
}

// fetchProfileEvents converts one profile's data into alteration events. Continuous values
// get a regulation direction from the request's z-score thresholds.
func (s *ResultsViewStore) fetchProfileEvents(
	ctx context.Context,
	profile domain.MolecularProfile,
	sampleIDs []string,
	entrezIDs []int,
	entrezBySymbol map[string]int,
	req Request,
) ([]domain.MutationEvent, []domain.AlterationEvent, error) {
	switch profile.MolecularAlterationType {
	case domain.MutationExtended:
		muts, err := s.portal.FetchMutations(ctx, profile.MolecularProfileID, sampleIDs, entrezIDs)
		if err != nil {
			return nil, nil, err
		}
		events := make([]domain.AlterationEvent, 0, len(muts))
		for _, m := range muts {
			events = append(events, m)
		}
		return muts, events, nil

	case domain.CopyNumberAlteration, domain.MRNAExpression, domain.ProteinLevel:
		if profile.MolecularAlterationType == domain.CopyNumberAlteration && profile.Datatype != "DISCRETE" {
			break
		}
		rows, err := s.portal.FetchMolecularData(ctx, profile.MolecularProfileID, sampleIDs, entrezIDs)
		if err != nil {
			return nil, nil, err
		}
		events := make([]domain.AlterationEvent, 0, len(rows))
		for _, row := range rows {
			header := domain.EventHeader{
				UniqueSampleKey:    row.UniqueSampleKey,
				UniquePatientKey:   row.UniquePatientKey,
				SampleID:           row.SampleID,
				PatientID:          row.PatientID,
				StudyID:            row.StudyID,
				HugoGeneSymbol:     row.EntityID,
				EntrezGeneID:       entrezBySymbol[row.EntityID],
				MolecularProfileID: row.MolecularProfileID,
			}
			switch profile.MolecularAlterationType {
			case domain.CopyNumberAlteration:
				events = append(events, domain.CNAEvent{EventHeader: header, Value: int(math.Round(row.Value))})
			case domain.MRNAExpression:
				events = append(events, continuousEvent(header, domain.MRNAExpression, row.Value, req.MRNAZScore))
			case domain.ProteinLevel:
				events = append(events, continuousEvent(header, domain.ProteinLevel, row.Value, req.ProteinZScore))
			}
		}
		return nil, events, nil
	}

	s.logger.WithFields(logrus.Fields{
		"profile":  profile.MolecularProfileID,
		"type":     profile.MolecularAlterationType,
		"datatype": profile.Datatype,
	}).Debug("Ignoring profile without genetic alteration data")
	return nil, nil, nil
}

func continuousEvent(header domain.EventHeader, kind domain.MolecularAlterationType, value, threshold float64) domain.ContinuousEvent {
	direction := 0
	switch {
	case value >= threshold:
		direction = 1
	case value <= -threshold:
		direction = -1
	}
	return domain.ContinuousEvent{EventHeader: header, Kind: kind, Value: value, RegulationDirection: direction}
}

func (s *ResultsViewStore) fetchPanelGenes(ctx context.Context, rows []domain.GenePanelData) (map[string][]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, row := range rows {
		if row.GenePanelID != "" && !seen[row.GenePanelID] {
			seen[row.GenePanelID] = true
			ids = append(ids, row.GenePanelID)
		}
	}
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	panels, err := s.portal.FetchGenePanels(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("gene panels: %w", err)
	}
	for _, panel := range panels {
		symbols := make([]string, 0, len(panel.Genes))
		for _, g := range panel.Genes {
			symbols = append(symbols, g.HugoGeneSymbol)
		}
		out[panel.GenePanelID] = symbols
	}
	return out, nil
}

// loadAnnotations queries every driver annotation source in parallel and publishes each
// result as soon as it arrives.
func (s *ResultsViewStore) loadAnnotations(
	ctx context.Context,
	gen uint64,
	mutations remote.Result[[]domain.MutationEvent],
	genes remote.Result[[]domain.Gene],
) {
	if err := mutations.Err(); mutations.IsError() {
		s.publish(gen, func(snap *Snapshot) {
			snap.OncoKB = remote.Failed[map[string]bool](err)
			snap.Hotspots = remote.Failed[map[string]bool](err)
			snap.CBioPortalCounts = remote.Failed[map[string]int](err)
			snap.COSMICCounts = remote.Failed[map[string]int](err)
		})
		return
	}
	muts := mutations.MustValue()

	var g errgroup.Group
	g.Go(func() error {
		var result remote.Result[map[string]bool]
		if s.annotators.OncoKB == nil {
			result = remote.Failed[map[string]bool](ErrSourceDisabled)
		} else {
			result = remote.FromCall(s.annotators.OncoKB.AnnotateOncogenic(ctx, muts))
		}
		s.publish(gen, func(snap *Snapshot) { snap.OncoKB = result })
		return nil
	})
	g.Go(func() error {
		var result remote.Result[map[string]bool]
		if s.annotators.Hotspots == nil {
			result = remote.Failed[map[string]bool](ErrSourceDisabled)
		} else {
			result = remote.FromCall(s.annotators.Hotspots.AnnotateHotspots(ctx, muts))
		}
		s.publish(gen, func(snap *Snapshot) { snap.Hotspots = result })
		return nil
	})
	g.Go(func() error {
		var result remote.Result[map[string]int]
		if s.annotators.COSMIC == nil {
			result = remote.Failed[map[string]int](ErrSourceDisabled)
		} else {
			result = remote.FromCall(s.annotators.COSMIC.CountCOSMIC(ctx, muts))
		}
		s.publish(gen, func(snap *Snapshot) { snap.COSMICCounts = result })
		return nil
	})
	g.Go(func() error {
		result := remote.FromCall(s.countByPosition(ctx, muts, genes.ValueOr(nil)))
		s.publish(gen, func(snap *Snapshot) { snap.CBioPortalCounts = result })
		return nil
	})
	_ = g.Wait()
}

// countByPosition asks the portal how often each mutated protein position recurs across
// all studies. Counts are keyed by MutationEvent.PositionKey.
func (s *ResultsViewStore) countByPosition(ctx context.Context, muts []domain.MutationEvent, genes []domain.Gene) (map[string]int, error) {
	symbolByEntrez := make(map[int]string, len(genes))
	for _, g := range genes {
		symbolByEntrez[g.EntrezGeneID] = g.HugoGeneSymbol
	}
	seen := make(map[string]bool)
	var positions []domain.MutationPositionCount
	for _, m := range muts {
		if m.ProteinPosStart <= 0 || seen[m.PositionKey()] {
			continue
		}
		seen[m.PositionKey()] = true
		positions = append(positions, domain.MutationPositionCount{
			HugoGeneSymbol:  m.HugoGeneSymbol,
			EntrezGeneID:    m.EntrezGeneID,
			ProteinPosStart: m.ProteinPosStart,
		})
	}
	counts := make(map[string]int, len(positions))
	if len(positions) == 0 {
		return counts, nil
	}
	rows, err := s.portal.FetchMutationCountsByPosition(ctx, positions)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		symbol := row.HugoGeneSymbol
		if symbol == "" {
			symbol = symbolByEntrez[row.EntrezGeneID]
		}
		counts[domain.MutationEvent{
			EventHeader:     domain.EventHeader{HugoGeneSymbol: symbol},
			ProteinPosStart: row.ProteinPosStart,
		}.PositionKey()] = row.Count
	}
	return counts, nil
}
