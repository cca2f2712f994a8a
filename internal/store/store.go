// Package store loads the upstream data of one results view: studies, cases, molecular
// profiles, alteration data, gene panel coverage and driver annotations. Every dataset is
// published as a remote.Result as soon as it settles.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/remote"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrSourceDisabled fails the annotation result of a source that is not configured.
var ErrSourceDisabled = errors.New("annotation source disabled")

// Annotators bundles the driver annotation sources; nil members are disabled.
type Annotators struct {
	OncoKB   domain.OncogenicityAnnotator
	Hotspots domain.HotspotAnnotator
	COSMIC   domain.COSMICCounter
}

// CustomDriverInfo summarises driver annotations shipped with the mutation data.
type CustomDriverInfo struct {
	HasBinary bool     `json:"hasBinary"`
	Tiers     []string `json:"tiers"`
}

// Snapshot is an immutable view of every dataset of one load generation.
type Snapshot struct {
	Generation uint64
	Request    Request
	StartedAt  time.Time

	Studies            remote.Result[[]domain.Study]
	CaseSet            remote.Result[*domain.SampleList]
	Samples            remote.Result[[]domain.Sample]
	Patients           remote.Result[[]domain.Patient]
	MolecularProfiles  remote.Result[[]domain.MolecularProfile]
	SelectedProfiles   remote.Result[[]domain.MolecularProfile]
	Genes              remote.Result[[]domain.Gene]
	Mutations          remote.Result[[]domain.MutationEvent]
	CaseAggregatedData remote.Result[[]domain.CaseAggregatedData]
	Coverage           remote.Result[domain.CoverageInformation]
	ClinicalAttributes remote.Result[[]domain.ClinicalAttribute]
	CustomDrivers      remote.Result[CustomDriverInfo]

	OncoKB           remote.Result[map[string]bool]
	Hotspots         remote.Result[map[string]bool]
	CBioPortalCounts remote.Result[map[string]int]
	COSMICCounts     remote.Result[map[string]int]
}

// Annotations collects the annotation lookups that have completed.
func (s Snapshot) Annotations() domain.MutationAnnotations {
	return domain.MutationAnnotations{
		OncoKB:           s.OncoKB.ValueOr(nil),
		Hotspots:         s.Hotspots.ValueOr(nil),
		CBioPortalCounts: s.CBioPortalCounts.ValueOr(nil),
		COSMICCounts:     s.COSMICCounts.ValueOr(nil),
	}
}

// SampleIDsByStudy groups the loaded sample ids by study. Samples must be complete.
func (s Snapshot) SampleIDsByStudy() map[string][]string {
	out := make(map[string][]string)
	for _, sample := range s.Samples.ValueOr(nil) {
		out[sample.StudyID] = append(out[sample.StudyID], sample.SampleID)
	}
	return out
}

func pendingSnapshot(gen uint64, req Request) Snapshot {
	return Snapshot{
		Generation:         gen,
		Request:            req,
		StartedAt:          time.Now(),
		Studies:            remote.Pending[[]domain.Study](),
		CaseSet:            remote.Pending[*domain.SampleList](),
		Samples:            remote.Pending[[]domain.Sample](),
		Patients:           remote.Pending[[]domain.Patient](),
		MolecularProfiles:  remote.Pending[[]domain.MolecularProfile](),
		SelectedProfiles:   remote.Pending[[]domain.MolecularProfile](),
		Genes:              remote.Pending[[]domain.Gene](),
		Mutations:          remote.Pending[[]domain.MutationEvent](),
		CaseAggregatedData: remote.Pending[[]domain.CaseAggregatedData](),
		Coverage:           remote.Pending[domain.CoverageInformation](),
		ClinicalAttributes: remote.Pending[[]domain.ClinicalAttribute](),
		CustomDrivers:      remote.Pending[CustomDriverInfo](),
		OncoKB:             remote.Pending[map[string]bool](),
		Hotspots:           remote.Pending[map[string]bool](),
		CBioPortalCounts:   remote.Pending[map[string]int](),
		COSMICCounts:       remote.Pending[map[string]int](),
	}
}

// ResultsViewStore owns the loads of one page. A new request supersedes the running load;
// results of a superseded generation are discarded.
type ResultsViewStore struct {
	portal     domain.PortalClient
	annotators Annotators
	logger     *logrus.Logger

	mu      sync.RWMutex
	snap    Snapshot
	key     string
	cancel  context.CancelFunc
	done    chan struct{}
	version uint64
	subs    map[int]chan uint64
	nextSub int
}

// NewResultsViewStore creates an empty store.
func NewResultsViewStore(portal domain.PortalClient, annotators Annotators, logger *logrus.Logger) *ResultsViewStore {
	done := make(chan struct{})
	close(done)
	return &ResultsViewStore{
		portal:     portal,
		annotators: annotators,
		logger:     logger,
		snap:       pendingSnapshot(0, Request{}),
		done:       done,
		subs:       make(map[int]chan uint64),
	}
}

// Load starts loading req in the background unless it is already the current request.
// It reports whether a new load was started.
func (s *ResultsViewStore) Load(ctx context.Context, req Request) bool {
	key := req.Key()

	s.mu.Lock()
	if s.snap.Generation > 0 && key == s.key {
		s.mu.Unlock()
		return false
	}
	if s.cancel != nil {
		s.cancel()
	}
	gen := s.snap.Generation + 1
	loadCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.snap = pendingSnapshot(gen, req)
	s.key = key
	s.cancel = cancel
	s.done = done
	s.bumpLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"studies":    req.StudyIDs,
		"genes":      req.Genes(),
	}).Info("Loading results view data")

	go s.load(loadCtx, gen, req, done)
	return true
}

// Snapshot returns the current datasets.
func (s *ResultsViewStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Version increases whenever any dataset changes.
func (s *ResultsViewStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Wait blocks until the current load has settled.
func (s *ResultsViewStore) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the running load.
func (s *ResultsViewStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Subscribe returns a channel receiving the store version after every change and a function
// that cancels the subscription.
func (s *ResultsViewStore) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *ResultsViewStore) bumpLocked() {
	s.version++
	for _, ch := range s.subs {
		select {
		case ch <- s.version:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.version:
		default:
		}
	}
}

// publish applies update to the snapshot of generation gen. Stale generations are dropped.
func (s *ResultsViewStore) publish(gen uint64, update func(*Snapshot)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Generation != gen {
		return false
	}
	update(&s.snap)
	s.bumpLocked()
	return true
}

func (s *ResultsViewStore) load(ctx context.Context, gen uint64, req Request, done chan struct{}) {
	defer close(done)
	start := time.Now()

	// Study-level metadata, cases and genes are independent of each other.
	var (
		studies  remote.Result[[]domain.Study]
		caseSet  remote.Result[*domain.SampleList]
		samples  remote.Result[[]domain.Sample]
		profiles remote.Result[[]domain.MolecularProfile]
		selected remote.Result[[]domain.MolecularProfile]
		genes    remote.Result[[]domain.Gene]
		attrs    remote.Result[[]domain.ClinicalAttribute]
	)
	var g errgroup.Group
	g.Go(func() error {
		studies = remote.FromCall(s.portal.FetchStudies(ctx, req.StudyIDs))
		s.publish(gen, func(snap *Snapshot) { snap.Studies = studies })
		return nil
	})
	g.Go(func() error {
		caseSet, samples = s.loadCases(ctx, req)
		patients := remote.Map(samples, PatientsOf)
		s.publish(gen, func(snap *Snapshot) {
			snap.CaseSet = caseSet
			snap.Samples = samples
			snap.Patients = patients
		})
		return nil
	})
	g.Go(func() error {
		profiles = remote.FromCall(s.portal.FetchMolecularProfiles(ctx, req.StudyIDs))
		selected = remote.Map(profiles, func(all []domain.MolecularProfile) []domain.MolecularProfile {
			return SelectGeneticProfiles(all, req)
		})
		s.publish(gen, func(snap *Snapshot) {
			snap.MolecularProfiles = profiles
			snap.SelectedProfiles = selected
		})
		return nil
	})
	g.Go(func() error {
		genes = s.loadGenes(ctx, req)
		s.publish(gen, func(snap *Snapshot) { snap.Genes = genes })
		return nil
	})
	g.Go(func() error {
		attrs = remote.FromCall(s.portal.FetchClinicalAttributes(ctx, req.StudyIDs))
		s.publish(gen, func(snap *Snapshot) { snap.ClinicalAttributes = attrs })
		return nil
	})
	_ = g.Wait()

	alterations := s.loadAlterations(ctx, req, samples, genes, selected)
	s.publish(gen, func(snap *Snapshot) {
		snap.Mutations = alterations.mutations
		snap.CaseAggregatedData = alterations.aggregated
		snap.Coverage = alterations.coverage
		snap.CustomDrivers = remote.Map(alterations.mutations, CustomDriversOf)
	})

	s.loadAnnotations(ctx, gen, alterations.mutations, genes)

	entry := s.logger.WithFields(logrus.Fields{
		"generation": gen,
		"duration":   time.Since(start).String(),
	})
	if status, err := remote.Await(studies, samples, profiles, genes, alterations.aggregated); status == remote.StatusError {
		entry.WithError(err).Error("Results view load failed")
		return
	}
	entry.Info("Results view data loaded")
}

// loadCases resolves the queried samples from explicit case ids or from case sets. Without
// either, the "<study>_all" list of every study is used.
func (s *ResultsViewStore) loadCases(ctx context.Context, req Request) (remote.Result[*domain.SampleList], remote.Result[[]domain.Sample]) {
	if len(req.CaseIDs) > 0 {
		samples := remote.FromCall(s.portal.FetchSamples(ctx, req.CaseIDs))
		return remote.Complete[*domain.SampleList](nil), samples
	}

	var primary *domain.SampleList
	var ids []domain.SampleIdentifier
	for i, studyID := range req.StudyIDs {
		listID := studyID + "_all"
		if req.CaseSetID != "" && (len(req.StudyIDs) == 1 || strings.HasPrefix(req.CaseSetID, studyID+"_")) {
			listID = req.CaseSetID
		}
		list, err := s.portal.GetSampleList(ctx, listID)
		if err != nil {
			return remote.Failed[*domain.SampleList](err), remote.Failed[[]domain.Sample](err)
		}
		if i == 0 {
			primary = list
		}
		for _, id := range list.SampleIDs {
			ids = append(ids, domain.SampleIdentifier{StudyID: list.StudyID, SampleID: id})
		}
	}
	if len(ids) == 0 {
		return remote.Complete(primary), remote.Complete([]domain.Sample{})
	}
	return remote.Complete(primary), remote.FromCall(s.portal.FetchSamples(ctx, ids))
}

func (s *ResultsViewStore) loadGenes(ctx context.Context, req Request) remote.Result[[]domain.Gene] {
	symbols := req.Genes()
	if len(symbols) == 0 {
		return remote.Complete([]domain.Gene{})
	}
	genes, err := s.portal.FetchGenes(ctx, symbols)
	if err != nil {
		return remote.Failed[[]domain.Gene](err)
	}
	// keep query order
	bySymbol := make(map[string]domain.Gene, len(genes))
	for _, gene := range genes {
		bySymbol[gene.HugoGeneSymbol] = gene
	}
	ordered := make([]domain.Gene, 0, len(genes))
	for _, symbol := range symbols {
		if gene, ok := bySymbol[symbol]; ok {
			ordered = append(ordered, gene)
		} else {
			s.logger.WithField("gene", symbol).Warn("Unknown gene symbol in query")
		}
	}
	return remote.Complete(ordered)
}

// PatientsOf lists the distinct patients of samples in first-seen order.
func PatientsOf(samples []domain.Sample) []domain.Patient {
	seen := make(map[string]bool)
	patients := make([]domain.Patient, 0, len(samples))
	for _, sample := range samples {
		if seen[sample.UniquePatientKey] {
			continue
		}
		seen[sample.UniquePatientKey] = true
		patients = append(patients, domain.Patient{
			PatientID:        sample.PatientID,
			StudyID:          sample.StudyID,
			UniquePatientKey: sample.UniquePatientKey,
		})
	}
	return patients
}

// SelectGeneticProfiles returns the profiles named in the request, or the mutation and
// discrete copy number profiles of every study when none are named.
func SelectGeneticProfiles(all []domain.MolecularProfile, req Request) []domain.MolecularProfile {
	if len(req.ProfileIDs) > 0 {
		wanted := make(map[string]bool, len(req.ProfileIDs))
		for _, id := range req.ProfileIDs {
			wanted[id] = true
		}
		var out []domain.MolecularProfile
		for _, p := range all {
			if wanted[p.MolecularProfileID] {
				out = append(out, p)
			}
		}
		return out
	}
	var out []domain.MolecularProfile
	for _, p := range all {
		switch {
		case p.MolecularAlterationType == domain.MutationExtended:
			out = append(out, p)
		case p.MolecularAlterationType == domain.CopyNumberAlteration && p.Datatype == "DISCRETE":
			out = append(out, p)
		}
	}
	return out
}

// CustomDriversOf reports which custom driver annotations the mutations carry.
func CustomDriversOf(mutations []domain.MutationEvent) CustomDriverInfo {
	info := CustomDriverInfo{Tiers: []string{}}
	seen := make(map[string]bool)
	for _, m := range mutations {
		if m.DriverFilter != "" {
			info.HasBinary = true
		}
		if m.DriverTiersFilter != "" && !seen[m.DriverTiersFilter] {
			seen[m.DriverTiersFilter] = true
			info.Tiers = append(info.Tiers, m.DriverTiersFilter)
		}
	}
	sort.Strings(info.Tiers)
	return info
}
