package orchestrator

import (
	"context"
	"time"

	"github.com/oncoprint-server/internal/annotation"
	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/oncoprint"
	"github.com/oncoprint-server/internal/remote"
	"github.com/oncoprint-server/internal/render"
	"github.com/oncoprint-server/internal/store"
	"github.com/oncoprint-server/internal/trackgroups"
	"github.com/oncoprint-server/internal/urlstate"
	"github.com/sirupsen/logrus"
)

// Phase is the loading phase of a page.
type Phase string

const (
	PhaseIdle                           Phase = "idle"
	PhaseAwaitingProfileMetadata        Phase = "awaiting_profile_metadata"
	PhaseAwaitingGeneticAndClinicalData Phase = "awaiting_genetic_and_clinical_data"
	PhaseReady                          Phase = "ready"
)

// RuleSets are the render rules of the current tracks.
type RuleSets struct {
	Genetic  oncoprint.RuleSetParams            `json:"genetic"`
	Heatmap  oncoprint.RuleSetParams            `json:"heatmap"`
	Clinical map[string]oncoprint.RuleSetParams `json:"clinical,omitempty"`
}

// View is the committed state of a page after one recompute.
type View struct {
	Generation uint64 `json:"generation"`
	URLVersion uint64 `json:"urlVersion"`
	Phase      Phase  `json:"phase"`

	ColumnMode                   domain.ColumnMode                         `json:"columnMode"`
	SortMode                     domain.SortMode                           `json:"sortMode"`
	SortConfig                   domain.SortConfig                         `json:"sortConfig"`
	SelectedClinicalAttributeIDs remote.Result[[]string]                   `json:"selectedClinicalAttributeIds"`
	ClinicalAttributes           remote.Result[[]domain.ClinicalAttribute] `json:"clinicalAttributes"`
	HeatmapTrackGroups           []trackgroups.Group                       `json:"heatmapTrackGroups"`

	GeneticTracks          remote.Result[[]domain.GeneticTrackSpec]  `json:"geneticTracks"`
	ClinicalTracks         remote.Result[[]domain.ClinicalTrackSpec] `json:"clinicalTracks"`
	HeatmapTracks          remote.Result[[]domain.HeatmapTrackSpec]  `json:"heatmapTracks"`
	GenesetHeatmapTracks   remote.Result[[]domain.HeatmapTrackSpec]  `json:"genesetHeatmapTracks"`
	TreatmentHeatmapTracks remote.Result[[]domain.HeatmapTrackSpec]  `json:"treatmentHeatmapTracks"`

	AlteredKeys    []string `json:"alteredKeys"`
	UnalteredKeys  []string `json:"unalteredKeys"`
	HiddenIDs      []string `json:"hiddenIds"`
	IDOrder        []string `json:"idOrder"`
	CaseSetInfo    string   `json:"caseSetInfo,omitempty"`
	AlterationInfo string   `json:"alterationInfo,omitempty"`
	HorzZoom       float64  `json:"horzZoom"`

	RuleSets RuleSets     `json:"ruleSets"`
	Controls ControlsView `json:"controls"`
	Progress Progress     `json:"progress"`
}

// ControlsView is the state of the oncoprint controls panel.
type ControlsView struct {
	ColumnMode               domain.ColumnMode         `json:"columnMode"`
	ShowUnaltered            bool                      `json:"showUnalteredColumns"`
	ShowWhitespace           bool                      `json:"showWhitespaceBetweenColumns"`
	ShowClinicalTrackLegends bool                      `json:"showClinicalTrackLegends"`
	ShowMinimap              bool                      `json:"showMinimap"`
	SortMode                 domain.SortMode           `json:"sortMode"`
	SortByMutationType       bool                      `json:"sortByMutationType"`
	SortByDrivers            bool                      `json:"sortByDrivers"`
	Annotation               annotation.Snapshot       `json:"annotation"`
	DistinguishDrivers       bool                      `json:"distinguishDrivers"`
	AvailableTiers           []string                  `json:"customDriverTiers"`
	HasCustomDriverBinary    bool                      `json:"hasCustomDriverBinary"`
	CustomDriverBinaryLabel  string                    `json:"customDriverBinaryMenuLabel,omitempty"`
	CustomDriverTiersLabel   string                    `json:"customDriverTiersMenuLabel,omitempty"`
	HeatmapProfiles          []domain.MolecularProfile `json:"heatmapProfiles"`
	SelectedHeatmapProfile   string                    `json:"selectedHeatmapProfile"`
	HeatmapGeneInput         string                    `json:"heatmapGeneInputValue"`
	ClusterHeatmapEnabled    bool                      `json:"clusterHeatmapEnabled"`

	// UnselectedClinicalAttributes are the catalog attributes that can still be added.
	UnselectedClinicalAttributes []domain.ClinicalAttribute `json:"unselectedClinicalAttributes"`
}

// Progress lists what the page is still waiting for.
type Progress struct {
	Phase   Phase    `json:"phase"`
	Pending []string `json:"pending"`
	Message string   `json:"message,omitempty"`
	Elapsed float64  `json:"elapsedSeconds"`
}

// inputs is everything one recompute reads, captured once at its start.
type inputs struct {
	query      urlstate.Query
	urlVersion uint64
	snap       store.Snapshot
	settings   annotation.Snapshot
	controls   controls
}

// Recompute derives the page from the current URL state, upstream datasets and settings and
// commits it. A recompute that was overtaken by a newer one returns the newer view.
func (o *Oncoprint) Recompute(ctx context.Context) (*View, error) {
	if timeout := o.options.Oncoprint.RecomputeTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	gen := o.generation.Add(1)

	q, urlVersion := o.urls.Snapshot()
	o.store.Load(o.ctx, store.RequestFromQuery(q, o.options.Oncoprint))
	snap := o.store.Snapshot()
	o.syncUpstream(snap)

	in := inputs{
		query:      q,
		urlVersion: urlVersion,
		snap:       snap,
		settings:   o.settings.Snapshot(),
		controls:   o.controlsSnapshot(),
	}
	view, frame, isDriver := o.derive(ctx, in)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	view.Generation = gen
	return o.commit(view, frame, isDriver), nil
}

// View returns the last committed view, or nil before the first recompute.
func (o *Oncoprint) View() *View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.committed
}

func (o *Oncoprint) derive(ctx context.Context, in inputs) (*View, render.Frame, oncoprint.DriverPredicate) {
	q, snap := in.query, in.snap
	mode := ColumnModeOf(q)
	sortMode := SortModeOf(q)
	cases := casesOf(mode, snap)
	isDriver := driverPredicate(in.settings, snap.Annotations())

	selected := SelectedClinicalAttributeIDs(q, snap)
	catalog := clinicalCatalog(snap)
	groups := o.registry.Groups(q)

	profiles := snap.MolecularProfiles.ValueOr(nil)
	geneset, hasGeneset := genesetProfile(profiles)
	genesetIDs := snap.Request.GenesetIDs
	genesetIndex := 0
	if hasGeneset && len(genesetIDs) > 0 {
		genesetIndex = o.registry.IndexFor(genesetGroupKey(geneset.MolecularProfileID))
	}

	view := &View{
		URLVersion:                   in.urlVersion,
		ColumnMode:                   mode,
		SortMode:                     sortMode,
		SelectedClinicalAttributeIDs: selected,
		ClinicalAttributes:           catalog,
		HeatmapTrackGroups:           groups,
	}

	profileDeps := []remote.Awaitable{snap.MolecularProfiles}
	view.GeneticTracks = geneticTracks(mode, cases, snap, in.settings, isDriver)
	view.ClinicalTracks = o.clinicalTracks(ctx, mode, cases, selected, catalog, snap)
	view.HeatmapTracks = o.heatmapTracks(ctx, mode, cases, profileDeps, func() []heatmapGroup {
		return registryGroups(groups, profiles, false)
	})
	view.TreatmentHeatmapTracks = o.heatmapTracks(ctx, mode, cases, profileDeps, func() []heatmapGroup {
		return registryGroups(groups, profiles, true)
	})
	view.GenesetHeatmapTracks = o.heatmapTracks(ctx, mode, cases, profileDeps, func() []heatmapGroup {
		if !hasGeneset || len(genesetIDs) == 0 {
			return nil
		}
		return []heatmapGroup{{profile: geneset, index: genesetIndex, entities: genesetIDs}}
	})

	refs := cases.ValueOr(nil)
	view.AlteredKeys, view.UnalteredKeys = []string{}, []string{}
	if tracks, ok := view.GeneticTracks.Value(); ok {
		view.AlteredKeys, view.UnalteredKeys = partitionAltered(refs, tracks)
		coverage := snap.Coverage.MustValue().ForMode(mode)
		view.AlterationInfo = oncoprint.AlterationInfo(mode, len(view.AlteredKeys), sequencedCount(refs, coverage), len(refs))
	}
	view.HiddenIDs = []string{}
	if !in.controls.showUnaltered {
		view.HiddenIDs = view.UnalteredKeys
	}
	view.CaseSetInfo = caseSetInfo(snap)

	view.SortConfig = domain.SortConfig{
		SortByMutationType: flagOf(q, urlstate.KeySortByMutationType),
		SortByDrivers:      flagOf(q, urlstate.KeySortByDrivers),
	}
	switch sortMode.Type {
	case domain.SortAlphabetical:
		view.SortConfig.Order = alphabeticalOrder(refs)
	case domain.SortByCaseList:
		view.SortConfig.Order = caseListOrder(mode, snap)
	case domain.SortByHeatmapCluster:
		view.SortConfig.ClusterHeatmapTrackGroupIndex = o.clusteredTrackGroupIndex(q, sortMode, geneset, hasGeneset && len(genesetIDs) > 0)
	}

	view.RuleSets = RuleSets{
		Genetic: oncoprint.GeneticTrackRuleSet(in.settings.DistinguishMutationType, in.settings.DistinguishDrivers()),
		Heatmap: oncoprint.HeatmapTrackRuleSet(),
	}
	if tracks, ok := view.ClinicalTracks.Value(); ok {
		view.RuleSets.Clinical = make(map[string]oncoprint.RuleSetParams, len(tracks))
		for _, t := range tracks {
			view.RuleSets.Clinical[t.Key] = oncoprint.ClinicalTrackRuleSet(t)
		}
	}

	view.Controls = o.controlsView(in, mode, sortMode, groups, profiles)
	view.Controls.UnselectedClinicalAttributes = unselectedClinicalAttributes(selected, catalog)
	view.Phase = phaseOf(view, snap)
	view.Progress = o.progressOf(view.Phase, snap, view)

	frame := render.Frame{
		Mode:                    mode,
		Cases:                   refs,
		Genetic:                 view.GeneticTracks.ValueOr(nil),
		Clinical:                view.ClinicalTracks.ValueOr(nil),
		Heatmap:                 view.HeatmapTracks.ValueOr(nil),
		GenesetHeatmap:          view.GenesetHeatmapTracks.ValueOr(nil),
		TreatmentHeatmap:        view.TreatmentHeatmapTracks.ValueOr(nil),
		Sort:                    view.SortConfig,
		HiddenIDs:               view.HiddenIDs,
		DistinguishMutationType: in.settings.DistinguishMutationType,
		DistinguishDrivers:      in.settings.DistinguishDrivers(),
		ShowWhitespace:          in.controls.showWhitespace,
	}
	return view, frame, isDriver
}

// clusteredTrackGroupIndex resolves the clustered profile to its track group, searching the
// heatmap registry and then the gene set heatmap group.
func (o *Oncoprint) clusteredTrackGroupIndex(q urlstate.Query, mode domain.SortMode, geneset domain.MolecularProfile, genesetActive bool) *int {
	if mode.Type != domain.SortByHeatmapCluster {
		return nil
	}
	if idx, ok := o.registry.IndexOf(q, mode.ClusteredHeatmapProfile); ok {
		return &idx
	}
	if genesetActive && geneset.MolecularProfileID == mode.ClusteredHeatmapProfile {
		idx := o.registry.IndexFor(genesetGroupKey(geneset.MolecularProfileID))
		return &idx
	}
	return nil
}

func caseSetInfo(snap store.Snapshot) string {
	samples, ok := snap.Samples.Value()
	if !ok || !snap.CaseSet.IsComplete() {
		return ""
	}
	name := "User-defined Case List"
	if list := snap.CaseSet.MustValue(); list != nil {
		name = list.Name
	}
	return oncoprint.CaseSetInfo(name, len(snap.Patients.ValueOr(nil)), len(samples))
}

func (o *Oncoprint) controlsView(in inputs, mode domain.ColumnMode, sortMode domain.SortMode, groups []trackgroups.Group, profiles []domain.MolecularProfile) ControlsView {
	c := in.controls
	menu := heatmapProfiles(profiles)
	selectedProfile := c.selectedHeatmapProfile
	if selectedProfile == "" && len(menu) > 0 {
		selectedProfile = menu[0].MolecularProfileID
	}
	clusterable := false
	for _, g := range groups {
		if g.MolecularProfileID == selectedProfile {
			clusterable = true
		}
	}
	drivers := in.snap.CustomDrivers.ValueOr(store.CustomDriverInfo{})

	return ControlsView{
		ColumnMode:               mode,
		ShowUnaltered:            c.showUnaltered,
		ShowWhitespace:           c.showWhitespace,
		ShowClinicalTrackLegends: c.showClinicalTrackLegends,
		ShowMinimap:              c.showMinimap,
		SortMode:                 sortMode,
		SortByMutationType:       flagOf(in.query, urlstate.KeySortByMutationType),
		SortByDrivers:            flagOf(in.query, urlstate.KeySortByDrivers),
		Annotation:               in.settings,
		DistinguishDrivers:       in.settings.DistinguishDrivers(),
		AvailableTiers:           o.settings.AvailableTiers(),
		HasCustomDriverBinary:    drivers.HasBinary,
		CustomDriverBinaryLabel:  o.options.Annotation.CustomBinaryMenuLabel,
		CustomDriverTiersLabel:   o.options.Annotation.CustomTiersMenuLabel,
		HeatmapProfiles:          menu,
		SelectedHeatmapProfile:   selectedProfile,
		HeatmapGeneInput:         heatmapGeneInput(c, in.snap),
		ClusterHeatmapEnabled:    clusterable,
	}
}

// unselectedClinicalAttributes lists catalog attributes not shown as tracks, in catalog order.
func unselectedClinicalAttributes(selected remote.Result[[]string], catalog remote.Result[[]domain.ClinicalAttribute]) []domain.ClinicalAttribute {
	out := []domain.ClinicalAttribute{}
	ids, ok := selected.Value()
	attrs, catalogOK := catalog.Value()
	if !ok || !catalogOK {
		return out
	}
	shown := make(map[string]bool, len(ids))
	for _, id := range ids {
		shown[id] = true
	}
	for _, a := range attrs {
		if !shown[a.ClinicalAttributeID] {
			out = append(out, a)
		}
	}
	return out
}

func phaseOf(v *View, snap store.Snapshot) Phase {
	if snap.Generation == 0 {
		return PhaseIdle
	}
	if anyPending(snap.Studies, snap.MolecularProfiles, snap.Samples, snap.Patients) {
		return PhaseAwaitingProfileMetadata
	}
	if anyPending(v.GeneticTracks, v.ClinicalTracks, v.HeatmapTracks, v.GenesetHeatmapTracks, v.TreatmentHeatmapTracks) {
		return PhaseAwaitingGeneticAndClinicalData
	}
	return PhaseReady
}

func anyPending(deps ...remote.Awaitable) bool {
	for _, d := range deps {
		if d.Status() == remote.StatusPending {
			return true
		}
	}
	return false
}

// slowLoadingSuffix is appended to the progress message once loading takes longer than the
// configured threshold.
const slowLoadingSuffix = " - this can take several seconds"

func (o *Oncoprint) progressOf(phase Phase, snap store.Snapshot, v *View) Progress {
	p := Progress{Phase: phase, Pending: []string{}}
	if snap.Generation == 0 {
		return p
	}
	items := []struct {
		label string
		deps  []remote.Awaitable
	}{
		{"Loading study and case data", []remote.Awaitable{snap.Studies, snap.CaseSet, snap.Samples, snap.Patients}},
		{"Loading molecular profiles", []remote.Awaitable{snap.MolecularProfiles, snap.SelectedProfiles}},
		{"Loading genetic data", []remote.Awaitable{snap.Genes, snap.CaseAggregatedData, snap.Coverage}},
		{"Loading driver annotations", []remote.Awaitable{snap.OncoKB, snap.Hotspots, snap.CBioPortalCounts, snap.COSMICCounts}},
		{"Loading clinical data", []remote.Awaitable{snap.ClinicalAttributes, v.ClinicalTracks}},
		{"Loading heatmap data", []remote.Awaitable{v.HeatmapTracks, v.GenesetHeatmapTracks, v.TreatmentHeatmapTracks}},
	}
	for _, item := range items {
		if anyPending(item.deps...) {
			p.Pending = append(p.Pending, item.label)
		}
	}

	elapsed := time.Since(snap.StartedAt)
	p.Elapsed = elapsed.Seconds()
	if len(p.Pending) > 0 {
		p.Message = "Loading oncoprint data"
		if threshold := o.options.Oncoprint.SlowLoadingThreshold; threshold > 0 && elapsed > threshold {
			p.Message += slowLoadingSuffix
		}
	}
	return p
}

// Progress reports the loading state of the committed view against the current upstream
// datasets.
func (o *Oncoprint) Progress() Progress {
	snap := o.store.Snapshot()
	v := o.View()
	if v == nil {
		v = &View{
			GeneticTracks:          remote.Pending[[]domain.GeneticTrackSpec](),
			ClinicalTracks:         remote.Pending[[]domain.ClinicalTrackSpec](),
			HeatmapTracks:          remote.Pending[[]domain.HeatmapTrackSpec](),
			GenesetHeatmapTracks:   remote.Pending[[]domain.HeatmapTrackSpec](),
			TreatmentHeatmapTracks: remote.Pending[[]domain.HeatmapTrackSpec](),
		}
	}
	return o.progressOf(phaseOf(v, snap), snap, v)
}

// commit makes v the visible state unless a newer recompute has already been committed.
// Commits are serialised by commitMu; mu is not held while the engine lays out columns.
func (o *Oncoprint) commit(v *View, frame render.Frame, isDriver oncoprint.DriverPredicate) *View {
	o.commitMu.Lock()
	defer o.commitMu.Unlock()

	o.mu.Lock()
	current, committedGen, fitted := o.committed, o.committedGen, o.controls.zoomFitted
	o.mu.Unlock()
	if v.Generation < committedGen {
		o.logger.WithFields(logrus.Fields{
			"generation": v.Generation,
			"committed":  committedGen,
		}).Debug("Discarding stale oncoprint recompute")
		return current
	}

	o.engine.SetFrame(frame)
	fit := !fitted && v.GeneticTracks.IsComplete() && len(v.AlteredKeys) > 0
	if fit {
		o.engine.SetHorzZoomToFit(v.AlteredKeys)
	}
	v.IDOrder = o.engine.IDOrder()
	v.HorzZoom = o.engine.HorzZoom()

	o.mu.Lock()
	defer o.mu.Unlock()
	if fit {
		o.controls.zoomFitted = true
	}
	o.committed = v
	o.committedGen = v.Generation
	o.frame = frame
	o.isDriver = isDriver
	return v
}
