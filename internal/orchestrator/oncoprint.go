// Package orchestrator drives the oncoprint of one results page. It derives the track
// collections and the sort configuration from the page's URL state, upstream datasets and
// driver annotation settings, and commits them to the rendering engine.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

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

// Options configures a page.
type Options struct {
	Oncoprint  domain.OncoprintConfig
	Annotation domain.AnnotationConfig
	// Engine renders the page; a MatrixEngine is used when nil.
	Engine render.Engine
}

// controls is the page-local state of the oncoprint controls that is not kept in the URL.
type controls struct {
	showUnaltered            bool
	showWhitespace           bool
	showClinicalTrackLegends bool
	showMinimap              bool
	selectedHeatmapProfile   string
	heatmapGeneInput         string
	heatmapGeneInputEdited   bool
	zoomFitted               bool
}

// Oncoprint is the orchestrator of one page.
type Oncoprint struct {
	urls     *urlstate.Store
	registry *trackgroups.Registry
	settings *annotation.Settings
	store    *store.ResultsViewStore
	engine   render.Engine
	options  Options
	logger   *logrus.Logger

	// ctx outlives single requests and parents the upstream loads.
	ctx    context.Context
	cancel context.CancelFunc
	stop   []func()

	generation atomic.Uint64
	commitMu   sync.Mutex

	mu           sync.Mutex
	controls     controls
	committed    *View
	committedGen uint64
	frame        render.Frame
	isDriver     oncoprint.DriverPredicate
	version      uint64
	subs         map[int]chan uint64
	nextSub      int
}

// New creates the page for query q. Upstream data starts loading on the first Recompute.
func New(q urlstate.Query, portal domain.PortalClient, annotators store.Annotators, options Options, logger *logrus.Logger) *Oncoprint {
	urls := urlstate.NewStore(q, urlstate.ResultsViewProperties, logger)
	engine := options.Engine
	if engine == nil {
		engine = render.NewMatrixEngine(logger)
	}
	if options.Oncoprint.DefaultHorzZoom > 0 {
		engine.SetHorzZoom(options.Oncoprint.DefaultHorzZoom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Oncoprint{
		urls:     urls,
		registry: trackgroups.NewRegistry(urls, logger),
		settings: annotation.NewSettings(options.Annotation, logger),
		store:    store.NewResultsViewStore(portal, annotators, logger),
		engine:   engine,
		options:  options,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		controls: controls{
			showUnaltered:            true,
			showWhitespace:           true,
			showClinicalTrackLegends: true,
		},
		subs: make(map[int]chan uint64),
	}
	engine.OnSortDirectionChange(o.onSortDirectionChange)

	urlCh, stopURL := urls.Subscribe()
	storeCh, stopStore := o.store.Subscribe()
	o.stop = []func(){stopURL, stopStore}
	go o.watch(urlCh, storeCh)
	return o
}

// URLs exposes the page's URL state.
func (o *Oncoprint) URLs() *urlstate.Store {
	return o.urls
}

// Close stops the page's loads and subscriptions.
func (o *Oncoprint) Close() {
	o.cancel()
	o.store.Close()
	for _, stop := range o.stop {
		stop()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, ch := range o.subs {
		delete(o.subs, id)
		close(ch)
	}
}

// Wait blocks until the current upstream load has settled.
func (o *Oncoprint) Wait(ctx context.Context) error {
	return o.store.Wait(ctx)
}

// watch turns URL and upstream changes into page invalidations.
func (o *Oncoprint) watch(urlCh, storeCh <-chan uint64) {
	for {
		select {
		case <-o.ctx.Done():
			return
		case _, ok := <-urlCh:
			if !ok {
				return
			}
		case _, ok := <-storeCh:
			if !ok {
				return
			}
		}
		o.invalidate()
	}
}

// Subscribe returns a channel receiving a version number whenever the page needs to be
// recomputed, and a function that cancels the subscription.
func (o *Oncoprint) Subscribe() (<-chan uint64, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextSub
	o.nextSub++
	ch := make(chan uint64, 1)
	o.subs[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if c, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(c)
		}
	}
}

func (o *Oncoprint) invalidate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.version++
	for _, ch := range o.subs {
		select {
		case ch <- o.version:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- o.version:
		default:
		}
	}
}

// syncUpstream feeds upstream results into the page's settings: custom driver tiers found in
// the data, and annotation sources whose lookups failed or are not configured.
func (o *Oncoprint) syncUpstream(snap store.Snapshot) {
	if profiles, ok := snap.MolecularProfiles.Value(); ok {
		o.registry.SetProfiles(profiles)
	}
	if drivers, ok := snap.CustomDrivers.Value(); ok {
		o.settings.SetAvailableTiers(drivers.Tiers)
	}

	sources := []struct {
		source annotation.Source
		result remote.Awaitable
	}{
		{annotation.SourceOncoKB, snap.OncoKB},
		{annotation.SourceHotspots, snap.Hotspots},
		{annotation.SourceCBioPortalCount, snap.CBioPortalCounts},
		{annotation.SourceCOSMICCount, snap.COSMICCounts},
	}
	for _, s := range sources {
		if s.result.Status() != remote.StatusError {
			continue
		}
		if errors.Is(s.result.Err(), store.ErrSourceDisabled) {
			o.settings.MarkDisabled(s.source)
			continue
		}
		o.settings.MarkErrored(s.source, s.result.Err())
	}
}

func (o *Oncoprint) controlsSnapshot() controls {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.controls
}

func (o *Oncoprint) updateControls(fn func(*controls)) {
	o.mu.Lock()
	fn(&o.controls)
	o.mu.Unlock()
	o.invalidate()
}
