package render

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/oncoprint"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Layout constants of the matrix renderer, in pixels at zoom 1.
const (
	DefaultHorzZoom = 0.5
	MinHorzZoom     = 0.01
	MaxHorzZoom     = 1.0

	cellWidth     = 10.0
	cellGap       = 2.0
	trackHeight   = 20.0
	trackGap      = 4.0
	labelWidth    = 140.0
	viewportWidth = 1050.0
)

// MatrixEngine is a minimal Engine that orders columns on the server and draws the
// oncoprint as a plain grid.
type MatrixEngine struct {
	mu         sync.RWMutex
	frame      Frame
	order      []string
	zoom       float64
	directions map[string]int
	handlers   []SortDirectionHandler
	logger     *logrus.Logger

	// clustered is the last cluster order, reused while the clustered values are unchanged.
	clustered clusterCache
}

type clusterCache struct {
	key   uint64
	order []int
}

// NewMatrixEngine creates an empty engine at the default zoom.
func NewMatrixEngine(logger *logrus.Logger) *MatrixEngine {
	return &MatrixEngine{
		zoom:       DefaultHorzZoom,
		directions: make(map[string]int),
		logger:     logger,
	}
}

// SetFrame replaces the displayed tracks and reorders the columns.
func (e *MatrixEngine) SetFrame(frame Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frame = frame
	e.order = e.computeOrderLocked()
}

func (e *MatrixEngine) HorzZoom() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.zoom
}

// SetHorzZoom clamps z to the supported zoom range.
func (e *MatrixEngine) SetHorzZoom(z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.zoom = clampZoom(z)
}

// SetHorzZoomToFit picks the zoom at which ids fill the viewport.
func (e *MatrixEngine) SetHorzZoomToFit(ids []string) {
	if len(ids) == 0 {
		return
	}
	e.SetHorzZoom(viewportWidth / (float64(len(ids)) * (cellWidth + cellGap)))
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) || z < MinHorzZoom {
		return MinHorzZoom
	}
	if z > MaxHorzZoom {
		return MaxHorzZoom
	}
	return z
}

// IDOrder returns the visible column uids in display order.
func (e *MatrixEngine) IDOrder() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.order...)
}

// SetTrackSortDirection sets a clinical track's sort direction (-1, 0 or 1), reorders, and
// notifies the registered handlers.
func (e *MatrixEngine) SetTrackSortDirection(trackKey string, direction int) {
	e.mu.Lock()
	if direction == 0 {
		delete(e.directions, trackKey)
	} else {
		e.directions[trackKey] = direction
	}
	e.order = e.computeOrderLocked()
	handlers := append([]SortDirectionHandler(nil), e.handlers...)
	e.mu.Unlock()

	for _, h := range handlers {
		h(trackKey, direction)
	}
}

func (e *MatrixEngine) OnSortDirectionChange(fn SortDirectionHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, fn)
}

func (e *MatrixEngine) computeOrderLocked() []string {
	f := e.frame
	hidden := make(map[string]bool, len(f.HiddenIDs))
	for _, id := range f.HiddenIDs {
		hidden[id] = true
	}
	visible := make([]string, 0, len(f.Cases))
	for _, c := range f.Cases {
		if !hidden[c.UID] {
			visible = append(visible, c.UID)
		}
	}

	switch {
	case len(f.Sort.Order) > 0:
		return explicitOrder(visible, f.Sort.Order)
	case f.Sort.ClusterHeatmapTrackGroupIndex != nil:
		if ordered, ok := e.clusterOrder(visible, *f.Sort.ClusterHeatmapTrackGroupIndex); ok {
			return ordered
		}
	}
	return dataOrder(visible, f, e.directions)
}

// explicitOrder keeps the given order and appends ids it does not mention.
func explicitOrder(visible, order []string) []string {
	present := make(map[string]bool, len(visible))
	for _, id := range visible {
		present[id] = true
	}
	out := make([]string, 0, len(visible))
	placed := make(map[string]bool, len(visible))
	for _, id := range order {
		if present[id] && !placed[id] {
			placed[id] = true
			out = append(out, id)
		}
	}
	for _, id := range visible {
		if !placed[id] {
			out = append(out, id)
		}
	}
	return out
}

func (e *MatrixEngine) clusterOrder(visible []string, trackGroup int) ([]string, bool) {
	var tracks []domain.HeatmapTrackSpec
	for _, t := range e.frame.AllHeatmaps() {
		if t.TrackGroupIndex == trackGroup {
			tracks = append(tracks, t)
		}
	}
	if len(tracks) == 0 || len(visible) == 0 {
		e.logger.WithField("track_group", trackGroup).Debug("No heatmap rows to cluster, sorting by data")
		return nil, false
	}

	row := make(map[string]int, len(visible))
	for i, id := range visible {
		row[id] = i
	}
	data := mat.NewDense(len(visible), len(tracks), nil)
	for i := range visible {
		for j := range tracks {
			data.Set(i, j, math.NaN())
		}
	}
	for j, t := range tracks {
		for _, d := range t.Data {
			if i, ok := row[d.UID]; ok && d.ProfileData != nil {
				data.Set(i, j, *d.ProfileData)
			}
		}
	}
	imputeColumns(data)

	key := clusterKey(trackGroup, visible, data)
	idx := e.clustered.order
	if e.clustered.key != key || len(idx) != len(visible) {
		idx = ClusterOrder(data)
		e.clustered = clusterCache{key: key, order: idx}
	} else {
		e.logger.WithField("track_group", trackGroup).Debug("Reusing heatmap cluster order")
	}
	out := make([]string, len(idx))
	for i, k := range idx {
		out[i] = visible[k]
	}
	return out, true
}

// clusterKey fingerprints the clustered columns and their values.
func clusterKey(trackGroup int, visible []string, data *mat.Dense) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(trackGroup))
	h.Write(buf[:])
	for _, id := range visible {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	r, c := data.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(data.At(i, j)))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// caseKey is the per-column sort key used for data ordering.
type caseKey struct {
	genetic  [][3]int
	clinical []clinicalKey
}

type clinicalKey struct {
	na     bool
	number float64
	text   string
	dir    int
}

// dataOrder sorts columns by their genetic tracks in track order (altered first, then
// drivers and mutation type when enabled), then by clinical tracks with a sort direction.
// Remaining ties keep case list order.
func dataOrder(visible []string, f Frame, directions map[string]int) []string {
	keys := make(map[string]*caseKey, len(visible))
	for _, id := range visible {
		keys[id] = &caseKey{}
	}
	for _, track := range f.Genetic {
		seen := make(map[string]bool, len(track.Data))
		for _, d := range track.Data {
			if k, ok := keys[d.UID]; ok {
				k.genetic = append(k.genetic, geneticRank(d, f.Sort))
				seen[d.UID] = true
			}
		}
		for id, k := range keys {
			if !seen[id] {
				k.genetic = append(k.genetic, unalteredRank)
			}
		}
	}
	for _, track := range f.Clinical {
		dir := directions[track.Key]
		if dir == 0 {
			continue
		}
		byID := make(map[string]domain.ClinicalTrackDatum, len(track.Data))
		for _, d := range track.Data {
			byID[d.UID] = d
		}
		for id, k := range keys {
			k.clinical = append(k.clinical, clinicalRank(byID[id], dir))
		}
	}

	out := append([]string(nil), visible...)
	sort.SliceStable(out, func(i, j int) bool {
		return lessCaseKey(keys[out[i]], keys[out[j]])
	})
	return out
}

var unalteredRank = [3]int{1, math.MaxInt32, math.MaxInt32}

func geneticRank(d domain.GeneticTrackDatum, cfg domain.SortConfig) [3]int {
	if !d.Altered() {
		return unalteredRank
	}
	driver, mutation := 0, 0
	if cfg.SortByDrivers {
		driver = 1
		if strings.HasSuffix(d.DispMut, "_rec") {
			driver = 0
		}
	}
	if cfg.SortByMutationType {
		mutation = math.MaxInt16
		if p, ok := oncoprint.MutationRenderPriority[d.DispMut]; ok {
			mutation = p
		}
		if p, ok := oncoprint.CNARenderPriority[d.DispCNA]; ok && p < mutation {
			mutation = p
		}
	}
	return [3]int{0, driver, mutation}
}

func clinicalRank(d domain.ClinicalTrackDatum, dir int) clinicalKey {
	k := clinicalKey{dir: dir}
	switch {
	case d.NA || d.UID == "":
		k.na = true
	case d.NumberVal != nil:
		k.number = *d.NumberVal
	default:
		if v, err := strconv.ParseFloat(d.AttrVal, 64); err == nil {
			k.number = v
		} else {
			k.text = d.AttrVal
		}
	}
	return k
}

func lessCaseKey(a, b *caseKey) bool {
	for i := range a.genetic {
		for x := 0; x < 3; x++ {
			if a.genetic[i][x] != b.genetic[i][x] {
				return a.genetic[i][x] < b.genetic[i][x]
			}
		}
	}
	for i := range a.clinical {
		ca, cb := a.clinical[i], b.clinical[i]
		if ca.na != cb.na {
			return cb.na
		}
		if ca.na {
			continue
		}
		if ca.number != cb.number {
			return (ca.number < cb.number) == (ca.dir > 0)
		}
		if ca.text != cb.text {
			return (ca.text < cb.text) == (ca.dir > 0)
		}
	}
	return false
}

func sortByTrackGroup(tracks []domain.HeatmapTrackSpec) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].TrackGroupIndex < tracks[j].TrackGroupIndex
	})
}

var _ Engine = (*MatrixEngine)(nil)
