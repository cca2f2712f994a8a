// Package render lays out assembled oncoprint tracks and exports them. Engine is the boundary
// the orchestrator talks to; MatrixEngine is a small server-side implementation of it.
package render

import (
	"io"

	"github.com/oncoprint-server/internal/domain"
)

// Frame is everything an engine needs to lay out one oncoprint.
type Frame struct {
	Mode  domain.ColumnMode
	Cases []domain.CaseRef

	Genetic          []domain.GeneticTrackSpec
	Clinical         []domain.ClinicalTrackSpec
	Heatmap          []domain.HeatmapTrackSpec
	GenesetHeatmap   []domain.HeatmapTrackSpec
	TreatmentHeatmap []domain.HeatmapTrackSpec

	Sort                    domain.SortConfig
	HiddenIDs               []string
	DistinguishMutationType bool
	DistinguishDrivers      bool
	ShowWhitespace          bool
}

// AllHeatmaps returns every heatmap row ordered by track group.
func (f Frame) AllHeatmaps() []domain.HeatmapTrackSpec {
	out := make([]domain.HeatmapTrackSpec, 0, len(f.Heatmap)+len(f.GenesetHeatmap)+len(f.TreatmentHeatmap))
	out = append(out, f.Heatmap...)
	out = append(out, f.TreatmentHeatmap...)
	out = append(out, f.GenesetHeatmap...)
	sortByTrackGroup(out)
	return out
}

// SortDirectionHandler is called when the sort direction of a track changes.
type SortDirectionHandler func(trackKey string, direction int)

// Engine is a rendering engine holding the current oncoprint.
type Engine interface {
	SetFrame(frame Frame)
	HorzZoom() float64
	SetHorzZoom(z float64)
	SetHorzZoomToFit(ids []string)
	// IDOrder returns the visible column ids in their current on-screen order.
	IDOrder() []string
	SetTrackSortDirection(trackKey string, direction int)
	OnSortDirectionChange(fn SortDirectionHandler)
	WriteSVG(w io.Writer) error
	WritePNG(w io.Writer) error
}

// PDFWriter is implemented by engines that can export PDF.
type PDFWriter interface {
	WritePDF(w io.Writer) error
}

// Factory creates one engine per page.
type Factory func() Engine
