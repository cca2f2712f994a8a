package render

import (
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/oncoprint-server/internal/domain"
)

// shape is one filled rectangle of the drawing.
type shape struct {
	X, Y, W, H float64
	Fill       string
}

// label is one track label.
type label struct {
	X, Y float64
	Text string
}

// drawing is the engine-independent layout shared by the SVG and PNG writers.
type drawing struct {
	Width, Height float64
	Shapes        []shape
	Labels        []label
}

const (
	backgroundFill  = "#FFFFFF"
	baseCellFill    = "#D3D3D3"
	notProfiledFill = "#F4F4F4"
	heatmapNullFill = "#E0E0E0"
)

var (
	cnaFills = map[string]string{
		"amp":     "#FF0000",
		"gain":    "#FFB6C1",
		"homdel":  "#0000FF",
		"hetloss": "#8FD8D8",
	}
	mutationFills = map[string]string{
		"missense_rec": "#008000",
		"missense":     "#53D400",
		"inframe_rec":  "#993404",
		"inframe":      "#A68028",
		"trunc_rec":    "#000000",
		"trunc":        "#708090",
	}
	clinicalPalette = []string{
		"#3366CC", "#DC3912", "#FF9900", "#109618", "#990099", "#0099C6",
		"#DD4477", "#66AA00", "#B82E2E", "#316395", "#994499", "#22AA99",
	}
)

const (
	fusionFill       = "#8B00C9"
	singleDriverFill = "#008000"
	singleFill       = "#53D400"
	expUpFill        = "#FF9999"
	expDownFill      = "#6699CC"
)

// layout computes the drawing of the engine's current frame and column order.
func (e *MatrixEngine) layout() drawing {
	e.mu.RLock()
	defer e.mu.RUnlock()

	f := e.frame
	step := (cellWidth + cellGap) * e.zoom
	if !f.ShowWhitespace {
		step = cellWidth * e.zoom
	}
	width := cellWidth * e.zoom
	col := make(map[string]float64, len(e.order))
	for i, id := range e.order {
		col[id] = labelWidth + float64(i)*step
	}

	d := drawing{Width: labelWidth + float64(len(e.order))*step + cellGap}
	y := trackGap

	for _, t := range f.Clinical {
		d.Labels = append(d.Labels, label{X: 4, Y: y + trackHeight*0.7, Text: t.Label})
		for _, datum := range t.Data {
			x, ok := col[datum.UID]
			if !ok {
				continue
			}
			d.Shapes = append(d.Shapes, shape{X: x, Y: y, W: width, H: trackHeight, Fill: clinicalFill(t, datum)})
		}
		y += trackHeight + trackGap
	}

	for _, t := range f.Genetic {
		d.Labels = append(d.Labels, label{X: 4, Y: y + trackHeight*0.7, Text: t.Label + "  " + t.Info})
		for _, datum := range t.Data {
			x, ok := col[datum.UID]
			if !ok {
				continue
			}
			d.Shapes = append(d.Shapes, geneticShapes(datum, x, y, width, f.DistinguishMutationType)...)
		}
		y += trackHeight + trackGap
	}

	group := math.MinInt32
	for _, t := range f.AllHeatmaps() {
		if t.TrackGroupIndex != group && group != math.MinInt32 {
			y += trackGap * 2
		}
		group = t.TrackGroupIndex
		d.Labels = append(d.Labels, label{X: 4, Y: y + trackHeight*0.7, Text: t.Label})
		for _, datum := range t.Data {
			x, ok := col[datum.UID]
			if !ok {
				continue
			}
			d.Shapes = append(d.Shapes, shape{X: x, Y: y, W: width, H: trackHeight, Fill: heatmapFill(datum)})
		}
		y += trackHeight + trackGap
	}

	d.Height = y + trackGap
	return d
}

func geneticShapes(datum domain.GeneticTrackDatum, x, y, w float64, distinguishMutationType bool) []shape {
	base := baseCellFill
	if datum.NA {
		base = notProfiledFill
	}
	shapes := []shape{{X: x, Y: y, W: w, H: trackHeight, Fill: base}}

	if fill, ok := cnaFills[datum.DispCNA]; ok {
		shapes = append(shapes, shape{X: x, Y: y, W: w, H: trackHeight, Fill: fill})
	}
	switch datum.DispMRNA {
	case "up":
		shapes = append(shapes, shape{X: x, Y: y, W: w, H: 2, Fill: expUpFill}, shape{X: x, Y: y + trackHeight - 2, W: w, H: 2, Fill: expUpFill})
	case "down":
		shapes = append(shapes, shape{X: x, Y: y, W: w, H: 2, Fill: expDownFill}, shape{X: x, Y: y + trackHeight - 2, W: w, H: 2, Fill: expDownFill})
	}
	switch datum.DispProt {
	case "up":
		shapes = append(shapes, shape{X: x, Y: y, W: w, H: trackHeight / 5, Fill: "#000000"})
	case "down":
		shapes = append(shapes, shape{X: x, Y: y + trackHeight*4/5, W: w, H: trackHeight / 5, Fill: "#000000"})
	}
	if datum.DispFusion {
		shapes = append(shapes, shape{X: x, Y: y + trackHeight/5, W: w, H: trackHeight / 5, Fill: fusionFill})
	}
	if datum.DispMut != "" {
		fill := mutationFills[datum.DispMut]
		if !distinguishMutationType {
			fill = singleFill
			if strings.HasSuffix(datum.DispMut, "_rec") {
				fill = singleDriverFill
			}
		}
		shapes = append(shapes, shape{X: x, Y: y + trackHeight/3, W: w, H: trackHeight / 3, Fill: fill})
	}
	return shapes
}

func heatmapFill(datum domain.HeatmapTrackDatum) string {
	if datum.NA || datum.ProfileData == nil {
		return heatmapNullFill
	}
	// blue at -3, black at 0, red at +3
	v := math.Max(-3, math.Min(3, *datum.ProfileData)) / 3
	if v < 0 {
		return fmt.Sprintf("#0000%02X", int(math.Round(-v*255)))
	}
	return fmt.Sprintf("#%02X0000", int(math.Round(v*255)))
}

func clinicalFill(track domain.ClinicalTrackSpec, datum domain.ClinicalTrackDatum) string {
	if datum.NA {
		return heatmapNullFill
	}
	switch track.Datatype {
	case domain.ClinicalDatatypeNumber:
		if datum.NumberVal == nil {
			return heatmapNullFill
		}
		lo, hi := 0.0, 1.0
		if track.NumberRange != nil {
			lo, hi = track.NumberRange[0], track.NumberRange[1]
		}
		frac := 1.0
		if hi > lo {
			frac = math.Max(0, math.Min(1, (*datum.NumberVal-lo)/(hi-lo)))
		}
		shade := int(math.Round(230 - frac*180))
		return fmt.Sprintf("#%02X%02XFF", shade, shade)
	case domain.ClinicalDatatypeCounts:
		best, bestCount := "", -1.0
		for i, category := range track.CountsCategoryLabels {
			if c := datum.CountsVal[category]; c > bestCount && i < len(track.CountsCategoryFills) {
				best, bestCount = track.CountsCategoryFills[i], c
			}
		}
		if best == "" {
			return heatmapNullFill
		}
		return best
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(datum.AttrVal))
	return clinicalPalette[h.Sum32()%uint32(len(clinicalPalette))]
}
