package render

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/oncoprint-server/internal/domain"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func cases(uids ...string) []domain.CaseRef {
	out := make([]domain.CaseRef, 0, len(uids))
	for _, uid := range uids {
		out = append(out, domain.CaseRef{UID: uid, SampleID: strings.TrimPrefix(uid, "s:"), StudyID: "s"})
	}
	return out
}

func f64(v float64) *float64 { return &v }

func newEngine() *MatrixEngine {
	logger, _ := test.NewNullLogger()
	return NewMatrixEngine(logger)
}

func TestClusterOrder(t *testing.T) {
	data := mat.NewDense(4, 1, []float64{0, 10, 1, 11})
	assert.Equal(t, []int{0, 2, 1, 3}, ClusterOrder(data))

	small := mat.NewDense(2, 1, []float64{5, 1})
	assert.Equal(t, []int{0, 1}, ClusterOrder(small))
}

func TestImputeColumns(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{1, math.NaN(), math.NaN(), math.NaN(), 3, math.NaN()})
	imputeColumns(data)
	assert.Equal(t, 2.0, data.At(1, 0))
	assert.Equal(t, 0.0, data.At(0, 1), "an empty column becomes zero")
}

func TestMatrixEngine_ExplicitOrderSkipsHidden(t *testing.T) {
	e := newEngine()
	e.SetFrame(Frame{
		Cases:     cases("s:A", "s:B", "s:C", "s:D"),
		Sort:      domain.SortConfig{Order: []string{"s:C", "s:A", "s:X"}},
		HiddenIDs: []string{"s:A"},
	})
	assert.Equal(t, []string{"s:C", "s:B", "s:D"}, e.IDOrder())
}

func TestMatrixEngine_DataOrder(t *testing.T) {
	refs := cases("s:A", "s:B", "s:C")
	track := domain.GeneticTrackSpec{
		Key: "0",
		Data: []domain.GeneticTrackDatum{
			{CaseRef: refs[0]},
			{CaseRef: refs[1], Data: []domain.AlterationEvent{domain.MutationEvent{}}, DispMut: "missense"},
			{CaseRef: refs[2], Data: []domain.AlterationEvent{domain.MutationEvent{}}, DispMut: "missense_rec"},
		},
	}

	e := newEngine()
	e.SetFrame(Frame{Cases: refs, Genetic: []domain.GeneticTrackSpec{track}})
	assert.Equal(t, []string{"s:B", "s:C", "s:A"}, e.IDOrder(), "altered first, ties keep case order")

	e.SetFrame(Frame{Cases: refs, Genetic: []domain.GeneticTrackSpec{track}, Sort: domain.SortConfig{SortByDrivers: true}})
	assert.Equal(t, []string{"s:C", "s:B", "s:A"}, e.IDOrder())
}

func TestMatrixEngine_ClusterOrder(t *testing.T) {
	refs := cases("s:A", "s:B", "s:C", "s:D")
	group := 2
	e := newEngine()
	e.SetFrame(Frame{
		Cases: refs,
		Heatmap: []domain.HeatmapTrackSpec{{
			Key:             "p,TP53",
			TrackGroupIndex: 2,
			Data: []domain.HeatmapTrackDatum{
				{CaseRef: refs[0], ProfileData: f64(0)},
				{CaseRef: refs[1], ProfileData: f64(10)},
				{CaseRef: refs[2], ProfileData: f64(1)},
				{CaseRef: refs[3], ProfileData: f64(11)},
			},
		}},
		Sort: domain.SortConfig{ClusterHeatmapTrackGroupIndex: &group},
	})
	assert.Equal(t, []string{"s:A", "s:C", "s:B", "s:D"}, e.IDOrder())

	missing := 7
	e.SetFrame(Frame{Cases: refs, Sort: domain.SortConfig{ClusterHeatmapTrackGroupIndex: &missing}})
	assert.Equal(t, []string{"s:A", "s:B", "s:C", "s:D"}, e.IDOrder(), "no rows falls back to data order")
}

func TestMatrixEngine_ClusterOrderIsCached(t *testing.T) {
	refs := cases("s:A", "s:B", "s:C", "s:D")
	group := 2
	frame := func(values ...float64) Frame {
		data := make([]domain.HeatmapTrackDatum, len(refs))
		for i, ref := range refs {
			data[i] = domain.HeatmapTrackDatum{CaseRef: ref, ProfileData: f64(values[i])}
		}
		return Frame{
			Cases:   refs,
			Heatmap: []domain.HeatmapTrackSpec{{Key: "p,TP53", TrackGroupIndex: group, Data: data}},
			Sort:    domain.SortConfig{ClusterHeatmapTrackGroupIndex: &group},
		}
	}

	e := newEngine()
	e.SetFrame(frame(0, 10, 1, 11))
	first := e.clustered
	require.Len(t, first.order, 4)

	e.SetFrame(frame(0, 10, 1, 11))
	assert.Equal(t, first.key, e.clustered.key)
	assert.True(t, &first.order[0] == &e.clustered.order[0], "unchanged values reuse the order")

	e.SetFrame(frame(0, 1, 10, 11))
	assert.NotEqual(t, first.key, e.clustered.key)
	assert.Equal(t, []string{"s:A", "s:B", "s:C", "s:D"}, e.IDOrder())
}

// naiveClusterOrder rescans every pair per merge; ClusterOrder must agree with it.
func naiveClusterOrder(data *mat.Dense) []int {
	n, _ := data.Dims()
	if n < 3 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = floats.Distance(mat.Row(nil, i, data), mat.Row(nil, j, data), 2)
		}
	}
	leaves := make([][]int, n)
	active := make([]int, n)
	for i := range leaves {
		leaves[i], active[i] = []int{i}, i
	}
	for len(active) > 1 {
		best, ai, bi := math.Inf(1), 0, 1
		for x := range active {
			for y := x + 1; y < len(active); y++ {
				if d := dist[active[x]][active[y]]; d < best {
					best, ai, bi = d, x, y
				}
			}
		}
		a, b := active[ai], active[bi]
		na, nb := float64(len(leaves[a])), float64(len(leaves[b]))
		for _, k := range active {
			if k != a && k != b {
				dist[a][k] = (na*dist[a][k] + nb*dist[b][k]) / (na + nb)
				dist[k][a] = dist[a][k]
			}
		}
		leaves[a] = append(leaves[a], leaves[b]...)
		active = append(active[:bi], active[bi+1:]...)
	}
	return leaves[active[0]]
}

func TestClusterOrder_MatchesExhaustiveSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		n, c := 1+rng.Intn(16), 1+rng.Intn(3)
		values := make([]float64, n*c)
		for i := range values {
			if round%2 == 0 {
				values[i] = float64(rng.Intn(3))
			} else {
				values[i] = rng.Float64()
			}
		}
		data := mat.NewDense(n, c, values)
		require.Equal(t, naiveClusterOrder(data), ClusterOrder(mat.DenseCopyOf(data)), "round %d", round)
	}
}

func TestMatrixEngine_Zoom(t *testing.T) {
	e := newEngine()
	assert.Equal(t, DefaultHorzZoom, e.HorzZoom())

	e.SetHorzZoom(e.HorzZoom() / 0.7)
	assert.InDelta(t, 0.714, e.HorzZoom(), 0.001)
	e.SetHorzZoom(5)
	assert.Equal(t, MaxHorzZoom, e.HorzZoom())
	e.SetHorzZoom(-1)
	assert.Equal(t, MinHorzZoom, e.HorzZoom())

	e.SetHorzZoomToFit(make([]string, 175))
	assert.InDelta(t, 0.5, e.HorzZoom(), 1e-9)
}

func TestMatrixEngine_SortDirection(t *testing.T) {
	refs := cases("s:A", "s:B", "s:C")
	e := newEngine()
	e.SetFrame(Frame{
		Cases: refs,
		Clinical: []domain.ClinicalTrackSpec{{
			Key: "CLINICALTRACK_AGE",
			Data: []domain.ClinicalTrackDatum{
				{CaseRef: refs[0], NumberVal: f64(60)},
				{CaseRef: refs[1], NA: true},
				{CaseRef: refs[2], NumberVal: f64(40)},
			},
		}},
	})

	var got []int
	e.OnSortDirectionChange(func(key string, dir int) {
		assert.Equal(t, "CLINICALTRACK_AGE", key)
		got = append(got, dir)
	})
	e.SetTrackSortDirection("CLINICALTRACK_AGE", 1)
	assert.Equal(t, []string{"s:C", "s:A", "s:B"}, e.IDOrder())
	e.SetTrackSortDirection("CLINICALTRACK_AGE", -1)
	assert.Equal(t, []string{"s:A", "s:C", "s:B"}, e.IDOrder(), "NA stays last")
	assert.Equal(t, []int{1, -1}, got)
}

func exportFrame() Frame {
	refs := cases("s:A", "s:B")
	return Frame{
		Mode:  domain.ColumnModeSample,
		Cases: refs,
		Genetic: []domain.GeneticTrackSpec{{
			Key: "0", Label: "TP53 <mut>", Info: "50%",
			Data: []domain.GeneticTrackDatum{
				{CaseRef: refs[0], Data: []domain.AlterationEvent{
					domain.MutationEvent{MutationType: "Missense_Mutation", ProteinChange: "R273H"},
					domain.CNAEvent{Value: -2},
				}, DispMut: "missense", DispCNA: "homdel"},
				{CaseRef: refs[1]},
			},
		}},
		Clinical: []domain.ClinicalTrackSpec{{
			Key: "CLINICALTRACK_SAMPLE_TYPE", Label: "Sample Type", Datatype: domain.ClinicalDatatypeString,
			Data: []domain.ClinicalTrackDatum{{CaseRef: refs[0], AttrVal: "Primary"}, {CaseRef: refs[1], NA: true}},
		}},
		Heatmap: []domain.HeatmapTrackSpec{{
			Key: "p,KRAS", Label: "KRAS", TrackGroupIndex: 2,
			Data: []domain.HeatmapTrackDatum{{CaseRef: refs[0], ProfileData: f64(-1.5)}, {CaseRef: refs[1], NA: true}},
		}},
		DistinguishMutationType: true,
		ShowWhitespace:          true,
	}
}

func TestMatrixEngine_WriteSVG(t *testing.T) {
	e := newEngine()
	e.SetFrame(exportFrame())

	var buf bytes.Buffer
	require.NoError(t, e.WriteSVG(&buf))
	svg := buf.String()
	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, "TP53 &lt;mut&gt;")
	assert.Contains(t, svg, cnaFills["homdel"])
	assert.Contains(t, svg, "</svg>")
}

func TestMatrixEngine_WritePNG(t *testing.T) {
	e := newEngine()
	e.SetFrame(exportFrame())

	var buf bytes.Buffer
	require.NoError(t, e.WritePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), int(labelWidth))
}

func TestWriteTabular(t *testing.T) {
	frame := exportFrame()
	var buf bytes.Buffer
	err := WriteTabular(&buf, frame, []string{"s:B", "s:A"}, TabularOptions{
		CaseID:   func(uid string) string { return strings.TrimPrefix(uid, "s:") },
		IsDriver: func(m domain.MutationEvent) bool { return m.ProteinChange == "R273H" },
	})
	require.NoError(t, err)

	r := csv.NewReader(&buf)
	r.Comma = '\t'
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+1+5+1)

	assert.Equal(t, []string{"track_name", "track_type", "B", "A"}, rows[0])
	assert.Equal(t, []string{"Sample Type", RowClinical, "", "Primary"}, rows[1])
	assert.Equal(t, []string{"TP53 <mut>", RowCNA, "", "HOMDEL"}, rows[2])
	assert.Equal(t, []string{"TP53 <mut>", RowMutations, "", "R273H (driver)"}, rows[3])
	assert.Equal(t, []string{"KRAS", RowHeatmap, "", "-1.5"}, rows[7])
}
