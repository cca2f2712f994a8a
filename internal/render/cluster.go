package render

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ClusterOrder orders the rows of data by average-linkage hierarchical clustering on
// Euclidean distance and returns the row indices in dendrogram leaf order. Ties merge the
// lowest indices first.
//
// Each cluster caches its nearest neighbour among higher-indexed clusters, so a merge only
// rescans the clusters whose neighbour was involved in it.
func ClusterOrder(data *mat.Dense) []int {
	n, _ := data.Dims()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if n < 3 {
		return order
	}

	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = mat.Row(nil, i, data)
	}
	dist := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dist.SetSym(i, j, floats.Distance(rows[i], rows[j], 2))
		}
	}

	leaves := make([][]int, n)
	for i := range leaves {
		leaves[i] = []int{i}
	}
	active := append([]int(nil), order...)
	alive := make([]bool, n)
	for i := range alive {
		alive[i] = true
	}

	nn := make([]int, n)
	nnDist := make([]float64, n)
	nearest := func(i int) {
		nn[i], nnDist[i] = -1, math.Inf(1)
		for j := i + 1; j < n; j++ {
			if alive[j] {
				if d := dist.At(i, j); d < nnDist[i] {
					nn[i], nnDist[i] = j, d
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		nearest(i)
	}

	for len(active) > 1 {
		a := -1
		for _, i := range active {
			if nn[i] >= 0 && (a < 0 || nnDist[i] < nnDist[a]) {
				a = i
			}
		}
		b := nn[a]

		na, nb := float64(len(leaves[a])), float64(len(leaves[b]))
		for _, k := range active {
			if k == a || k == b {
				continue
			}
			dist.SetSym(a, k, (na*dist.At(a, k)+nb*dist.At(b, k))/(na+nb))
		}
		leaves[a] = append(leaves[a], leaves[b]...)
		leaves[b] = nil
		alive[b] = false
		for x, k := range active {
			if k == b {
				active = append(active[:x], active[x+1:]...)
				break
			}
		}

		for _, i := range active {
			switch {
			case i == a, nn[i] == a, nn[i] == b:
				nearest(i)
			case i < a:
				if d := dist.At(i, a); d < nnDist[i] || (d == nnDist[i] && a < nn[i]) {
					nn[i], nnDist[i] = a, d
				}
			}
		}
	}
	return leaves[active[0]]
}

// imputeColumns replaces NaN cells with their column mean, or zero for empty columns.
func imputeColumns(data *mat.Dense) {
	r, c := data.Dims()
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, data)
		present := col[:0:0]
		for _, v := range col {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		mean := 0.0
		if len(present) > 0 {
			mean = floats.Sum(present) / float64(len(present))
		}
		for i := 0; i < r; i++ {
			if math.IsNaN(data.At(i, j)) {
				data.Set(i, j, mean)
			}
		}
	}
}
