// Package oncoprint turns per-case alteration and profile data into render-ready track data.
// Every function here is pure: the same inputs always give the same output.
package oncoprint

import (
	"math"
	"sort"
)

// Render priorities; a lower number wins. Putative driver ("_rec") forms outrank their own
// non-driver form, and a non-driver missense still outranks nothing above it.
var (
	MutationRenderPriority = map[string]int{
		"trunc_rec":    1,
		"inframe_rec":  2,
		"missense_rec": 3,
		"trunc":        4,
		"inframe":      5,
		"missense":     6,
	}
	CNARenderPriority = map[string]int{
		"amp":     0,
		"homdel":  0,
		"gain":    1,
		"hetloss": 1,
	}
	MRNARenderPriority = map[string]int{
		"up":   0,
		"down": 0,
	}
	ProteinRenderPriority = map[string]int{
		"up":   0,
		"down": 0,
	}
)

// SelectDisplayValue picks the label to display from occurrence counts: lowest priority
// first, then the highest count, then the lexically smallest label so the winner never
// depends on map order. Labels missing from the priority table rank last. An empty map
// yields ("", false).
func SelectDisplayValue(counts map[string]int, priority map[string]int) (string, bool) {
	if len(counts) == 0 {
		return "", false
	}
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	rank := func(label string) int {
		if p, ok := priority[label]; ok {
			return p
		}
		return math.MaxInt
	}
	sort.Slice(labels, func(i, j int) bool {
		a, b := labels[i], labels[j]
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return a < b
	})
	return labels[0], true
}
