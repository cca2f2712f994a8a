package urlstate

import "strings"

// HeatmapGroupParam is one group of the heatmap_track_groups parameter.
type HeatmapGroupParam struct {
	MolecularProfileID string
	Entities           []string
}

// ParseHeatmapTrackGroups decodes `profileId,e1,e2;profileId2,e3`. Groups without a profile
// id or without entities are ignored, duplicate entities are dropped, and a profile listed
// twice keeps its first position with the later entity list.
func ParseHeatmapTrackGroups(raw string) []HeatmapGroupParam {
	var groups []HeatmapGroupParam
	position := make(map[string]int)
	for _, part := range strings.Split(raw, ";") {
		fields := strings.Split(part, ",")
		profileID := strings.TrimSpace(fields[0])
		if profileID == "" {
			continue
		}
		entities := uniqueNonEmpty(fields[1:])
		if len(entities) == 0 {
			continue
		}
		group := HeatmapGroupParam{MolecularProfileID: profileID, Entities: entities}
		if i, ok := position[profileID]; ok {
			groups[i] = group
			continue
		}
		position[profileID] = len(groups)
		groups = append(groups, group)
	}
	return groups
}

// EncodeHeatmapTrackGroups is the inverse of ParseHeatmapTrackGroups. Empty groups are
// skipped.
func EncodeHeatmapTrackGroups(groups []HeatmapGroupParam) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		entities := uniqueNonEmpty(g.Entities)
		if g.MolecularProfileID == "" || len(entities) == 0 {
			continue
		}
		parts = append(parts, g.MolecularProfileID+","+strings.Join(entities, ","))
	}
	return strings.Join(parts, ";")
}

// SplitList splits a separated parameter value, trimming blanks and dropping empty items.
func SplitList(raw, sep string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func uniqueNonEmpty(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
