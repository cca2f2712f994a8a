package oncoprint

import "github.com/oncoprint-server/internal/domain"

// RuleSetParams tells the renderer how to paint a track. Genetic tracks reference a named
// preset; heatmap and clinical tracks carry their parameters inline.
type RuleSetParams struct {
	Type            string       `json:"type"`
	Preset          string       `json:"preset,omitempty"`
	LegendLabel     string       `json:"legend_label,omitempty"`
	ValueKey        string       `json:"value_key,omitempty"`
	CategoryKey     string       `json:"category_key,omitempty"`
	ValueRange      *[2]float64  `json:"value_range,omitempty"`
	LogScale        bool         `json:"log_scale,omitempty"`
	Colors          [][4]float64 `json:"colors,omitempty"`
	ValueStopPoints []float64    `json:"value_stop_points,omitempty"`
	NullColor       string       `json:"null_color,omitempty"`
	Categories      []string     `json:"categories,omitempty"`
	Fills           []string     `json:"fills,omitempty"`
}

// Genetic rule set presets.
const (
	RuleSetSameColorNoRecurrence       = "genetic_rule_set_same_color_for_all_no_recurrence"
	RuleSetSameColorRecurrence         = "genetic_rule_set_same_color_for_all_recurrence"
	RuleSetDifferentColorsNoRecurrence = "genetic_rule_set_different_colors_no_recurrence"
	RuleSetDifferentColorsRecurrence   = "genetic_rule_set_different_colors_recurrence"
)

// GeneticTrackRuleSet picks the genetic preset for the mutation color settings.
func GeneticTrackRuleSet(distinguishMutationType, distinguishDrivers bool) RuleSetParams {
	preset := RuleSetDifferentColorsRecurrence
	switch {
	case !distinguishMutationType && !distinguishDrivers:
		preset = RuleSetSameColorNoRecurrence
	case !distinguishMutationType && distinguishDrivers:
		preset = RuleSetSameColorRecurrence
	case distinguishMutationType && !distinguishDrivers:
		preset = RuleSetDifferentColorsNoRecurrence
	}
	return RuleSetParams{Type: "genetic", Preset: preset}
}

// HeatmapTrackRuleSet is the blue-black-red gradient shared by every heatmap track.
func HeatmapTrackRuleSet() RuleSetParams {
	return RuleSetParams{
		Type:            "gradient",
		LegendLabel:     "Heatmap",
		ValueKey:        "profile_data",
		ValueRange:      &[2]float64{-3, 3},
		Colors:          [][4]float64{{0, 0, 255, 1}, {0, 0, 0, 1}, {255, 0, 0, 1}},
		ValueStopPoints: []float64{-3, 0, 3},
		NullColor:       "rgba(224,224,224,1)",
	}
}

// ClinicalTrackRuleSet derives the rule set of a clinical track from its datatype.
func ClinicalTrackRuleSet(track domain.ClinicalTrackSpec) RuleSetParams {
	switch track.Datatype {
	case domain.ClinicalDatatypeNumber:
		return RuleSetParams{
			Type:       "bar",
			ValueKey:   track.ValueKey,
			ValueRange: track.NumberRange,
			LogScale:   track.NumberLogScale,
		}
	case domain.ClinicalDatatypeCounts:
		return RuleSetParams{
			Type:       "stacked_bar",
			ValueKey:   track.ValueKey,
			Categories: track.CountsCategoryLabels,
			Fills:      track.CountsCategoryFills,
		}
	default:
		return RuleSetParams{Type: "categorical", CategoryKey: track.ValueKey}
	}
}
