package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/oncoprint-server/internal/domain"
	"github.com/oncoprint-server/internal/oncoprint"
)

// Row types of the tabular export.
const (
	RowCNA       = "CNA"
	RowMutations = "MUTATIONS"
	RowFusion    = "FUSION"
	RowMRNA      = "MRNA"
	RowProtein   = "PROTEIN"
	RowClinical  = "CLINICAL"
	RowHeatmap   = "HEATMAP"
)

// TabularOptions configures WriteTabular. CaseID maps a column uid to the printed case id.
// When IsDriver is set, driver mutations are marked.
type TabularOptions struct {
	CaseID   func(uid string) string
	IsDriver oncoprint.DriverPredicate
}

// WriteTabular writes every track of frame as tab separated rows with one column per case
// in order. Clinical tracks come first, then genetic tracks, then heatmaps.
func WriteTabular(w io.Writer, frame Frame, order []string, opts TabularOptions) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	header := make([]string, 0, len(order)+2)
	header = append(header, "track_name", "track_type")
	for _, uid := range order {
		header = append(header, opts.CaseID(uid))
	}
	if err := tw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	write := func(name, kind string, value func(uid string) string) error {
		row := make([]string, 0, len(order)+2)
		row = append(row, name, kind)
		for _, uid := range order {
			row = append(row, value(uid))
		}
		return tw.Write(row)
	}

	for _, t := range frame.Clinical {
		byUID := make(map[string]domain.ClinicalTrackDatum, len(t.Data))
		for _, d := range t.Data {
			byUID[d.UID] = d
		}
		if err := write(t.Label, RowClinical, func(uid string) string { return clinicalText(byUID[uid]) }); err != nil {
			return err
		}
	}

	for _, t := range frame.Genetic {
		byUID := make(map[string]domain.GeneticTrackDatum, len(t.Data))
		for _, d := range t.Data {
			byUID[d.UID] = d
		}
		for _, kind := range []string{RowCNA, RowMutations, RowFusion, RowMRNA, RowProtein} {
			kind := kind
			err := write(t.Label, kind, func(uid string) string {
				return geneticText(byUID[uid].Data, kind, opts.IsDriver)
			})
			if err != nil {
				return err
			}
		}
	}

	for _, t := range frame.AllHeatmaps() {
		byUID := make(map[string]domain.HeatmapTrackDatum, len(t.Data))
		for _, d := range t.Data {
			byUID[d.UID] = d
		}
		err := write(t.Label, RowHeatmap, func(uid string) string {
			d := byUID[uid]
			if d.NA || d.ProfileData == nil {
				return ""
			}
			return strconv.FormatFloat(*d.ProfileData, 'g', -1, 64)
		})
		if err != nil {
			return err
		}
	}

	tw.Flush()
	return tw.Error()
}

func clinicalText(d domain.ClinicalTrackDatum) string {
	switch {
	case d.NA:
		return ""
	case d.NumberVal != nil:
		return strconv.FormatFloat(*d.NumberVal, 'g', -1, 64)
	case d.CountsVal != nil:
		keys := make([]string, 0, len(d.CountsVal))
		for k := range d.CountsVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+":"+strconv.FormatFloat(d.CountsVal[k], 'g', -1, 64))
		}
		return strings.Join(parts, ",")
	}
	return d.AttrVal
}

func geneticText(events []domain.AlterationEvent, kind string, isDriver oncoprint.DriverPredicate) string {
	var parts []string
	for _, event := range events {
		switch e := event.(type) {
		case domain.CNAEvent:
			if kind != RowCNA {
				continue
			}
			if l, ok := oncoprint.CNALabel(e.Value); ok && e.Value != 0 {
				parts = append(parts, strings.ToUpper(l))
			}
		case domain.MutationEvent:
			want := RowMutations
			if oncoprint.SimplifiedMutationType(e.MutationType) == oncoprint.MutationFusion {
				want = RowFusion
			}
			if kind != want {
				continue
			}
			text := e.ProteinChange
			if isDriver != nil && isDriver(e) {
				text += " (driver)"
			}
			parts = append(parts, text)
		case domain.ContinuousEvent:
			want := RowMRNA
			if e.Kind == domain.ProteinLevel {
				want = RowProtein
			}
			if kind != want {
				continue
			}
			switch e.RegulationDirection {
			case 1:
				parts = append(parts, "UP")
			case -1:
				parts = append(parts, "DOWN")
			}
		}
	}
	return strings.Join(parts, ",")
}
