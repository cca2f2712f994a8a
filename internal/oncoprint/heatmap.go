package oncoprint

import (
	"math"

	"github.com/oncoprint-server/internal/domain"
)

// MakeHeatmapTrackData builds one heatmap datum per case from the rows of one entity. In
// patient mode the sample value with the largest magnitude represents the patient, sign
// preserved, first row winning ties. Several rows for one sample break the upstream contract
// and fail the whole track.
func MakeHeatmapTrackData(entityID string, cases []domain.CaseRef, mode domain.ColumnMode, rows []domain.MolecularDatum) ([]domain.HeatmapTrackDatum, error) {
	byCase := make(map[string][]float64)
	for _, row := range rows {
		if entityID != "" && row.EntityID != entityID {
			continue
		}
		key := row.UniqueSampleKey
		if mode == domain.ColumnModePatient {
			key = row.UniquePatientKey
		}
		byCase[key] = append(byCase[key], row.Value)
	}

	data := make([]domain.HeatmapTrackDatum, 0, len(cases))
	for _, c := range cases {
		datum := domain.HeatmapTrackDatum{CaseRef: c}
		values := byCase[c.UID]
		switch {
		case len(values) == 0:
			datum.NA = true
		case len(values) == 1:
			v := values[0]
			datum.ProfileData = &v
		case mode == domain.ColumnModeSample:
			return nil, domain.InvariantError("%d heatmap rows for sample %s and entity %s", len(values), c.UID, entityID)
		default:
			v := maxAbs(values)
			datum.ProfileData = &v
		}
		data = append(data, datum)
	}
	return data, nil
}

func maxAbs(values []float64) float64 {
	best := values[0]
	for _, v := range values[1:] {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}
