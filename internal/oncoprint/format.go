package oncoprint

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oncoprint-server/internal/domain"
)

// PercentAltered formats altered/sequenced as a percentage. Below 3% one decimal digit is
// kept unless it is zero.
func PercentAltered(altered, sequenced int) string {
	if sequenced <= 0 {
		return "0%"
	}
	p := float64(altered) / float64(sequenced)
	percent := 100 * p
	var fixed string
	if p < 0.03 {
		fixed = strconv.FormatFloat(percent, 'f', 1, 64)
		if strings.HasSuffix(fixed, "0") {
			fixed = strconv.FormatFloat(percent, 'f', 0, 64)
		}
	} else {
		fixed = strconv.FormatFloat(percent, 'f', 0, 64)
	}
	return fixed + "%"
}

func caseNoun(mode domain.ColumnMode) string {
	if mode == domain.ColumnModePatient {
		return "patients"
	}
	return "samples"
}

// AlterationInfo is the header line summarising how many cases carry an alteration.
func AlterationInfo(mode domain.ColumnMode, altered, sequenced, total int) string {
	return fmt.Sprintf("Altered in %d (%s) of %d sequenced %s (%d total)",
		altered, PercentAltered(altered, sequenced), sequenced, caseNoun(mode), total)
}

// CaseSetInfo describes the queried case set.
func CaseSetInfo(name string, patients, samples int) string {
	return fmt.Sprintf("Case Set: %s (%d patients / %d samples)", name, patients, samples)
}
