package oncoprint

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/oncoprint-server/internal/domain"
)

// Locally computed clinical attributes.
const (
	AttrCancerStudy          = "CANCER_STUDY"
	AttrNumSamplesPerPatient = "NUM_SAMPLES_PER_PATIENT"
	AttrProfiledInPrefix     = "PROFILED_IN_"

	AttrFractionGenomeAltered = "FRACTION_GENOME_ALTERED"
	AttrMutationCount         = "MUTATION_COUNT"
	AttrMutationSpectrum      = "NO_CONTEXT_MUTATION_SIGNATURE"
)

// Clinical attribute datatypes as reported upstream.
const (
	ClinicalTypeNumber    = "NUMBER"
	ClinicalTypeString    = "STRING"
	ClinicalTypeCountsMap = "COUNTS_MAP"
)

// MixedValue replaces differing string values of one patient's samples.
const MixedValue = "Mixed"

const clinicalValueKey = "attr_val"

var (
	mutationSpectrumCategories = []string{"C>A", "C>G", "C>T", "T>A", "T>C", "T>G"}
	mutationSpectrumFills      = []string{"#3D6EB1", "#8EBFDC", "#DFF1F8", "#FCE08E", "#F78F5E", "#D62B23"}
)

// ProfiledInAttributeID returns the id of the "profiled in" attribute of a molecular profile.
func ProfiledInAttributeID(molecularProfileID string) string {
	return AttrProfiledInPrefix + molecularProfileID
}

// IsLocalClinicalAttribute reports whether the attribute is computed by the service instead of
// being fetched upstream.
func IsLocalClinicalAttribute(id string) bool {
	return id == AttrCancerStudy || id == AttrNumSamplesPerPatient || strings.HasPrefix(id, AttrProfiledInPrefix)
}

// LocalClinicalAttributes describes the attributes computed by the service for the given
// genetic profiles.
func LocalClinicalAttributes(profiles []domain.MolecularProfile) []domain.ClinicalAttribute {
	attrs := []domain.ClinicalAttribute{
		{
			ClinicalAttributeID: AttrCancerStudy,
			Datatype:            ClinicalTypeString,
			DisplayName:         "Study of origin",
			Description:         "Study which the sample is a part of.",
		},
		{
			ClinicalAttributeID: AttrNumSamplesPerPatient,
			Datatype:            ClinicalTypeNumber,
			DisplayName:         "# Samples per Patient",
			Description:         "Number of queried samples for each patient.",
			PatientAttribute:    true,
		},
	}
	for _, p := range profiles {
		attrs = append(attrs, domain.ClinicalAttribute{
			ClinicalAttributeID: ProfiledInAttributeID(p.MolecularProfileID),
			Datatype:            ClinicalTypeString,
			DisplayName:         "Profiled in " + p.Name,
			Description:         "Profiled in " + p.Name + ": " + p.Description,
			StudyID:             p.StudyID,
		})
	}
	return attrs
}

// ClinicalAttributeCatalog lists local attributes first, then upstream attributes sorted by
// display name. Duplicate ids keep their first occurrence.
func ClinicalAttributeCatalog(local, upstream []domain.ClinicalAttribute) []domain.ClinicalAttribute {
	sorted := append([]domain.ClinicalAttribute(nil), upstream...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].DisplayName < sorted[j].DisplayName
	})

	seen := make(map[string]bool, len(local)+len(sorted))
	out := make([]domain.ClinicalAttribute, 0, len(local)+len(sorted))
	for _, attr := range append(append([]domain.ClinicalAttribute(nil), local...), sorted...) {
		if seen[attr.ClinicalAttributeID] {
			continue
		}
		seen[attr.ClinicalAttributeID] = true
		out = append(out, attr)
	}
	return out
}

// DefaultClinicalAttributeIDs infers the clinical tracks shown when the user never chose any.
func DefaultClinicalAttributeIDs(numStudies, numSamples, numPatients int, profiledIn []string) []string {
	ids := []string{}
	if numStudies > 1 {
		ids = append(ids, AttrCancerStudy)
	}
	if numSamples > numPatients {
		ids = append(ids, AttrNumSamplesPerPatient)
	}
	for _, profileID := range profiledIn {
		ids = append(ids, ProfiledInAttributeID(profileID))
	}
	return ids
}

// LocalClinicalData computes the data of a local attribute. Sample level data is produced for
// CANCER_STUDY in both modes; PROFILED_IN data is produced at the level of the column mode.
func LocalClinicalData(attrID string, mode domain.ColumnMode, samples []domain.Sample, coverage domain.CoverageInformation) []domain.ClinicalDatum {
	var data []domain.ClinicalDatum
	switch {
	case attrID == AttrCancerStudy:
		for _, s := range samples {
			data = append(data, sampleDatum(attrID, s, s.StudyID))
		}
	case attrID == AttrNumSamplesPerPatient:
		counts := make(map[string]int)
		var order []domain.Sample
		for _, s := range samples {
			if counts[s.UniquePatientKey] == 0 {
				order = append(order, s)
			}
			counts[s.UniquePatientKey]++
		}
		for _, s := range order {
			data = append(data, domain.ClinicalDatum{
				ClinicalAttributeID: attrID,
				UniquePatientKey:    s.UniquePatientKey,
				PatientID:           s.PatientID,
				StudyID:             s.StudyID,
				Value:               strconv.Itoa(counts[s.UniquePatientKey]),
			})
		}
	case strings.HasPrefix(attrID, AttrProfiledInPrefix):
		profileID := strings.TrimPrefix(attrID, AttrProfiledInPrefix)
		if mode == domain.ColumnModePatient {
			seen := make(map[string]bool)
			for _, s := range samples {
				if seen[s.UniquePatientKey] {
					continue
				}
				seen[s.UniquePatientKey] = true
				profiled := coverage.Patients[s.UniquePatientKey].ProfiledIn(profileID)
				data = append(data, domain.ClinicalDatum{
					ClinicalAttributeID: attrID,
					UniquePatientKey:    s.UniquePatientKey,
					PatientID:           s.PatientID,
					StudyID:             s.StudyID,
					Value:               yesNo(profiled),
				})
			}
			break
		}
		for _, s := range samples {
			profiled := coverage.Samples[s.UniqueSampleKey].ProfiledIn(profileID)
			data = append(data, sampleDatum(attrID, s, yesNo(profiled)))
		}
	}
	return data
}

func sampleDatum(attrID string, s domain.Sample, value string) domain.ClinicalDatum {
	return domain.ClinicalDatum{
		ClinicalAttributeID: attrID,
		UniqueSampleKey:     s.UniqueSampleKey,
		UniquePatientKey:    s.UniquePatientKey,
		SampleID:            s.SampleID,
		PatientID:           s.PatientID,
		StudyID:             s.StudyID,
		Value:               value,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ClinicalDatatype maps an upstream attribute datatype to the renderer datatype.
func ClinicalDatatype(attr domain.ClinicalAttribute) domain.ClinicalTrackDatatype {
	switch strings.ToUpper(attr.Datatype) {
	case ClinicalTypeNumber:
		return domain.ClinicalDatatypeNumber
	case ClinicalTypeCountsMap:
		return domain.ClinicalDatatypeCounts
	}
	return domain.ClinicalDatatypeString
}

// MakeClinicalTrackData builds one datum per case. Sample level rows are keyed by sample in
// sample mode; patient level rows apply to every sample of the patient through patientKeyOf.
// In patient mode several sample values are aggregated: numbers by mean, strings to "Mixed"
// when they differ, counts by sum.
func MakeClinicalTrackData(
	attr domain.ClinicalAttribute,
	cases []domain.CaseRef,
	mode domain.ColumnMode,
	patientKeyOf map[string]string,
	rows []domain.ClinicalDatum,
) []domain.ClinicalTrackDatum {
	datatype := ClinicalDatatype(attr)
	bySample := make(map[string][]domain.ClinicalDatum)
	byPatient := make(map[string][]domain.ClinicalDatum)
	for _, row := range rows {
		if row.ClinicalAttributeID != attr.ClinicalAttributeID {
			continue
		}
		if mode == domain.ColumnModeSample && row.UniqueSampleKey != "" {
			bySample[row.UniqueSampleKey] = append(bySample[row.UniqueSampleKey], row)
			continue
		}
		byPatient[row.UniquePatientKey] = append(byPatient[row.UniquePatientKey], row)
	}

	data := make([]domain.ClinicalTrackDatum, 0, len(cases))
	for _, c := range cases {
		values := bySample[c.UID]
		if mode == domain.ColumnModePatient {
			values = byPatient[c.UID]
		} else if len(values) == 0 {
			values = byPatient[patientKeyOf[c.UID]]
		}
		datum := domain.ClinicalTrackDatum{CaseRef: c, AttrID: attr.ClinicalAttributeID}
		aggregateClinical(&datum, datatype, values)
		data = append(data, datum)
	}
	return data
}

func aggregateClinical(datum *domain.ClinicalTrackDatum, datatype domain.ClinicalTrackDatatype, values []domain.ClinicalDatum) {
	switch datatype {
	case domain.ClinicalDatatypeNumber:
		sum, n := 0.0, 0
		for _, v := range values {
			f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
			if err != nil || math.IsNaN(f) {
				continue
			}
			sum += f
			n++
		}
		if n == 0 {
			datum.NA = true
			return
		}
		mean := sum / float64(n)
		datum.NumberVal = &mean
		datum.AttrVal = strconv.FormatFloat(mean, 'f', -1, 64)
	case domain.ClinicalDatatypeCounts:
		if len(values) == 0 {
			datum.NA = true
			return
		}
		counts := make(map[string]float64)
		for _, v := range values {
			for k, n := range v.Counts {
				counts[k] += n
			}
		}
		datum.CountsVal = counts
	default:
		for _, v := range values {
			if v.Value == "" {
				continue
			}
			if datum.AttrVal == "" {
				datum.AttrVal = v.Value
			} else if datum.AttrVal != v.Value {
				datum.AttrVal = MixedValue
				break
			}
		}
		datum.NA = datum.AttrVal == ""
	}
}

// MakeClinicalTrackSpec wraps built data into a render-ready clinical track.
func MakeClinicalTrackSpec(attr domain.ClinicalAttribute, data []domain.ClinicalTrackDatum) domain.ClinicalTrackSpec {
	spec := domain.ClinicalTrackSpec{
		Key:         "CLINICALTRACK_" + attr.ClinicalAttributeID,
		Label:       attr.DisplayName,
		Description: attr.Description,
		Datatype:    ClinicalDatatype(attr),
		ValueKey:    clinicalValueKey,
		Data:        data,
	}
	switch spec.Datatype {
	case domain.ClinicalDatatypeNumber:
		spec.ValueKey = "attr_val_number"
		switch attr.ClinicalAttributeID {
		case AttrFractionGenomeAltered:
			spec.NumberRange = &[2]float64{0, 1}
		case AttrMutationCount:
			spec.NumberLogScale = true
		}
		if attr.DisplayName == "# mutations" {
			spec.NumberLogScale = true
		}
		if spec.NumberRange == nil {
			spec.NumberRange = numberRange(data)
		}
	case domain.ClinicalDatatypeCounts:
		spec.ValueKey = "attr_val_counts"
		if attr.ClinicalAttributeID == AttrMutationSpectrum {
			spec.CountsCategoryLabels = append([]string(nil), mutationSpectrumCategories...)
			spec.CountsCategoryFills = append([]string(nil), mutationSpectrumFills...)
		} else {
			spec.CountsCategoryLabels = countsCategories(data)
		}
	}
	return spec
}

func numberRange(data []domain.ClinicalTrackDatum) *[2]float64 {
	var r *[2]float64
	for _, d := range data {
		if d.NumberVal == nil {
			continue
		}
		v := *d.NumberVal
		if r == nil {
			r = &[2]float64{v, v}
			continue
		}
		r[0] = math.Min(r[0], v)
		r[1] = math.Max(r[1], v)
	}
	return r
}

func countsCategories(data []domain.ClinicalTrackDatum) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range data {
		for k := range d.CountsVal {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
