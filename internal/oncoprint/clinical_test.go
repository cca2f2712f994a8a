package oncoprint

import (
	"testing"

	"github.com/oncoprint-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var clinicalSamples = []domain.Sample{
	{SampleID: "S1", PatientID: "P1", StudyID: "brca", UniqueSampleKey: "brca:S1", UniquePatientKey: "brca:P1"},
	{SampleID: "S2", PatientID: "P1", StudyID: "brca", UniqueSampleKey: "brca:S2", UniquePatientKey: "brca:P1"},
	{SampleID: "S3", PatientID: "P2", StudyID: "luad", UniqueSampleKey: "luad:S3", UniquePatientKey: "luad:P2"},
}

func clinicalRow(attr, sampleKey, patientKey, value string) domain.ClinicalDatum {
	return domain.ClinicalDatum{ClinicalAttributeID: attr, UniqueSampleKey: sampleKey, UniquePatientKey: patientKey, Value: value}
}

func TestDefaultClinicalAttributeIDs(t *testing.T) {
	ids := DefaultClinicalAttributeIDs(2, 3, 2, []string{"brca_mutations"})
	assert.Equal(t, []string{AttrCancerStudy, AttrNumSamplesPerPatient, "PROFILED_IN_brca_mutations"}, ids)

	ids = DefaultClinicalAttributeIDs(1, 2, 2, nil)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestClinicalAttributeCatalog(t *testing.T) {
	local := LocalClinicalAttributes([]domain.MolecularProfile{{MolecularProfileID: "brca_mutations", Name: "Mutations"}})
	upstream := []domain.ClinicalAttribute{
		{ClinicalAttributeID: "OS_STATUS", DisplayName: "Overall Survival Status"},
		{ClinicalAttributeID: "AGE", DisplayName: "Diagnosis Age"},
		{ClinicalAttributeID: AttrCancerStudy, DisplayName: "Cancer Study"},
	}

	catalog := ClinicalAttributeCatalog(local, upstream)

	ids := make([]string, 0, len(catalog))
	for _, a := range catalog {
		ids = append(ids, a.ClinicalAttributeID)
	}
	assert.Equal(t, []string{AttrCancerStudy, AttrNumSamplesPerPatient, "PROFILED_IN_brca_mutations", "AGE", "OS_STATUS"}, ids)
	assert.Equal(t, "Profiled in Mutations", catalog[2].DisplayName)
}

func TestLocalClinicalData(t *testing.T) {
	coverage := domain.CoverageInformation{
		Samples: map[string]domain.CaseCoverage{
			"brca:S1": {AllGenes: []domain.GenePanelDatum{{MolecularProfileID: "m", Profiled: true}}},
		},
		Patients: map[string]domain.CaseCoverage{
			"brca:P1": {AllGenes: []domain.GenePanelDatum{{MolecularProfileID: "m", Profiled: true}}},
		},
	}

	perPatient := LocalClinicalData(AttrNumSamplesPerPatient, domain.ColumnModeSample, clinicalSamples, coverage)
	require.Len(t, perPatient, 2)
	assert.Equal(t, "2", perPatient[0].Value)
	assert.Equal(t, "1", perPatient[1].Value)
	assert.Empty(t, perPatient[0].UniqueSampleKey)

	profiled := LocalClinicalData(ProfiledInAttributeID("m"), domain.ColumnModeSample, clinicalSamples, coverage)
	require.Len(t, profiled, 3)
	assert.Equal(t, []string{"Yes", "No", "No"}, []string{profiled[0].Value, profiled[1].Value, profiled[2].Value})

	profiledPatients := LocalClinicalData(ProfiledInAttributeID("m"), domain.ColumnModePatient, clinicalSamples, coverage)
	require.Len(t, profiledPatients, 2)
	assert.Equal(t, "Yes", profiledPatients[0].Value)
	assert.Equal(t, "No", profiledPatients[1].Value)

	studies := LocalClinicalData(AttrCancerStudy, domain.ColumnModeSample, clinicalSamples, coverage)
	assert.Equal(t, "luad", studies[2].Value)

	assert.Empty(t, LocalClinicalData("AGE", domain.ColumnModeSample, clinicalSamples, coverage))
}

func TestMakeClinicalTrackData_SampleMode(t *testing.T) {
	cases := domain.SampleRefs(clinicalSamples)
	patientKeyOf := map[string]string{"brca:S1": "brca:P1", "brca:S2": "brca:P1", "luad:S3": "luad:P2"}
	attr := domain.ClinicalAttribute{ClinicalAttributeID: "SEX", Datatype: "STRING", PatientAttribute: true}
	rows := []domain.ClinicalDatum{
		clinicalRow("SEX", "", "brca:P1", "Female"),
		clinicalRow("AGE", "", "luad:P2", "61"),
	}

	data := MakeClinicalTrackData(attr, cases, domain.ColumnModeSample, patientKeyOf, rows)

	require.Len(t, data, 3)
	assert.Equal(t, "Female", data[0].AttrVal)
	assert.Equal(t, "Female", data[1].AttrVal, "patient attributes apply to every sample")
	assert.True(t, data[2].NA)
	assert.Equal(t, "SEX", data[2].AttrID)
}

func TestMakeClinicalTrackData_PatientAggregation(t *testing.T) {
	patients := []domain.CaseRef{{UID: "brca:P1", PatientID: "P1", StudyID: "brca"}}

	number := MakeClinicalTrackData(
		domain.ClinicalAttribute{ClinicalAttributeID: "PURITY", Datatype: "NUMBER"},
		patients, domain.ColumnModePatient, nil,
		[]domain.ClinicalDatum{
			clinicalRow("PURITY", "brca:S1", "brca:P1", "0.4"),
			clinicalRow("PURITY", "brca:S2", "brca:P1", "0.6"),
		})
	require.NotNil(t, number[0].NumberVal)
	assert.InDelta(t, 0.5, *number[0].NumberVal, 1e-9)

	mixed := MakeClinicalTrackData(
		domain.ClinicalAttribute{ClinicalAttributeID: "SITE", Datatype: "STRING"},
		patients, domain.ColumnModePatient, nil,
		[]domain.ClinicalDatum{
			clinicalRow("SITE", "brca:S1", "brca:P1", "Breast"),
			clinicalRow("SITE", "brca:S2", "brca:P1", "Lymph node"),
		})
	assert.Equal(t, MixedValue, mixed[0].AttrVal)

	counts := MakeClinicalTrackData(
		domain.ClinicalAttribute{ClinicalAttributeID: AttrMutationSpectrum, Datatype: "COUNTS_MAP"},
		patients, domain.ColumnModePatient, nil,
		[]domain.ClinicalDatum{
			{ClinicalAttributeID: AttrMutationSpectrum, UniquePatientKey: "brca:P1", Counts: map[string]float64{"C>A": 2}},
			{ClinicalAttributeID: AttrMutationSpectrum, UniquePatientKey: "brca:P1", Counts: map[string]float64{"C>A": 1, "T>G": 4}},
		})
	assert.Equal(t, map[string]float64{"C>A": 3, "T>G": 4}, counts[0].CountsVal)
}

func TestMakeClinicalTrackSpec(t *testing.T) {
	fga := MakeClinicalTrackSpec(domain.ClinicalAttribute{ClinicalAttributeID: AttrFractionGenomeAltered, Datatype: "NUMBER", DisplayName: "Fraction Genome Altered"}, nil)
	assert.Equal(t, domain.ClinicalDatatypeNumber, fga.Datatype)
	assert.Equal(t, &[2]float64{0, 1}, fga.NumberRange)
	assert.Equal(t, "CLINICALTRACK_FRACTION_GENOME_ALTERED", fga.Key)

	one, ten := 1.0, 10.0
	mutCount := MakeClinicalTrackSpec(
		domain.ClinicalAttribute{ClinicalAttributeID: AttrMutationCount, Datatype: "NUMBER"},
		[]domain.ClinicalTrackDatum{{NumberVal: &ten}, {NA: true}, {NumberVal: &one}})
	assert.True(t, mutCount.NumberLogScale)
	assert.Equal(t, &[2]float64{1, 10}, mutCount.NumberRange)

	spectrum := MakeClinicalTrackSpec(domain.ClinicalAttribute{ClinicalAttributeID: AttrMutationSpectrum, Datatype: "COUNTS_MAP"}, nil)
	assert.Equal(t, domain.ClinicalDatatypeCounts, spectrum.Datatype)
	assert.Equal(t, []string{"C>A", "C>G", "C>T", "T>A", "T>C", "T>G"}, spectrum.CountsCategoryLabels)
	assert.Equal(t, "#D62B23", spectrum.CountsCategoryFills[5])

	sex := MakeClinicalTrackSpec(domain.ClinicalAttribute{ClinicalAttributeID: "SEX", Datatype: "STRING"}, nil)
	assert.Equal(t, domain.ClinicalDatatypeString, sex.Datatype)
	assert.Equal(t, RuleSetParams{Type: "categorical", CategoryKey: "attr_val"}, ClinicalTrackRuleSet(sex))
}
