// Package domain contains the core entities shared by the oncoprint orchestration service:
// cases (samples and patients), molecular profiles, alteration events and the render-ready
// track records derived from them.
package domain

import (
	"fmt"
	"strings"
)

// MolecularAlterationType is the kind of molecular data a profile holds.
type MolecularAlterationType string

const (
	MutationExtended     MolecularAlterationType = "MUTATION_EXTENDED"
	CopyNumberAlteration MolecularAlterationType = "COPY_NUMBER_ALTERATION"
	MRNAExpression       MolecularAlterationType = "MRNA_EXPRESSION"
	ProteinLevel         MolecularAlterationType = "PROTEIN_LEVEL"
	GenericAssay         MolecularAlterationType = "GENERIC_ASSAY"
	GenesetScore         MolecularAlterationType = "GENESET_SCORE"
	MethylationLevel     MolecularAlterationType = "METHYLATION"
	StructuralVariant    MolecularAlterationType = "STRUCTURAL_VARIANT"
)

// IsHeatmapType reports whether profiles of this type can be shown as heatmap tracks.
func (t MolecularAlterationType) IsHeatmapType() bool {
	switch t {
	case MRNAExpression, ProteinLevel, MethylationLevel, GenericAssay:
		return true
	}
	return false
}

// ColumnMode selects whether oncoprint columns are samples or patients.
type ColumnMode string

const (
	ColumnModeSample  ColumnMode = "sample"
	ColumnModePatient ColumnMode = "patient"
)

// Capitalized returns the mode name with an upper-case first letter ("Sample", "Patient").
func (m ColumnMode) Capitalized() string {
	s := string(m)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Study is a cancer study in scope of the query.
type Study struct {
	StudyID     string `json:"studyId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Sample is one biological sample.
type Sample struct {
	SampleID         string `json:"sampleId"`
	PatientID        string `json:"patientId"`
	StudyID          string `json:"studyId"`
	UniqueSampleKey  string `json:"uniqueSampleKey"`
	UniquePatientKey string `json:"uniquePatientKey"`
}

// Patient is one patient, possibly with several samples.
type Patient struct {
	PatientID        string `json:"patientId"`
	StudyID          string `json:"studyId"`
	UniquePatientKey string `json:"uniquePatientKey"`
}

// Gene identifies a gene by symbol and Entrez id.
type Gene struct {
	EntrezGeneID   int    `json:"entrezGeneId"`
	HugoGeneSymbol string `json:"hugoGeneSymbol"`
	Type           string `json:"type,omitempty"`
}

// MolecularProfile describes one molecular dataset of a study.
type MolecularProfile struct {
	MolecularProfileID       string                  `json:"molecularProfileId"`
	StudyID                  string                  `json:"studyId"`
	Name                     string                  `json:"name"`
	Description              string                  `json:"description,omitempty"`
	MolecularAlterationType  MolecularAlterationType `json:"molecularAlterationType"`
	Datatype                 string                  `json:"datatype"`
	ShowProfileInAnalysisTab bool                    `json:"showProfileInAnalysisTab"`
}

// ClinicalAttribute describes a clinical attribute that can be shown as a clinical track.
type ClinicalAttribute struct {
	ClinicalAttributeID string `json:"clinicalAttributeId"`
	Datatype            string `json:"datatype"`
	Description         string `json:"description"`
	DisplayName         string `json:"displayName"`
	PatientAttribute    bool   `json:"patientAttribute"`
	Priority            string `json:"priority,omitempty"`
	StudyID             string `json:"studyId,omitempty"`
}

// ClinicalDatum is a single clinical value for a sample or patient.
type ClinicalDatum struct {
	ClinicalAttributeID string `json:"clinicalAttributeId"`
	UniqueSampleKey     string `json:"uniqueSampleKey,omitempty"`
	UniquePatientKey    string `json:"uniquePatientKey"`
	SampleID            string `json:"sampleId,omitempty"`
	PatientID           string `json:"patientId"`
	StudyID             string `json:"studyId"`
	Value               string `json:"value"`
	// Counts is set for COUNTS_MAP attributes such as the mutation spectrum.
	Counts map[string]float64 `json:"counts,omitempty"`
}

// MolecularDatum is one continuous value of a heatmap profile for one sample.
type MolecularDatum struct {
	MolecularProfileID string  `json:"molecularProfileId"`
	EntityID           string  `json:"entityId"`
	UniqueSampleKey    string  `json:"uniqueSampleKey"`
	UniquePatientKey   string  `json:"uniquePatientKey"`
	SampleID           string  `json:"sampleId"`
	PatientID          string  `json:"patientId"`
	StudyID            string  `json:"studyId"`
	Value              float64 `json:"value"`
}

// GenePanelDatum records whether a case was profiled in a molecular profile, and by which panel.
type GenePanelDatum struct {
	MolecularProfileID string `json:"molecularProfileId"`
	GenePanelID        string `json:"genePanelId,omitempty"`
	Profiled           bool   `json:"profiled"`
}

// CaseCoverage holds the gene panel data of one case. ByGene lists targeted panels per gene,
// AllGenes lists whole-genome/exome profiles that cover every gene.
type CaseCoverage struct {
	ByGene   map[string][]GenePanelDatum `json:"byGene"`
	AllGenes []GenePanelDatum            `json:"allGenes"`
}

// CoverageInformation is the gene panel coverage index keyed by unique case key.
type CoverageInformation struct {
	Samples  map[string]CaseCoverage `json:"samples"`
	Patients map[string]CaseCoverage `json:"patients"`
}

// ForMode returns the coverage map matching the column mode.
func (c CoverageInformation) ForMode(mode ColumnMode) map[string]CaseCoverage {
	if mode == ColumnModePatient {
		return c.Patients
	}
	return c.Samples
}

// ProfiledIn reports whether the case was profiled in the given molecular profile for any gene.
func (c CaseCoverage) ProfiledIn(molecularProfileID string) bool {
	for _, d := range c.AllGenes {
		if d.MolecularProfileID == molecularProfileID && d.Profiled {
			return true
		}
	}
	for _, panels := range c.ByGene {
		for _, d := range panels {
			if d.MolecularProfileID == molecularProfileID && d.Profiled {
				return true
			}
		}
	}
	return false
}

// CaseAggregatedData is the alteration data of one OQL line (one queried gene),
// partitioned by unique sample key and by unique patient key.
type CaseAggregatedData struct {
	Gene     string                       `json:"gene"`
	OQLLine  string                       `json:"oqlLine"`
	Samples  map[string][]AlterationEvent `json:"-"`
	Patients map[string][]AlterationEvent `json:"-"`
}

// ForMode returns the per-case event lists matching the column mode.
func (c CaseAggregatedData) ForMode(mode ColumnMode) map[string][]AlterationEvent {
	if mode == ColumnModePatient {
		return c.Patients
	}
	return c.Samples
}

// CaseRef is the identity of one oncoprint column.
type CaseRef struct {
	UID       string `json:"uid"`
	SampleID  string `json:"sample,omitempty"`
	PatientID string `json:"patient,omitempty"`
	StudyID   string `json:"study_id"`
}

// CaseID returns the sample id in sample mode refs and the patient id otherwise.
func (c CaseRef) CaseID() string {
	if c.SampleID != "" {
		return c.SampleID
	}
	return c.PatientID
}

// SampleRefs converts samples into column identities.
func SampleRefs(samples []Sample) []CaseRef {
	refs := make([]CaseRef, 0, len(samples))
	for _, s := range samples {
		refs = append(refs, CaseRef{UID: s.UniqueSampleKey, SampleID: s.SampleID, StudyID: s.StudyID})
	}
	return refs
}

// PatientRefs converts patients into column identities.
func PatientRefs(patients []Patient) []CaseRef {
	refs := make([]CaseRef, 0, len(patients))
	for _, p := range patients {
		refs = append(refs, CaseRef{UID: p.UniquePatientKey, PatientID: p.PatientID, StudyID: p.StudyID})
	}
	return refs
}

// UniqueSampleKey builds the unique key of a sample the way the portal does: study and sample
// id joined by a colon.
func UniqueSampleKey(studyID, sampleID string) string {
	return fmt.Sprintf("%s:%s", studyID, sampleID)
}

// UniquePatientKey builds the unique key of a patient.
func UniquePatientKey(studyID, patientID string) string {
	return fmt.Sprintf("%s:%s", studyID, patientID)
}
