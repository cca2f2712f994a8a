package portaltest

import (
	"github.com/oncoprint-server/internal/domain"
)

// Fixture identifiers.
const (
	StudyID          = "acc_tcga"
	MutationProfile  = "acc_tcga_mutations"
	CNAProfile       = "acc_tcga_gistic"
	MRNAProfile      = "acc_tcga_mrna_median_Zscores"
	TreatmentProfile = "acc_tcga_treatment_ic50"
	TargetedPanel    = "IMPACT_KRAS"
)

func sample(id, patient string) domain.Sample {
	return domain.Sample{
		SampleID:         id,
		PatientID:        patient,
		StudyID:          StudyID,
		UniqueSampleKey:  domain.UniqueSampleKey(StudyID, id),
		UniquePatientKey: domain.UniquePatientKey(StudyID, patient),
	}
}

func header(s domain.Sample, gene string, entrez int, profile string) domain.EventHeader {
	return domain.EventHeader{
		UniqueSampleKey:    s.UniqueSampleKey,
		UniquePatientKey:   s.UniquePatientKey,
		SampleID:           s.SampleID,
		PatientID:          s.PatientID,
		StudyID:            s.StudyID,
		HugoGeneSymbol:     gene,
		EntrezGeneID:       entrez,
		MolecularProfileID: profile,
	}
}

func molecular(s domain.Sample, profile, entity string, value float64) domain.MolecularDatum {
	return domain.MolecularDatum{
		MolecularProfileID: profile,
		EntityID:           entity,
		UniqueSampleKey:    s.UniqueSampleKey,
		UniquePatientKey:   s.UniquePatientKey,
		SampleID:           s.SampleID,
		PatientID:          s.PatientID,
		StudyID:            s.StudyID,
		Value:              value,
	}
}

func panelRow(s domain.Sample, profile, panel string) domain.GenePanelData {
	return domain.GenePanelData{
		MolecularProfileID: profile,
		UniqueSampleKey:    s.UniqueSampleKey,
		UniquePatientKey:   s.UniquePatientKey,
		SampleID:           s.SampleID,
		PatientID:          s.PatientID,
		StudyID:            s.StudyID,
		GenePanelID:        panel,
		Profiled:           true,
	}
}

// NewFixture returns a portal holding one small study: patient P1 with samples S1 and S2,
// P2 with S3 and P3 with S4. TP53 and KRAS carry mutations, copy number calls and
// expression values. S4 was sequenced with a panel that only targets KRAS.
func NewFixture() *Portal {
	s1, s2, s3, s4 := sample("S1", "P1"), sample("S2", "P1"), sample("S3", "P2"), sample("S4", "P3")
	tp53 := domain.Gene{EntrezGeneID: 7157, HugoGeneSymbol: "TP53", Type: "protein-coding"}
	kras := domain.Gene{EntrezGeneID: 3845, HugoGeneSymbol: "KRAS", Type: "protein-coding"}

	return &Portal{
		Studies: []domain.Study{{StudyID: StudyID, Name: "Adrenocortical Carcinoma (TCGA)"}},
		SampleLists: map[string]*domain.SampleList{
			StudyID + "_all": {
				SampleListID: StudyID + "_all",
				StudyID:      StudyID,
				Name:         "All samples",
				SampleIDs:    []string{"S1", "S2", "S3", "S4"},
			},
			StudyID + "_sequenced": {
				SampleListID: StudyID + "_sequenced",
				StudyID:      StudyID,
				Name:         "Sequenced samples",
				SampleIDs:    []string{"S1", "S3"},
			},
		},
		Samples: []domain.Sample{s1, s2, s3, s4},
		Profiles: []domain.MolecularProfile{
			{MolecularProfileID: MutationProfile, StudyID: StudyID, Name: "Mutations", MolecularAlterationType: domain.MutationExtended, Datatype: "MAF", ShowProfileInAnalysisTab: true},
			{MolecularProfileID: CNAProfile, StudyID: StudyID, Name: "Putative copy-number alterations from GISTIC", MolecularAlterationType: domain.CopyNumberAlteration, Datatype: "DISCRETE", ShowProfileInAnalysisTab: true},
			{MolecularProfileID: MRNAProfile, StudyID: StudyID, Name: "mRNA Expression z-Scores", MolecularAlterationType: domain.MRNAExpression, Datatype: "Z-SCORE", ShowProfileInAnalysisTab: true},
			{MolecularProfileID: TreatmentProfile, StudyID: StudyID, Name: "IC50 values of compounds", MolecularAlterationType: domain.GenericAssay, Datatype: "LIMIT-VALUE", ShowProfileInAnalysisTab: true},
		},
		Genes: []domain.Gene{tp53, kras},
		Mutations: []domain.MutationEvent{
			{
				EventHeader: header(s1, "TP53", 7157, MutationProfile), MutationType: "Missense_Mutation",
				ProteinChange: "R273H", Chromosome: "17", StartPosition: 7577120, EndPosition: 7577120,
				ProteinPosStart: 273, Keyword: "TP53 R273 missense",
				DriverFilter: "Putative_Driver", DriverTiersFilter: "Tier 1",
			},
			{
				EventHeader: header(s2, "TP53", 7157, MutationProfile), MutationType: "Nonsense_Mutation",
				ProteinChange: "R196*", Chromosome: "17", StartPosition: 7578263, EndPosition: 7578263,
				ProteinPosStart: 196, Keyword: "TP53 truncating",
			},
			{
				EventHeader: header(s3, "KRAS", 3845, MutationProfile), MutationType: "Missense_Mutation",
				ProteinChange: "G12D", Chromosome: "12", StartPosition: 25398284, EndPosition: 25398284,
				ProteinPosStart: 12, Keyword: "KRAS G12 missense",
			},
		},
		MolecularData: []domain.MolecularDatum{
			molecular(s3, CNAProfile, "TP53", -2),
			molecular(s4, CNAProfile, "KRAS", 2),
			molecular(s1, CNAProfile, "KRAS", 0),
			molecular(s4, MRNAProfile, "TP53", 2.5),
			molecular(s2, MRNAProfile, "KRAS", 1.0),
			molecular(s1, MRNAProfile, "TP53", -0.4),
			molecular(s1, TreatmentProfile, "17-AAG", 0.5),
			molecular(s2, TreatmentProfile, "17-AAG", -1.2),
		},
		ClinicalAttributes: []domain.ClinicalAttribute{
			{ClinicalAttributeID: "SAMPLE_TYPE", Datatype: "STRING", DisplayName: "Sample Type", Description: "The type of sample", StudyID: StudyID, Priority: "1"},
			{ClinicalAttributeID: "AGE", Datatype: "NUMBER", DisplayName: "Diagnosis Age", Description: "Age at diagnosis", PatientAttribute: true, StudyID: StudyID, Priority: "1"},
			{ClinicalAttributeID: "MUTATION_COUNT", Datatype: "NUMBER", DisplayName: "Mutation Count", Description: "Number of mutations", StudyID: StudyID, Priority: "1"},
		},
		ClinicalData: []domain.ClinicalDatum{
			{ClinicalAttributeID: "SAMPLE_TYPE", UniqueSampleKey: s1.UniqueSampleKey, UniquePatientKey: s1.UniquePatientKey, SampleID: "S1", PatientID: "P1", StudyID: StudyID, Value: "Primary"},
			{ClinicalAttributeID: "SAMPLE_TYPE", UniqueSampleKey: s2.UniqueSampleKey, UniquePatientKey: s2.UniquePatientKey, SampleID: "S2", PatientID: "P1", StudyID: StudyID, Value: "Metastasis"},
			{ClinicalAttributeID: "SAMPLE_TYPE", UniqueSampleKey: s3.UniqueSampleKey, UniquePatientKey: s3.UniquePatientKey, SampleID: "S3", PatientID: "P2", StudyID: StudyID, Value: "Primary"},
			{ClinicalAttributeID: "SAMPLE_TYPE", UniqueSampleKey: s4.UniqueSampleKey, UniquePatientKey: s4.UniquePatientKey, SampleID: "S4", PatientID: "P3", StudyID: StudyID, Value: "Primary"},
			{ClinicalAttributeID: "AGE", UniquePatientKey: s1.UniquePatientKey, PatientID: "P1", StudyID: StudyID, Value: "60"},
			{ClinicalAttributeID: "AGE", UniquePatientKey: s3.UniquePatientKey, PatientID: "P2", StudyID: StudyID, Value: "45"},
			{ClinicalAttributeID: "AGE", UniquePatientKey: s4.UniquePatientKey, PatientID: "P3", StudyID: StudyID, Value: "71"},
			{ClinicalAttributeID: "MUTATION_COUNT", UniqueSampleKey: s1.UniqueSampleKey, UniquePatientKey: s1.UniquePatientKey, SampleID: "S1", PatientID: "P1", StudyID: StudyID, Value: "5"},
			{ClinicalAttributeID: "MUTATION_COUNT", UniqueSampleKey: s2.UniqueSampleKey, UniquePatientKey: s2.UniquePatientKey, SampleID: "S2", PatientID: "P1", StudyID: StudyID, Value: "3"},
			{ClinicalAttributeID: "MUTATION_COUNT", UniqueSampleKey: s3.UniqueSampleKey, UniquePatientKey: s3.UniquePatientKey, SampleID: "S3", PatientID: "P2", StudyID: StudyID, Value: "1"},
		},
		GenePanelData: []domain.GenePanelData{
			panelRow(s1, MutationProfile, ""),
			panelRow(s2, MutationProfile, ""),
			panelRow(s3, MutationProfile, ""),
			panelRow(s4, MutationProfile, TargetedPanel),
			panelRow(s1, CNAProfile, ""),
			panelRow(s2, CNAProfile, ""),
			panelRow(s3, CNAProfile, ""),
			panelRow(s4, CNAProfile, ""),
		},
		GenePanels: []domain.GenePanel{
			{GenePanelID: TargetedPanel, Description: "KRAS only", Genes: []domain.Gene{kras}},
		},
		PositionCounts: []domain.MutationPositionCount{
			{HugoGeneSymbol: "TP53", EntrezGeneID: 7157, ProteinPosStart: 273, Count: 50},
			{HugoGeneSymbol: "TP53", EntrezGeneID: 7157, ProteinPosStart: 196, Count: 4},
			{HugoGeneSymbol: "KRAS", EntrezGeneID: 3845, ProteinPosStart: 12, Count: 200},
		},
	}
}
