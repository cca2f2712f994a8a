package domain

import (
	"context"
)

// SampleIdentifier addresses one sample across studies
type SampleIdentifier struct {
	StudyID  string `json:"studyId"`
	SampleID string `json:"sampleId"`
}

// SampleList is a named case set of one study
type SampleList struct {
	SampleListID string   `json:"sampleListId"`
	StudyID      string   `json:"studyId"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	SampleIDs    []string `json:"sampleIds"`
}

// GenePanelData records the gene panel a sample was assayed with in one molecular profile.
// An empty GenePanelID with Profiled set means whole exome/genome coverage.
type GenePanelData struct {
	MolecularProfileID string `json:"molecularProfileId"`
	UniqueSampleKey    string `json:"uniqueSampleKey"`
	UniquePatientKey   string `json:"uniquePatientKey"`
	SampleID           string `json:"sampleId"`
	PatientID          string `json:"patientId"`
	StudyID            string `json:"studyId"`
	GenePanelID        string `json:"genePanelId,omitempty"`
	Profiled           bool   `json:"profiled"`
}

// GenePanel lists the genes of a targeted panel
type GenePanel struct {
	GenePanelID string `json:"genePanelId"`
	Description string `json:"description,omitempty"`
	Genes       []Gene `json:"genes"`
}

// MutationPositionCount is the number of mutations observed at one protein position portal-wide
type MutationPositionCount struct {
	HugoGeneSymbol  string `json:"hugoGeneSymbol"`
	EntrezGeneID    int    `json:"entrezGeneId"`
	ProteinPosStart int    `json:"proteinPosStart"`
	Count           int    `json:"count"`
}

// MutationAnnotations holds the per-source lookups consulted by the driver predicate.
// OncoKB and Hotspots are keyed by MutationEvent.Key, CBioPortalCounts by PositionKey and
// COSMICCounts by gene and keyword.
type MutationAnnotations struct {
	OncoKB           map[string]bool `json:"oncokb,omitempty"`
	Hotspots         map[string]bool `json:"hotspots,omitempty"`
	CBioPortalCounts map[string]int  `json:"cbioportalCounts,omitempty"`
	COSMICCounts     map[string]int  `json:"cosmicCounts,omitempty"`
}

// COSMICKey builds the COSMIC count lookup key of a mutation.
func COSMICKey(gene, keyword string) string {
	return gene + "|" + keyword
}

// PortalClient fetches study, case and molecular data from a cBioPortal-compatible REST API
type PortalClient interface {
	FetchStudies(ctx context.Context, studyIDs []string) ([]Study, error)
	GetSampleList(ctx context.Context, sampleListID string) (*SampleList, error)
	FetchSamples(ctx context.Context, ids []SampleIdentifier) ([]Sample, error)
	FetchMolecularProfiles(ctx context.Context, studyIDs []string) ([]MolecularProfile, error)
	FetchGenes(ctx context.Context, hugoGeneSymbols []string) ([]Gene, error)
	FetchMutations(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]MutationEvent, error)
	FetchMolecularData(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]MolecularDatum, error)
	FetchGenericAssayData(ctx context.Context, molecularProfileID string, sampleIDs []string, stableIDs []string) ([]MolecularDatum, error)
	FetchGenesetScores(ctx context.Context, molecularProfileID string, sampleIDs []string, genesetIDs []string) ([]MolecularDatum, error)
	FetchClinicalAttributes(ctx context.Context, studyIDs []string) ([]ClinicalAttribute, error)
	FetchClinicalData(ctx context.Context, ids []SampleIdentifier, attributeIDs []string, patientLevel bool) ([]ClinicalDatum, error)
	FetchGenePanelData(ctx context.Context, molecularProfileID string, sampleIDs []string) ([]GenePanelData, error)
	FetchGenePanels(ctx context.Context, genePanelIDs []string) ([]GenePanel, error)
	FetchMutationCountsByPosition(ctx context.Context, positions []MutationPositionCount) ([]MutationPositionCount, error)
}

// OncogenicityAnnotator reports which mutations a curated knowledge base calls oncogenic
type OncogenicityAnnotator interface {
	AnnotateOncogenic(ctx context.Context, mutations []MutationEvent) (map[string]bool, error)
}

// HotspotAnnotator reports which mutations fall on recurrent hotspots
type HotspotAnnotator interface {
	AnnotateHotspots(ctx context.Context, mutations []MutationEvent) (map[string]bool, error)
}

// COSMICCounter returns COSMIC occurrence counts keyed by COSMICKey
type COSMICCounter interface {
	CountCOSMIC(ctx context.Context, mutations []MutationEvent) (map[string]int, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetPortalConfig() *PortalConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
