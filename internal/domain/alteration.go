package domain

import "strconv"

// AlterationEvent is one molecular event of one case in one molecular profile. The concrete
// variants are MutationEvent, CNAEvent and ContinuousEvent; the interface is sealed.
type AlterationEvent interface {
	// AlterationType is the variant tag.
	AlterationType() MolecularAlterationType
	// Header returns the fields common to every variant.
	Header() EventHeader

	isAlterationEvent()
}

// EventHeader carries the identity shared by all alteration events.
type EventHeader struct {
	UniqueSampleKey    string `json:"uniqueSampleKey"`
	UniquePatientKey   string `json:"uniquePatientKey"`
	SampleID           string `json:"sampleId"`
	PatientID          string `json:"patientId"`
	StudyID            string `json:"studyId"`
	HugoGeneSymbol     string `json:"hugoGeneSymbol"`
	EntrezGeneID       int    `json:"entrezGeneId"`
	MolecularProfileID string `json:"molecularProfileId"`
}

// MutationEvent is a MUTATION_EXTENDED event.
type MutationEvent struct {
	EventHeader
	MutationType    string `json:"mutationType"`
	ProteinChange   string `json:"proteinChange"`
	Keyword         string `json:"keyword,omitempty"`
	Chromosome      string `json:"chr,omitempty"`
	StartPosition   int64  `json:"startPosition,omitempty"`
	EndPosition     int64  `json:"endPosition,omitempty"`
	ProteinPosStart int    `json:"proteinPosStart,omitempty"`
	// DriverFilter and DriverTiersFilter carry custom driver annotations loaded with the
	// mutation data ("Putative_Driver" / "Putative_Passenger").
	DriverFilter           string `json:"driverFilter,omitempty"`
	DriverTiersFilter      string `json:"driverTiersFilter,omitempty"`
	DriverTiersFilterValue string `json:"driverTiersFilterAnnotation,omitempty"`
}

// CNAEvent is a discrete COPY_NUMBER_ALTERATION call.
type CNAEvent struct {
	EventHeader
	// Value is one of -2 (deep deletion), -1 (shallow deletion), 0 (diploid), 1 (gain), 2 (amplification).
	Value int `json:"value"`
}

// ContinuousEvent is an MRNA_EXPRESSION, PROTEIN_LEVEL or GENERIC_ASSAY value.
type ContinuousEvent struct {
	EventHeader
	Kind  MolecularAlterationType `json:"molecularAlterationType"`
	Value float64                 `json:"value"`
	// RegulationDirection is 1 (up), -1 (down) or 0 when the value is below the z-score threshold.
	RegulationDirection int `json:"regulationDirection"`
}

func (MutationEvent) AlterationType() MolecularAlterationType { return MutationExtended }
func (CNAEvent) AlterationType() MolecularAlterationType      { return CopyNumberAlteration }
func (e ContinuousEvent) AlterationType() MolecularAlterationType {
	return e.Kind
}

func (e MutationEvent) Header() EventHeader   { return e.EventHeader }
func (e CNAEvent) Header() EventHeader        { return e.EventHeader }
func (e ContinuousEvent) Header() EventHeader { return e.EventHeader }

func (MutationEvent) isAlterationEvent()   {}
func (CNAEvent) isAlterationEvent()        {}
func (ContinuousEvent) isAlterationEvent() {}

// Key identifies a mutation for annotation lookups: gene, protein change and genomic position.
func (e MutationEvent) Key() string {
	return MutationKey(e.HugoGeneSymbol, e.ProteinChange, e.Chromosome, e.StartPosition)
}

// MutationKey builds the annotation lookup key of a mutation.
func MutationKey(gene, proteinChange, chromosome string, start int64) string {
	return gene + "|" + proteinChange + "|" + chromosome + "|" + strconv.FormatInt(start, 10)
}

// PositionKey identifies a protein position of a gene, used for recurrence counts.
func (e MutationEvent) PositionKey() string {
	return e.HugoGeneSymbol + "|" + strconv.Itoa(e.ProteinPosStart)
}
