package domain

// CoverageState records whether a gene was assayed for a case. CoverageUnknown means no gene
// panel information exists at all for the pair and is kept distinct from "profiled".
type CoverageState string

const (
	CoverageUnknown     CoverageState = "unknown"
	CoverageProfiled    CoverageState = "profiled"
	CoverageNotProfiled CoverageState = "not_profiled"
)

// GeneticTrackDatum is one cell of a genetic track.
type GeneticTrackDatum struct {
	CaseRef
	Gene          string            `json:"gene"`
	Data          []AlterationEvent `json:"data"`
	CoverageState CoverageState     `json:"coverage_state"`
	Coverage      []GenePanelDatum  `json:"coverage,omitempty"`
	// NA is set only when panel information says the gene was not profiled for the case.
	NA         bool   `json:"na,omitempty"`
	DispCNA    string `json:"disp_cna,omitempty"`
	DispMRNA   string `json:"disp_mrna,omitempty"`
	DispProt   string `json:"disp_prot,omitempty"`
	DispMut    string `json:"disp_mut,omitempty"`
	DispFusion bool   `json:"disp_fusion,omitempty"`
}

// Altered reports whether the datum has any contributing event.
func (d GeneticTrackDatum) Altered() bool {
	return len(d.Data) > 0
}

// HeatmapTrackDatum is one case's value in a heatmap track.
type HeatmapTrackDatum struct {
	CaseRef
	ProfileData *float64 `json:"profile_data"`
	NA          bool     `json:"na,omitempty"`
}

// ClinicalTrackDatum is one case's value in a clinical track.
type ClinicalTrackDatum struct {
	CaseRef
	AttrID    string             `json:"attr_id"`
	AttrVal   string             `json:"attr_val,omitempty"`
	NumberVal *float64           `json:"attr_val_number,omitempty"`
	CountsVal map[string]float64 `json:"attr_val_counts,omitempty"`
	NA        bool               `json:"na,omitempty"`
}

// GeneticTrackSpec is the render-ready specification of one genetic track (one OQL line).
type GeneticTrackSpec struct {
	Key   string              `json:"key"`
	Label string              `json:"label"`
	OQL   string              `json:"oql"`
	Info  string              `json:"info"`
	Data  []GeneticTrackDatum `json:"data"`
}

// ClinicalTrackDatatype is the renderer datatype of a clinical track.
type ClinicalTrackDatatype string

const (
	ClinicalDatatypeNumber ClinicalTrackDatatype = "number"
	ClinicalDatatypeString ClinicalTrackDatatype = "string"
	ClinicalDatatypeCounts ClinicalTrackDatatype = "counts"
)

// ClinicalTrackSpec is the render-ready specification of one clinical track.
type ClinicalTrackSpec struct {
	Key                  string                `json:"key"`
	Label                string                `json:"label"`
	Description          string                `json:"description"`
	Datatype             ClinicalTrackDatatype `json:"datatype"`
	ValueKey             string                `json:"valueKey"`
	NumberRange          *[2]float64           `json:"numberRange,omitempty"`
	NumberLogScale       bool                  `json:"numberLogScale,omitempty"`
	CountsCategoryLabels []string              `json:"countsCategoryLabels,omitempty"`
	CountsCategoryFills  []string              `json:"countsCategoryFills,omitempty"`
	Data                 []ClinicalTrackDatum  `json:"data"`
}

// HeatmapTrackSpec is the render-ready specification of one heatmap row. The same shape serves
// generic heatmap, gene-set heatmap and treatment heatmap tracks.
type HeatmapTrackSpec struct {
	Key                     string                  `json:"key"`
	Label                   string                  `json:"label"`
	MolecularProfileID      string                  `json:"molecularProfileId"`
	MolecularAlterationType MolecularAlterationType `json:"molecularAlterationType"`
	Datatype                string                  `json:"datatype"`
	EntityID                string                  `json:"entityId"`
	TrackGroupIndex         int                     `json:"trackGroupIndex"`
	Data                    []HeatmapTrackDatum     `json:"data"`
}

// SortModeType enumerates the column sort modes.
type SortModeType string

const (
	SortByData           SortModeType = "data"
	SortAlphabetical     SortModeType = "alphabetical"
	SortByCaseList       SortModeType = "caseList"
	SortByHeatmapCluster SortModeType = "heatmap"
)

// SortMode is the active column sort mode. ClusteredHeatmapProfile is set only for the
// heatmap variant.
type SortMode struct {
	Type                    SortModeType `json:"type"`
	ClusteredHeatmapProfile string       `json:"clusteredHeatmapProfile,omitempty"`
}

// SortConfig is handed to the rendering engine.
type SortConfig struct {
	SortByMutationType            bool     `json:"sortByMutationType"`
	SortByDrivers                 bool     `json:"sortByDrivers"`
	Order                         []string `json:"order,omitempty"`
	ClusterHeatmapTrackGroupIndex *int     `json:"clusterHeatmapTrackGroupIndex,omitempty"`
}
