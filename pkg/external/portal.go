package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// PortalClient talks to a cBioPortal-compatible REST API
type PortalClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	retries    int
	cache      *TieredCache
	logger     *logrus.Logger
}

// NewPortalClient creates a new portal client. cache may be nil.
func NewPortalClient(config domain.PortalConfig, cache *TieredCache, logger *logrus.Logger) *PortalClient {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 20
	}

	return &PortalClient{
		baseURL:  strings.TrimSuffix(config.BaseURL, "/"),
		apiToken: config.APIToken,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		retries:   config.RetryCount,
		cache:     cache,
		logger:    logger,
	}
}

// Wire shapes of the portal API

type portalGene struct {
	EntrezGeneID   int    `json:"entrezGeneId"`
	HugoGeneSymbol string `json:"hugoGeneSymbol"`
	Type           string `json:"type"`
}

type portalMutation struct {
	UniqueSampleKey             string     `json:"uniqueSampleKey"`
	UniquePatientKey            string     `json:"uniquePatientKey"`
	SampleID                    string     `json:"sampleId"`
	PatientID                   string     `json:"patientId"`
	StudyID                     string     `json:"studyId"`
	MolecularProfileID          string     `json:"molecularProfileId"`
	EntrezGeneID                int        `json:"entrezGeneId"`
	Gene                        portalGene `json:"gene"`
	MutationType                string     `json:"mutationType"`
	ProteinChange               string     `json:"proteinChange"`
	Keyword                     string     `json:"keyword"`
	Chr                         string     `json:"chr"`
	StartPosition               int64      `json:"startPosition"`
	EndPosition                 int64      `json:"endPosition"`
	ProteinPosStart             int        `json:"proteinPosStart"`
	DriverFilter                string     `json:"driverFilter"`
	DriverTiersFilter           string     `json:"driverTiersFilter"`
	DriverTiersFilterAnnotation string     `json:"driverTiersFilterAnnotation"`
}

type portalMolecularDatum struct {
	UniqueSampleKey    string     `json:"uniqueSampleKey"`
	UniquePatientKey   string     `json:"uniquePatientKey"`
	SampleID           string     `json:"sampleId"`
	PatientID          string     `json:"patientId"`
	StudyID            string     `json:"studyId"`
	MolecularProfileID string     `json:"molecularProfileId"`
	EntrezGeneID       int        `json:"entrezGeneId"`
	Gene               portalGene `json:"gene"`
	StableID           string     `json:"stableId"`
	GenesetID          string     `json:"genesetId"`
	Value              string     `json:"value"`
}

type portalClinicalDatum struct {
	ClinicalAttributeID string `json:"clinicalAttributeId"`
	UniqueSampleKey     string `json:"uniqueSampleKey"`
	UniquePatientKey    string `json:"uniquePatientKey"`
	SampleID            string `json:"sampleId"`
	PatientID           string `json:"patientId"`
	StudyID             string `json:"studyId"`
	Value               string `json:"value"`
}

type portalSampleList struct {
	SampleListID string   `json:"sampleListId"`
	StudyID      string   `json:"studyId"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	SampleIDs    []string `json:"sampleIds"`
}

type portalPositionQuery struct {
	EntrezGeneID    int `json:"entrezGeneId"`
	ProteinPosStart int `json:"proteinPosStart"`
	ProteinPosEnd   int `json:"proteinPosEnd"`
}

type portalPositionCount struct {
	EntrezGeneID    int    `json:"entrezGeneId"`
	HugoGeneSymbol  string `json:"hugoGeneSymbol"`
	ProteinPosStart int    `json:"proteinPosStart"`
	Count           int    `json:"count"`
}

// FetchStudies retrieves study summaries
func (p *PortalClient) FetchStudies(ctx context.Context, studyIDs []string) ([]domain.Study, error) {
	var studies []domain.Study
	q := url.Values{"projection": {"SUMMARY"}}
	if err := p.post(ctx, "/studies/fetch", q, studyIDs, &studies); err != nil {
		return nil, err
	}
	return studies, nil
}

// GetSampleList retrieves a case set with its sample ids
func (p *PortalClient) GetSampleList(ctx context.Context, sampleListID string) (*domain.SampleList, error) {
	var list portalSampleList
	q := url.Values{"projection": {"DETAILED"}}
	if err := p.get(ctx, "/sample-lists/"+url.PathEscape(sampleListID), q, &list); err != nil {
		return nil, err
	}
	return &domain.SampleList{
		SampleListID: list.SampleListID,
		StudyID:      list.StudyID,
		Name:         list.Name,
		Description:  list.Description,
		SampleIDs:    list.SampleIDs,
	}, nil
}

// FetchSamples retrieves samples by identifier
func (p *PortalClient) FetchSamples(ctx context.Context, ids []domain.SampleIdentifier) ([]domain.Sample, error) {
	var samples []domain.Sample
	body := map[string]interface{}{"sampleIdentifiers": ids}
	if err := p.post(ctx, "/samples/fetch", nil, body, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// FetchMolecularProfiles retrieves the molecular profiles of the studies
func (p *PortalClient) FetchMolecularProfiles(ctx context.Context, studyIDs []string) ([]domain.MolecularProfile, error) {
	var profiles []domain.MolecularProfile
	body := map[string]interface{}{"studyIds": studyIDs}
	if err := p.post(ctx, "/molecular-profiles/fetch", nil, body, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// FetchGenes resolves Hugo gene symbols
func (p *PortalClient) FetchGenes(ctx context.Context, hugoGeneSymbols []string) ([]domain.Gene, error) {
	var genes []portalGene
	q := url.Values{"geneIdType": {"HUGO_GENE_SYMBOL"}}
	if err := p.post(ctx, "/genes/fetch", q, hugoGeneSymbols, &genes); err != nil {
		return nil, err
	}
	out := make([]domain.Gene, 0, len(genes))
	for _, g := range genes {
		out = append(out, domain.Gene{EntrezGeneID: g.EntrezGeneID, HugoGeneSymbol: g.HugoGeneSymbol, Type: g.Type})
	}
	return out, nil
}

// FetchMutations retrieves the mutations of a profile for the samples and genes
func (p *PortalClient) FetchMutations(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]domain.MutationEvent, error) {
	var rows []portalMutation
	q := url.Values{"projection": {"DETAILED"}}
	body := map[string]interface{}{"sampleIds": sampleIDs, "entrezGeneIds": entrezGeneIDs}
	path := "/molecular-profiles/" + url.PathEscape(molecularProfileID) + "/mutations/fetch"
	if err := p.post(ctx, path, q, body, &rows); err != nil {
		return nil, err
	}

	events := make([]domain.MutationEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.MutationEvent{
			EventHeader: domain.EventHeader{
				UniqueSampleKey:    r.UniqueSampleKey,
				UniquePatientKey:   r.UniquePatientKey,
				SampleID:           r.SampleID,
				PatientID:          r.PatientID,
				StudyID:            r.StudyID,
				HugoGeneSymbol:     r.Gene.HugoGeneSymbol,
				EntrezGeneID:       r.EntrezGeneID,
				MolecularProfileID: r.MolecularProfileID,
			},
			MutationType:           r.MutationType,
			ProteinChange:          r.ProteinChange,
			Keyword:                r.Keyword,
			Chromosome:             r.Chr,
			StartPosition:          r.StartPosition,
			EndPosition:            r.EndPosition,
			ProteinPosStart:        r.ProteinPosStart,
			DriverFilter:           r.DriverFilter,
			DriverTiersFilter:      r.DriverTiersFilter,
			DriverTiersFilterValue: r.DriverTiersFilterAnnotation,
		})
	}
	return events, nil
}

// FetchMolecularData retrieves gene-level values of a discrete or continuous profile. The
// entity id of every row is the Hugo gene symbol.
func (p *PortalClient) FetchMolecularData(ctx context.Context, molecularProfileID string, sampleIDs []string, entrezGeneIDs []int) ([]domain.MolecularDatum, error) {
	var rows []portalMolecularDatum
	q := url.Values{"projection": {"DETAILED"}}
	body := map[string]interface{}{"sampleIds": sampleIDs, "entrezGeneIds": entrezGeneIDs}
	path := "/molecular-profiles/" + url.PathEscape(molecularProfileID) + "/molecular-data/fetch"
	if err := p.post(ctx, path, q, body, &rows); err != nil {
		return nil, err
	}
	return p.convertMolecularData(rows, func(r portalMolecularDatum) string { return r.Gene.HugoGeneSymbol }), nil
}

// FetchGenericAssayData retrieves treatment or other generic assay values keyed by stable id
func (p *PortalClient) FetchGenericAssayData(ctx context.Context, molecularProfileID string, sampleIDs []string, stableIDs []string) ([]domain.MolecularDatum, error) {
	var rows []portalMolecularDatum
	body := map[string]interface{}{"sampleIds": sampleIDs, "genericAssayStableIds": stableIDs}
	path := "/generic_assay_data/" + url.PathEscape(molecularProfileID) + "/fetch"
	if err := p.post(ctx, path, nil, body, &rows); err != nil {
		return nil, err
	}
	return p.convertMolecularData(rows, func(r portalMolecularDatum) string { return r.StableID }), nil
}

// FetchGenesetScores retrieves gene set scores keyed by gene set id
func (p *PortalClient) FetchGenesetScores(ctx context.Context, molecularProfileID string, sampleIDs []string, genesetIDs []string) ([]domain.MolecularDatum, error) {
	var rows []portalMolecularDatum
	body := map[string]interface{}{"sampleIds": sampleIDs, "genesetIds": genesetIDs}
	path := "/genetic-profiles/" + url.PathEscape(molecularProfileID) + "/geneset-genetic-data/fetch"
	if err := p.post(ctx, path, nil, body, &rows); err != nil {
		return nil, err
	}
	return p.convertMolecularData(rows, func(r portalMolecularDatum) string { return r.GenesetID }), nil
}

func (p *PortalClient) convertMolecularData(rows []portalMolecularDatum, entity func(portalMolecularDatum) string) []domain.MolecularDatum {
	out := make([]domain.MolecularDatum, 0, len(rows))
	skipped := 0
	for _, r := range rows {
		value, err := strconv.ParseFloat(strings.TrimSpace(r.Value), 64)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, domain.MolecularDatum{
			MolecularProfileID: r.MolecularProfileID,
			EntityID:           entity(r),
			UniqueSampleKey:    r.UniqueSampleKey,
			UniquePatientKey:   r.UniquePatientKey,
			SampleID:           r.SampleID,
			PatientID:          r.PatientID,
			StudyID:            r.StudyID,
			Value:              value,
		})
	}
	if skipped > 0 {
		p.logger.WithField("skipped", skipped).Debug("Dropped non-numeric molecular values")
	}
	return out
}

// FetchClinicalAttributes retrieves the clinical attributes of the studies
func (p *PortalClient) FetchClinicalAttributes(ctx context.Context, studyIDs []string) ([]domain.ClinicalAttribute, error) {
	var attrs []domain.ClinicalAttribute
	if err := p.post(ctx, "/clinical-attributes/fetch", nil, studyIDs, &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}

// FetchClinicalData retrieves sample or patient level clinical values. For patient level data
// the sample identifiers are reduced to their patients by the caller.
func (p *PortalClient) FetchClinicalData(ctx context.Context, ids []domain.SampleIdentifier, attributeIDs []string, patientLevel bool) ([]domain.ClinicalDatum, error) {
	dataType := "SAMPLE"
	if patientLevel {
		dataType = "PATIENT"
	}
	identifiers := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		identifiers = append(identifiers, map[string]string{"entityId": id.SampleID, "studyId": id.StudyID})
	}
	body := map[string]interface{}{"attributeIds": attributeIDs, "identifiers": identifiers}

	var rows []portalClinicalDatum
	q := url.Values{"clinicalDataType": {dataType}}
	if err := p.post(ctx, "/clinical-data/fetch", q, body, &rows); err != nil {
		return nil, err
	}

	out := make([]domain.ClinicalDatum, 0, len(rows))
	for _, r := range rows {
		d := domain.ClinicalDatum{
			ClinicalAttributeID: r.ClinicalAttributeID,
			UniquePatientKey:    r.UniquePatientKey,
			PatientID:           r.PatientID,
			StudyID:             r.StudyID,
			Value:               r.Value,
		}
		if !patientLevel {
			d.UniqueSampleKey = r.UniqueSampleKey
			d.SampleID = r.SampleID
		}
		out = append(out, d)
	}
	return out, nil
}

// FetchGenePanelData retrieves the gene panel assignment of each sample in a profile
func (p *PortalClient) FetchGenePanelData(ctx context.Context, molecularProfileID string, sampleIDs []string) ([]domain.GenePanelData, error) {
	var rows []domain.GenePanelData
	body := map[string]interface{}{"sampleIds": sampleIDs}
	path := "/molecular-profiles/" + url.PathEscape(molecularProfileID) + "/gene-panel-data/fetch"
	if err := p.post(ctx, path, nil, body, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchGenePanels retrieves panel gene lists
func (p *PortalClient) FetchGenePanels(ctx context.Context, genePanelIDs []string) ([]domain.GenePanel, error) {
	var panels []domain.GenePanel
	q := url.Values{"projection": {"DETAILED"}}
	if err := p.post(ctx, "/gene-panels/fetch", q, genePanelIDs, &panels); err != nil {
		return nil, err
	}
	return panels, nil
}

// FetchMutationCountsByPosition retrieves portal-wide recurrence counts of protein positions
func (p *PortalClient) FetchMutationCountsByPosition(ctx context.Context, positions []domain.MutationPositionCount) ([]domain.MutationPositionCount, error) {
	body := make([]portalPositionQuery, 0, len(positions))
	for _, pos := range positions {
		body = append(body, portalPositionQuery{
			EntrezGeneID:    pos.EntrezGeneID,
			ProteinPosStart: pos.ProteinPosStart,
			ProteinPosEnd:   pos.ProteinPosStart,
		})
	}

	var rows []portalPositionCount
	if err := p.post(ctx, "/mutation-counts-by-position/fetch", nil, body, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.MutationPositionCount, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.MutationPositionCount{
			HugoGeneSymbol:  r.HugoGeneSymbol,
			EntrezGeneID:    r.EntrezGeneID,
			ProteinPosStart: r.ProteinPosStart,
			Count:           r.Count,
		})
	}
	return out, nil
}

func (p *PortalClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return p.do(ctx, http.MethodGet, path, query, nil, out)
}

func (p *PortalClient) post(ctx context.Context, path string, query url.Values, body, out interface{}) error {
	return p.do(ctx, http.MethodPost, path, query, body, out)
}

// do executes one request through the cache when present
func (p *PortalClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	if p.cache == nil {
		return p.roundTrip(ctx, method, path, query, body, out)
	}
	key := RequestKey("portal", method, path, query.Encode(), body)
	return p.cache.Fetch(ctx, key, out, func(ctx context.Context) (interface{}, error) {
		var raw json.RawMessage
		if err := p.roundTrip(ctx, method, path, query, body, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
}

func (p *PortalClient) roundTrip(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	fullURL := p.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode portal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := p.rateLimit.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}

		retry, err := p.attempt(ctx, method, fullURL, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		p.logger.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt + 1,
		}).WithError(err).Warn("Portal request failed, retrying")
	}
	return lastErr
}

// attempt performs a single HTTP exchange. The boolean reports whether a retry may help.
func (p *PortalClient) attempt(ctx context.Context, method, fullURL string, payload []byte, out interface{}) (bool, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create portal request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Oncoprint-Server/1.0")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("failed to execute portal request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return retry, fmt.Errorf("portal API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("failed to parse portal response: %w", err)
	}
	return false, nil
}
