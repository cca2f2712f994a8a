package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"golang.org/x/time/rate"
)

// oncogenicCalls are the OncoKB oncogenicity values that mark a putative driver
var oncogenicCalls = map[string]bool{
	"oncogenic":           true,
	"likely oncogenic":    true,
	"predicted oncogenic": true,
	"resistance":          true,
}

// OncoKBClient queries OncoKB for oncogenicity of protein changes
type OncoKBClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	batchSize  int
}

// NewOncoKBClient creates a new OncoKB client
func NewOncoKBClient(config domain.AnnotationSourceConfig) *OncoKBClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	return &OncoKBClient{
		baseURL:  strings.TrimSuffix(config.BaseURL, "/"),
		apiToken: config.APIToken,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		batchSize: 200,
	}
}

type oncoKBGene struct {
	HugoSymbol string `json:"hugoSymbol"`
}

type oncoKBQuery struct {
	ID          string     `json:"id"`
	Gene        oncoKBGene `json:"gene"`
	Alteration  string     `json:"alteration"`
	Consequence string     `json:"consequence,omitempty"`
}

type oncoKBAnnotation struct {
	Query struct {
		ID string `json:"id"`
	} `json:"query"`
	Oncogenic string `json:"oncogenic"`
}

// AnnotateOncogenic returns the keys of the mutations OncoKB calls oncogenic
func (c *OncoKBClient) AnnotateOncogenic(ctx context.Context, mutations []domain.MutationEvent) (map[string]bool, error) {
	result := make(map[string]bool)

	seen := make(map[string]bool)
	var queries []oncoKBQuery
	for _, m := range mutations {
		key := m.Key()
		if seen[key] || m.ProteinChange == "" {
			continue
		}
		seen[key] = true
		queries = append(queries, oncoKBQuery{
			ID:          key,
			Gene:        oncoKBGene{HugoSymbol: m.HugoGeneSymbol},
			Alteration:  m.ProteinChange,
			Consequence: m.MutationType,
		})
	}

	for start := 0; start < len(queries); start += c.batchSize {
		end := start + c.batchSize
		if end > len(queries) {
			end = len(queries)
		}
		annotations, err := c.annotateBatch(ctx, queries[start:end])
		if err != nil {
			return nil, err
		}
		for _, a := range annotations {
			if oncogenicCalls[strings.ToLower(a.Oncogenic)] {
				result[a.Query.ID] = true
			}
		}
	}
	return result, nil
}

func (c *OncoKBClient) annotateBatch(ctx context.Context, queries []oncoKBQuery) ([]oncoKBAnnotation, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	payload, err := json.Marshal(queries)
	if err != nil {
		return nil, fmt.Errorf("failed to encode OncoKB request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/annotate/mutations/byProteinChange", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create OncoKB request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute OncoKB request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("OncoKB API authentication failed: invalid token")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("OncoKB API returned status %d: %s", resp.StatusCode, string(body))
	}

	var annotations []oncoKBAnnotation
	if err := json.NewDecoder(resp.Body).Decode(&annotations); err != nil {
		return nil, fmt.Errorf("failed to parse OncoKB response: %w", err)
	}
	return annotations, nil
}
