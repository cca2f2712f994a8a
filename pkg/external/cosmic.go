package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"golang.org/x/time/rate"
)

// COSMICClient handles interactions with the COSMIC database API
type COSMICClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// NewCOSMICClient creates a new COSMIC API client
func NewCOSMICClient(config domain.AnnotationSourceConfig) *COSMICClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	return &COSMICClient{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:  config.APIToken,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// COSMICCountResponse represents mutation keyword counts of one gene
type COSMICCountResponse struct {
	Data []struct {
		GeneName string `json:"gene_name"`
		Keyword  string `json:"keyword"`
		Count    int    `json:"count"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// CountCOSMIC returns COSMIC occurrence counts of the mutation keywords, keyed by COSMICKey
func (c *COSMICClient) CountCOSMIC(ctx context.Context, mutations []domain.MutationEvent) (map[string]int, error) {
	keywords := make(map[string]map[string]bool)
	for _, m := range mutations {
		if m.HugoGeneSymbol == "" || m.Keyword == "" {
			continue
		}
		if keywords[m.HugoGeneSymbol] == nil {
			keywords[m.HugoGeneSymbol] = make(map[string]bool)
		}
		keywords[m.HugoGeneSymbol][m.Keyword] = true
	}

	counts := make(map[string]int)
	for gene, wanted := range keywords {
		response, err := c.GetMutationCounts(ctx, gene)
		if err != nil {
			return nil, err
		}
		for _, entry := range response.Data {
			if wanted[entry.Keyword] {
				counts[domain.COSMICKey(gene, entry.Keyword)] += entry.Count
			}
		}
	}
	return counts, nil
}

// GetMutationCounts queries COSMIC for the keyword counts of a gene
func (c *COSMICClient) GetMutationCounts(ctx context.Context, geneSymbol string) (*COSMICCountResponse, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	queryURL := fmt.Sprintf("%s/api/genes/%s/mutations/count", c.baseURL, url.PathEscape(geneSymbol))

	params := url.Values{
		"format": {"json"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	} else {
		return nil, fmt.Errorf("COSMIC API key is required")
	}

	fullURL := fmt.Sprintf("%s?%s", queryURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create count request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Oncoprint-Server/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute count request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("COSMIC API authentication failed: invalid API key")
	}
	if resp.StatusCode == http.StatusNotFound {
		return &COSMICCountResponse{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("COSMIC API returned status %d: %s", resp.StatusCode, string(body))
	}

	var response COSMICCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to parse count response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("COSMIC API error: %s", response.Error)
	}

	return &response, nil
}
