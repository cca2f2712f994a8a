package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"golang.org/x/time/rate"
)

// HotspotsClient queries Cancer Hotspots for recurrent residues
type HotspotsClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// NewHotspotsClient creates a new Cancer Hotspots client
func NewHotspotsClient(config domain.AnnotationSourceConfig) *HotspotsClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	return &HotspotsClient{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

type hotspotResidue struct {
	HugoSymbol string `json:"hugoSymbol"`
	Residue    string `json:"residue"`
	Type       string `json:"type"`
	TumorCount int    `json:"tumorCount"`
}

var residuePosition = regexp.MustCompile(`^[A-Z*]?(\d+)`)

// ResiduePosition extracts the leading protein position of a residue or protein change
// ("G12" and "G12D" both give "12").
func ResiduePosition(s string) string {
	m := residuePosition.FindStringSubmatch(strings.TrimPrefix(strings.TrimSpace(s), "p."))
	if m == nil {
		return ""
	}
	return m[1]
}

// AnnotateHotspots returns the keys of mutations whose protein position is a known hotspot
func (c *HotspotsClient) AnnotateHotspots(ctx context.Context, mutations []domain.MutationEvent) (map[string]bool, error) {
	byGene := make(map[string][]domain.MutationEvent)
	for _, m := range mutations {
		if m.HugoGeneSymbol == "" || m.ProteinChange == "" {
			continue
		}
		byGene[m.HugoGeneSymbol] = append(byGene[m.HugoGeneSymbol], m)
	}

	result := make(map[string]bool)
	for gene, geneMutations := range byGene {
		residues, err := c.fetchGene(ctx, gene)
		if err != nil {
			return nil, err
		}
		positions := make(map[string]bool, len(residues))
		for _, r := range residues {
			if pos := ResiduePosition(r.Residue); pos != "" {
				positions[pos] = true
			}
		}
		for _, m := range geneMutations {
			if positions[ResiduePosition(m.ProteinChange)] {
				result[m.Key()] = true
			}
		}
	}
	return result, nil
}

func (c *HotspotsClient) fetchGene(ctx context.Context, gene string) ([]hotspotResidue, error) {
	if err := c.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	queryURL := fmt.Sprintf("%s/hotspots/single/%s", c.baseURL, url.PathEscape(gene))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create hotspots request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute hotspots request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("hotspots API returned status %d: %s", resp.StatusCode, string(body))
	}

	var residues []hotspotResidue
	if err := json.NewDecoder(resp.Body).Decode(&residues); err != nil {
		return nil, fmt.Errorf("failed to parse hotspots response: %w", err)
	}
	return residues, nil
}
