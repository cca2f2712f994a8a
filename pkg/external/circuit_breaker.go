package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oncoprint-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio"`
}

// DefaultCircuitBreakerConfig trips after 3 requests with at least 60% failures
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

// ResilientAnnotator wraps the annotation sources with circuit breakers. A nil source is
// reported as unavailable.
type ResilientAnnotator struct {
	oncoKB   domain.OncogenicityAnnotator
	hotspots domain.HotspotAnnotator
	cosmic   domain.COSMICCounter

	oncoKBBreaker   *gobreaker.CircuitBreaker
	hotspotsBreaker *gobreaker.CircuitBreaker
	cosmicBreaker   *gobreaker.CircuitBreaker

	logger *logrus.Logger
}

// ErrSourceUnavailable is returned for a source that is not configured
var ErrSourceUnavailable = errors.New("annotation source not configured")

// NewResilientAnnotator creates a resilient annotator with one breaker per source
func NewResilientAnnotator(
	oncoKB domain.OncogenicityAnnotator,
	hotspots domain.HotspotAnnotator,
	cosmic domain.COSMICCounter,
	config CircuitBreakerConfig,
	logger *logrus.Logger,
) *ResilientAnnotator {
	newBreaker := func(name string) *gobreaker.CircuitBreaker {
		return gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: config.MaxRequests,
			Interval:    config.Interval,
			Timeout:     config.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"circuit_breaker": name,
					"from_state":      from.String(),
					"to_state":        to.String(),
				}).Warn("Circuit breaker state changed")
			},
		})
	}

	return &ResilientAnnotator{
		oncoKB:          oncoKB,
		hotspots:        hotspots,
		cosmic:          cosmic,
		oncoKBBreaker:   newBreaker("OncoKB"),
		hotspotsBreaker: newBreaker("Hotspots"),
		cosmicBreaker:   newBreaker("COSMIC"),
		logger:          logger,
	}
}

// AnnotateOncogenic queries OncoKB through its breaker
func (r *ResilientAnnotator) AnnotateOncogenic(ctx context.Context, mutations []domain.MutationEvent) (map[string]bool, error) {
	if r.oncoKB == nil {
		return nil, ErrSourceUnavailable
	}
	result, err := r.oncoKBBreaker.Execute(func() (interface{}, error) {
		return r.oncoKB.AnnotateOncogenic(ctx, mutations)
	})
	if err != nil {
		return nil, fmt.Errorf("OncoKB annotation failed: %w", err)
	}
	return result.(map[string]bool), nil
}

// AnnotateHotspots queries Cancer Hotspots through its breaker
func (r *ResilientAnnotator) AnnotateHotspots(ctx context.Context, mutations []domain.MutationEvent) (map[string]bool, error) {
	if r.hotspots == nil {
		return nil, ErrSourceUnavailable
	}
	result, err := r.hotspotsBreaker.Execute(func() (interface{}, error) {
		return r.hotspots.AnnotateHotspots(ctx, mutations)
	})
	if err != nil {
		return nil, fmt.Errorf("hotspot annotation failed: %w", err)
	}
	return result.(map[string]bool), nil
}

// CountCOSMIC queries COSMIC through its breaker
func (r *ResilientAnnotator) CountCOSMIC(ctx context.Context, mutations []domain.MutationEvent) (map[string]int, error) {
	if r.cosmic == nil {
		return nil, ErrSourceUnavailable
	}
	result, err := r.cosmicBreaker.Execute(func() (interface{}, error) {
		return r.cosmic.CountCOSMIC(ctx, mutations)
	})
	if err != nil {
		return nil, fmt.Errorf("COSMIC count failed: %w", err)
	}
	return result.(map[string]int), nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (r *ResilientAnnotator) GetCircuitBreakerStats() map[string]gobreaker.Counts {
	return map[string]gobreaker.Counts{
		"oncokb":   r.oncoKBBreaker.Counts(),
		"hotspots": r.hotspotsBreaker.Counts(),
		"cosmic":   r.cosmicBreaker.Counts(),
	}
}

// GetCircuitBreakerStates returns circuit breaker states
func (r *ResilientAnnotator) GetCircuitBreakerStates() map[string]gobreaker.State {
	return map[string]gobreaker.State{
		"oncokb":   r.oncoKBBreaker.State(),
		"hotspots": r.hotspotsBreaker.State(),
		"cosmic":   r.cosmicBreaker.State(),
	}
}
