package api

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oncoprint-server/internal/orchestrator"
	"github.com/sirupsen/logrus"
)

// PageRegistry holds the open results pages. The least recently used page is closed once the
// registry is full.
type PageRegistry struct {
	pages  *lru.Cache[string, *orchestrator.Oncoprint]
	logger *logrus.Logger
}

// NewPageRegistry creates a registry holding at most size pages
func NewPageRegistry(size int, logger *logrus.Logger) (*PageRegistry, error) {
	pages, err := lru.NewWithEvict(size, func(id string, page *orchestrator.Oncoprint) {
		page.Close()
		logger.WithField("page_id", id).Debug("Closed oncoprint page")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create page registry: %w", err)
	}
	return &PageRegistry{pages: pages, logger: logger}, nil
}

// Add registers page under a new id
func (r *PageRegistry) Add(page *orchestrator.Oncoprint) string {
	id := uuid.New().String()
	if evicted := r.pages.Add(id, page); evicted {
		r.logger.Info("Page registry full, closed least recently used page")
	}
	return id
}

func (r *PageRegistry) Get(id string) (*orchestrator.Oncoprint, bool) {
	return r.pages.Get(id)
}

// Remove closes and forgets a page
func (r *PageRegistry) Remove(id string) bool {
	return r.pages.Remove(id)
}

func (r *PageRegistry) Len() int {
	return r.pages.Len()
}

// Close closes every page
func (r *PageRegistry) Close() {
	r.pages.Purge()
}
