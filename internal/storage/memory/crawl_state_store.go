package memory

import (
	"context"
	"sync"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// CrawlStateStore is an in-memory implementation of storage.CrawlStateStore.
type CrawlStateStore struct {
	mu    sync.RWMutex
	state *domain.CrawlState
	saves int
}

// NewCrawlStateStore creates a new in-memory crawl state store.
func NewCrawlStateStore() *CrawlStateStore {
	return &CrawlStateStore{}
}

// Load returns the last saved state.
func (s *CrawlStateStore) Load(_ context.Context) (*domain.CrawlState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state == nil {
		return nil, storage.ErrNotFound
	}
	return s.state.Clone(), nil
}

// Save replaces the stored state.
func (s *CrawlStateStore) Save(_ context.Context, state *domain.CrawlState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (s *CrawlStateStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)
