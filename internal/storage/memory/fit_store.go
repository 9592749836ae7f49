package memory

import (
	"context"
	"sort"
	"sync"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

type fitKey struct {
	runID   string
	pair    domain.PairGroup
	feature domain.Feature
}

// FitStore is an in-memory implementation of storage.FitStore.
type FitStore struct {
	mu   sync.RWMutex
	data map[fitKey]*domain.FittedDistribution
}

// NewFitStore creates a new in-memory fit store.
func NewFitStore() *FitStore {
	return &FitStore{
		data: make(map[fitKey]*domain.FittedDistribution),
	}
}

// InsertBulk adds the fits of one run. Fails entire batch on any duplicate.
func (s *FitStore) InsertBulk(_ context.Context, runID string, fits []*domain.FittedDistribution) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(fits) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[fitKey]struct{}, len(fits))
	for _, f := range fits {
		if f == nil || f.Params == nil {
			return storage.ErrInvalidInput
		}
		k := fitKey{runID: runID, pair: f.Pair, feature: f.Feature}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, f := range fits {
		c := *f
		s.data[fitKey{runID: runID, pair: f.Pair, feature: f.Feature}] = &c
	}
	return nil
}

// GetByRun retrieves all fits of a run, ordered by (pair, feature).
func (s *FitStore) GetByRun(_ context.Context, runID string) ([]*domain.FittedDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FittedDistribution
	for k, f := range s.data {
		if k.runID == runID {
			c := *f
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		pi, pj := result[i].Pair.String(), result[j].Pair.String()
		if pi != pj {
			return pi < pj
		}
		return result[i].Feature < result[j].Feature
	})
	return result, nil
}

// GetByKey retrieves one fit.
func (s *FitStore) GetByKey(_ context.Context, runID string, pair domain.PairGroup, feature domain.Feature) (*domain.FittedDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.data[fitKey{runID: runID, pair: pair, feature: feature}]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *f
	return &c, nil
}

var _ storage.FitStore = (*FitStore)(nil)
