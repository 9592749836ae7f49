package memory

import (
	"context"
	"sync"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
type RecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CanonicalRecord // keyed by id
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		data: make(map[string]*domain.CanonicalRecord),
	}
}

// Insert adds a new record. Returns ErrDuplicateKey if exists.
func (s *RecordStore) Insert(_ context.Context, r *domain.CanonicalRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.ID] = cloneRecord(r)
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *RecordStore) InsertBulk(_ context.Context, records []*domain.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.ID] = struct{}{}
	}

	for _, r := range records {
		s.data[r.ID] = cloneRecord(r)
	}
	return nil
}

// GetByID retrieves a record by id.
func (s *RecordStore) GetByID(_ context.Context, id string) (*domain.CanonicalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// GetByPair retrieves all records of a pair, ordered by (timestamp, id).
func (s *RecordStore) GetByPair(_ context.Context, pair domain.PairGroup) ([]*domain.CanonicalRecord, error) {
	return s.collect(func(r *domain.CanonicalRecord) bool {
		p, ok := r.Pair()
		return ok && p == pair
	}), nil
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *RecordStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.CanonicalRecord, error) {
	return s.collect(func(r *domain.CanonicalRecord) bool {
		return r.Timestamp >= start && r.Timestamp <= end
	}), nil
}

func (s *RecordStore) collect(match func(*domain.CanonicalRecord) bool) []*domain.CanonicalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CanonicalRecord
	for _, r := range s.data {
		if match(r) {
			result = append(result, cloneRecord(r))
		}
	}

	domain.SortRecords(result)
	return result
}

func cloneRecord(r *domain.CanonicalRecord) *domain.CanonicalRecord {
	c := *r
	c.In = append([]domain.Leg(nil), r.In...)
	c.Out = append([]domain.Leg(nil), r.Out...)
	if r.SwapSlipBps != nil {
		v := *r.SwapSlipBps
		c.SwapSlipBps = &v
	}
	return &c
}

var _ storage.RecordStore = (*RecordStore)(nil)
