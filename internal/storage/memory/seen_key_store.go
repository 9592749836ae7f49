package memory

import (
	"context"
	"sort"
	"sync"

	"thorswap-lab/internal/storage"
)

// SeenKeyStore is an in-memory implementation of storage.SeenKeyStore.
type SeenKeyStore struct {
	mu   sync.RWMutex
	seen map[string]map[string]struct{}
}

// NewSeenKeyStore creates a new in-memory seen-key store.
func NewSeenKeyStore() *SeenKeyStore {
	return &SeenKeyStore{
		seen: make(map[string]map[string]struct{}),
	}
}

// IsSeen checks if key has been written for assets.
func (s *SeenKeyStore) IsSeen(_ context.Context, assets, key string) (bool, error) {
	if assets == "" || key == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.seen[assets][key]
	return ok, nil
}

// MarkSeen records keys as written for assets.
func (s *SeenKeyStore) MarkSeen(_ context.Context, assets string, keys ...string) error {
	if assets == "" {
		return storage.ErrInvalidInput
	}
	for _, k := range keys {
		if k == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.seen[assets]
	if !ok {
		set = make(map[string]struct{}, len(keys))
		s.seen[assets] = set
	}
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return nil
}

// LoadSeen returns all keys written for assets, sorted.
func (s *SeenKeyStore) LoadSeen(_ context.Context, assets string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.seen[assets]))
	for k := range s.seen[assets] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

var _ storage.SeenKeyStore = (*SeenKeyStore)(nil)
