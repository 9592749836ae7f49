// Package file provides storage implementations backed by local files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// CrawlStateStore keeps the crawl checkpoint in a single JSON file.
// Writes go to a temp file renamed over the target, so a crash never
// leaves a truncated state behind.
type CrawlStateStore struct {
	path string
	now  func() time.Time
}

// NewCrawlStateStore creates the parent directory of path if needed.
func NewCrawlStateStore(path string) (*CrawlStateStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	return &CrawlStateStore{path: path, now: time.Now}, nil
}

// Path returns the state file location.
func (s *CrawlStateStore) Path() string {
	return s.path
}

// Load reads the state file. Returns ErrNotFound if it does not exist or is empty.
func (s *CrawlStateStore) Load(_ context.Context) (*domain.CrawlState, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(b) == 0 {
		return nil, storage.ErrNotFound
	}

	var state domain.CrawlState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if state.Cursors == nil {
		state.Cursors = make(map[string]domain.CrawlCursor)
	}
	return &state, nil
}

// Save writes state atomically, stamping UpdatedAt.
func (s *CrawlStateStore) Save(_ context.Context, state *domain.CrawlState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}

	snapshot := state.Clone()
	snapshot.UpdatedAt = s.now().UTC()

	b, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)
