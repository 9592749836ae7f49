package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// CrawlStateStore keeps the checkpoint as one JSON string value.
type CrawlStateStore struct {
	client *Client
	name   string
}

// NewCrawlStateStore creates a store for the crawl identified by name
// (usually the output directory).
func NewCrawlStateStore(client *Client, name string) *CrawlStateStore {
	return &CrawlStateStore{client: client, name: name}
}

var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)

// Load returns the saved state.
func (s *CrawlStateStore) Load(ctx context.Context) (*domain.CrawlState, error) {
	data, err := s.client.Get(ctx, s.client.key("state", s.name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get state: %w", err)
	}

	var state domain.CrawlState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if state.Cursors == nil {
		state.Cursors = make(map[string]domain.CrawlCursor)
	}
	return &state, nil
}

// Save replaces the saved state.
func (s *CrawlStateStore) Save(ctx context.Context, state *domain.CrawlState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}
	snapshot := state.Clone()
	snapshot.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.client.key("state", s.name), data, 0).Err(); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}
