package redis

import (
	"context"
	"fmt"
	"sort"

	"thorswap-lab/internal/storage"
)

// SeenKeyStore keeps one Redis set per asset pair.
type SeenKeyStore struct {
	client *Client
}

// NewSeenKeyStore creates a Redis-backed seen-key store.
func NewSeenKeyStore(client *Client) *SeenKeyStore {
	return &SeenKeyStore{client: client}
}

var _ storage.SeenKeyStore = (*SeenKeyStore)(nil)

func (s *SeenKeyStore) setKey(assets string) string {
	return s.client.key("seen", assets)
}

// IsSeen checks set membership.
func (s *SeenKeyStore) IsSeen(ctx context.Context, assets, key string) (bool, error) {
	if assets == "" || key == "" {
		return false, storage.ErrInvalidInput
	}
	ok, err := s.client.SIsMember(ctx, s.setKey(assets), key).Result()
	if err != nil {
		return false, fmt.Errorf("sismember: %w", err)
	}
	return ok, nil
}

// MarkSeen adds keys to the set of assets.
func (s *SeenKeyStore) MarkSeen(ctx context.Context, assets string, keys ...string) error {
	if assets == "" {
		return storage.ErrInvalidInput
	}
	if len(keys) == 0 {
		return nil
	}

	members := make([]interface{}, len(keys))
	for i, k := range keys {
		if k == "" {
			return storage.ErrInvalidInput
		}
		members[i] = k
	}
	if err := s.client.SAdd(ctx, s.setKey(assets), members...).Err(); err != nil {
		return fmt.Errorf("sadd: %w", err)
	}
	return nil
}

// LoadSeen returns all members, sorted.
func (s *SeenKeyStore) LoadSeen(ctx context.Context, assets string) ([]string, error) {
	keys, err := s.client.SMembers(ctx, s.setKey(assets)).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
