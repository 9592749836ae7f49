package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// CrawlStateStore is a PostgreSQL implementation of storage.CrawlStateStore.
// Uses two tables:
//   - crawl_runs: one row per crawl name with the window and stats
//   - crawl_cursors: per-asset cursors of that crawl
type CrawlStateStore struct {
	pool *Pool
	name string
}

// NewCrawlStateStore creates a store for the crawl identified by name.
func NewCrawlStateStore(pool *Pool, name string) *CrawlStateStore {
	return &CrawlStateStore{pool: pool, name: name}
}

var _ storage.CrawlStateStore = (*CrawlStateStore)(nil)

// Load returns the saved state of this crawl.
func (s *CrawlStateStore) Load(ctx context.Context) (*domain.CrawlState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT min_ts, max_ts, stats, updated_at
		FROM crawl_runs
		WHERE name = $1
	`, s.name)

	var (
		state domain.CrawlState
		stats []byte
	)
	if err := row.Scan(&state.MinTs, &state.MaxTs, &stats, &state.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load crawl run: %w", err)
	}
	if err := json.Unmarshal(stats, &state.Stats); err != nil {
		return nil, fmt.Errorf("decode crawl stats: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT assets, ts, "offset", finished
		FROM crawl_cursors
		WHERE name = $1
	`, s.name)
	if err != nil {
		return nil, fmt.Errorf("load crawl cursors: %w", err)
	}
	defer rows.Close()

	state.Cursors = make(map[string]domain.CrawlCursor)
	for rows.Next() {
		var (
			assets string
			c      domain.CrawlCursor
		)
		if err := rows.Scan(&assets, &c.Ts, &c.Offset, &c.Finished); err != nil {
			return nil, fmt.Errorf("scan crawl cursor: %w", err)
		}
		state.Cursors[assets] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crawl cursors: %w", err)
	}
	return &state, nil
}

// Save upserts the run row and its cursors in one transaction.
func (s *CrawlStateStore) Save(ctx context.Context, state *domain.CrawlState) error {
	if state == nil {
		return storage.ErrInvalidInput
	}
	stats, err := json.Marshal(state.Stats)
	if err != nil {
		return fmt.Errorf("encode crawl stats: %w", err)
	}

	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO crawl_runs (name, min_ts, max_ts, stats, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (name) DO UPDATE
			SET min_ts = EXCLUDED.min_ts,
			    max_ts = EXCLUDED.max_ts,
			    stats = EXCLUDED.stats,
			    updated_at = NOW()
		`, s.name, state.MinTs, state.MaxTs, stats)
		if err != nil {
			return fmt.Errorf("upsert crawl run: %w", err)
		}

		batch := &pgx.Batch{}
		for assets, c := range state.Cursors {
			batch.Queue(`
				INSERT INTO crawl_cursors (name, assets, ts, "offset", finished)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (name, assets) DO UPDATE
				SET ts = EXCLUDED.ts,
				    "offset" = EXCLUDED."offset",
				    finished = EXCLUDED.finished
			`, s.name, assets, c.Ts, c.Offset, c.Finished)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("upsert crawl cursors: %w", err)
			}
		}
		return nil
	})
}

// SeenKeyStore is a PostgreSQL implementation of storage.SeenKeyStore.
type SeenKeyStore struct {
	pool *Pool
}

// NewSeenKeyStore creates a new PostgreSQL seen-key store.
func NewSeenKeyStore(pool *Pool) *SeenKeyStore {
	return &SeenKeyStore{pool: pool}
}

var _ storage.SeenKeyStore = (*SeenKeyStore)(nil)

// IsSeen checks if key has been written for assets.
func (s *SeenKeyStore) IsSeen(ctx context.Context, assets, key string) (bool, error) {
	if assets == "" || key == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM crawl_seen_keys WHERE assets = $1 AND action_key = $2)
	`, assets, key)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// MarkSeen records keys as written for assets.
func (s *SeenKeyStore) MarkSeen(ctx context.Context, assets string, keys ...string) error {
	if assets == "" {
		return storage.ErrInvalidInput
	}
	if len(keys) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, k := range keys {
		if k == "" {
			return storage.ErrInvalidInput
		}
		batch.Queue(`
			INSERT INTO crawl_seen_keys (assets, action_key, seen_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (assets, action_key) DO NOTHING
		`, assets, k)
	}
	return s.pool.SendBatch(ctx, batch).Close()
}

// LoadSeen returns all keys written for assets, sorted.
func (s *SeenKeyStore) LoadSeen(ctx context.Context, assets string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT action_key FROM crawl_seen_keys WHERE assets = $1 ORDER BY action_key
	`, assets)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
