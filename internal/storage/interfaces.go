package storage

import (
	"context"

	"thorswap-lab/internal/domain"
)

// RecordStore provides access to canonical swap records.
type RecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, r *domain.CanonicalRecord) error

	// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, records []*domain.CanonicalRecord) error

	// GetByID retrieves a record by its content hash. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.CanonicalRecord, error)

	// GetByPair retrieves all records of a directional pair, ordered by (timestamp, id) ASC.
	GetByPair(ctx context.Context, pair domain.PairGroup) ([]*domain.CanonicalRecord, error)

	// GetByTimeRange retrieves records created within [start, end] ns (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.CanonicalRecord, error)
}

// CrawlStateStore persists the crawl checkpoint between runs.
type CrawlStateStore interface {
	// Load returns the last saved state. Returns ErrNotFound if nothing was saved.
	Load(ctx context.Context) (*domain.CrawlState, error)

	// Save replaces the stored state.
	Save(ctx context.Context, state *domain.CrawlState) error
}

// SeenKeyStore tracks raw action keys already written, scoped per asset pair.
type SeenKeyStore interface {
	// IsSeen checks if key has been written for assets.
	IsSeen(ctx context.Context, assets, key string) (bool, error)

	// MarkSeen records keys as written for assets.
	MarkSeen(ctx context.Context, assets string, keys ...string) error

	// LoadSeen returns all keys written for assets.
	LoadSeen(ctx context.Context, assets string) ([]string, error)
}

// FitStore provides access to fitted distributions grouped by run.
type FitStore interface {
	// InsertBulk adds the fits of one run. Returns ErrDuplicateKey if
	// (run, pair, feature) exists, failing the entire batch.
	InsertBulk(ctx context.Context, runID string, fits []*domain.FittedDistribution) error

	// GetByRun retrieves all fits of a run, ordered by (pair, feature).
	GetByRun(ctx context.Context, runID string) ([]*domain.FittedDistribution, error)

	// GetByKey retrieves one fit. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, runID string, pair domain.PairGroup, feature domain.Feature) (*domain.FittedDistribution, error)
}
