package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/storage"
)

// FitStore implements storage.FitStore using ClickHouse.
type FitStore struct {
	conn *Conn
}

// NewFitStore creates a new FitStore.
func NewFitStore(conn *Conn) *FitStore {
	return &FitStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FitStore = (*FitStore)(nil)

// InsertBulk adds the fits of one run. Fails entire batch on any duplicate.
func (s *FitStore) InsertBulk(ctx context.Context, runID string, fits []*domain.FittedDistribution) error {
	if runID == "" {
		return storage.ErrInvalidInput
	}
	if len(fits) == 0 {
		return nil
	}

	// ReplacingMergeTree would silently replace, so duplicates are checked up front.
	seen := make(map[string]struct{}, len(fits))
	for _, f := range fits {
		if f == nil || f.Params == nil {
			return storage.ErrInvalidInput
		}
		key := f.Pair.String() + "|" + string(f.Feature)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}

		exists, err := s.exists(ctx, runID, f.Pair, f.Feature)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	start := time.Now()
	err := s.send(ctx, runID, fits)
	observability.RecordDBQuery("clickhouse", "insert_fits", time.Since(start).Seconds(), err)
	return err
}

func (s *FitStore) send(ctx context.Context, runID string, fits []*domain.FittedDistribution) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fitted_distributions (
			run_id, in_chain, out_chain, feature, family, params,
			rmse, sample_size, provisional
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fits {
		params, err := json.Marshal(f.Params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		var provisional uint8
		if f.Provisional {
			provisional = 1
		}
		err = batch.Append(
			runID, f.Pair.InChain, f.Pair.OutChain, string(f.Feature), f.Family().String(), string(params),
			f.RMSE, uint32(f.SampleSize), provisional,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

const selectFitColumns = `
	SELECT in_chain, out_chain, feature, family, params, rmse, sample_size, provisional
	FROM fitted_distributions FINAL
`

// GetByRun retrieves all fits of a run, ordered by (pair, feature).
func (s *FitStore) GetByRun(ctx context.Context, runID string) ([]*domain.FittedDistribution, error) {
	rows, err := s.conn.Query(ctx, selectFitColumns+`
		WHERE run_id = ?
		ORDER BY in_chain, out_chain, feature
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query fits: %w", err)
	}
	defer rows.Close()

	var result []*domain.FittedDistribution
	for rows.Next() {
		f, err := scanFit(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fits: %w", err)
	}
	return result, nil
}

// GetByKey retrieves one fit.
func (s *FitStore) GetByKey(ctx context.Context, runID string, pair domain.PairGroup, feature domain.Feature) (*domain.FittedDistribution, error) {
	rows, err := s.conn.Query(ctx, selectFitColumns+`
		WHERE run_id = ? AND in_chain = ? AND out_chain = ? AND feature = ?
		LIMIT 1
	`, runID, pair.InChain, pair.OutChain, string(feature))
	if err != nil {
		return nil, fmt.Errorf("query fit: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate fit: %w", err)
		}
		return nil, storage.ErrNotFound
	}
	return scanFit(rows.Scan)
}

func (s *FitStore) exists(ctx context.Context, runID string, pair domain.PairGroup, feature domain.Feature) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count() FROM fitted_distributions FINAL
		WHERE run_id = ? AND in_chain = ? AND out_chain = ? AND feature = ?
	`, runID, pair.InChain, pair.OutChain, string(feature)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanFit(scan func(dest ...any) error) (*domain.FittedDistribution, error) {
	var (
		f           domain.FittedDistribution
		feature     string
		family      string
		params      string
		sampleSize  uint32
		provisional uint8
	)
	if err := scan(&f.Pair.InChain, &f.Pair.OutChain, &feature, &family, &params, &f.RMSE, &sampleSize, &provisional); err != nil {
		return nil, fmt.Errorf("scan fit row: %w", err)
	}

	fam, err := domain.ParseFamily(family)
	if err != nil {
		return nil, err
	}
	f.Params, err = domain.DecodeParams(fam, []byte(params))
	if err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	f.Feature = domain.Feature(feature)
	f.SampleSize = int(sampleSize)
	f.Provisional = provisional == 1
	return &f, nil
}
