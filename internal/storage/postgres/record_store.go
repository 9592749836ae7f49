package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/storage"
)

// RecordStore implements storage.RecordStore using PostgreSQL.
// Legs are kept as JSONB in the same shape as the ndjson dataset.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

const insertRecordQuery = `
	INSERT INTO canonical_records (
		id, in_chain, out_chain, timestamp_ns, completed_timestamp_ns,
		height, completed_height, type, status, in_legs, out_legs, swap_slip_bps
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
`

const selectRecordColumns = `
	SELECT id, timestamp_ns, completed_timestamp_ns, height, completed_height,
	       type, status, in_legs, out_legs, swap_slip_bps
	FROM canonical_records
`

// recordArgs flattens r into insertRecordQuery arguments.
func recordArgs(r *domain.CanonicalRecord) ([]any, error) {
	if r == nil || r.ID == "" {
		return nil, storage.ErrInvalidInput
	}
	pair, ok := r.Pair()
	if !ok {
		return nil, storage.ErrInvalidInput
	}
	inLegs, err := json.Marshal(r.In)
	if err != nil {
		return nil, fmt.Errorf("encode in legs: %w", err)
	}
	outLegs, err := json.Marshal(r.Out)
	if err != nil {
		return nil, fmt.Errorf("encode out legs: %w", err)
	}
	return []any{
		r.ID, pair.InChain, pair.OutChain, r.Timestamp, r.CompletedTimestamp,
		r.Height, r.CompletedHeight, r.Type, r.Status, inLegs, outLegs, r.SwapSlipBps,
	}, nil
}

// Insert adds a new record. Returns ErrDuplicateKey if id exists.
func (s *RecordStore) Insert(ctx context.Context, r *domain.CanonicalRecord) error {
	args, err := recordArgs(r)
	if err != nil {
		return err
	}

	start := time.Now()
	_, err = s.pool.Exec(ctx, insertRecordQuery, args...)
	observability.RecordDBQuery("postgres", "insert_record", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *RecordStore) InsertBulk(ctx context.Context, records []*domain.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	start := time.Now()
	err := s.insertBulk(ctx, records)
	observability.RecordDBQuery("postgres", "insert_records", time.Since(start).Seconds(), err)
	return err
}

func (s *RecordStore) insertBulk(ctx context.Context, records []*domain.CanonicalRecord) error {
	return s.pool.InTx(ctx, func(tx pgx.Tx) error {
		for _, r := range records {
			args, err := recordArgs(r)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, insertRecordQuery, args...); err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert record in bulk: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a record by id.
func (s *RecordStore) GetByID(ctx context.Context, id string) (*domain.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecordColumns+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get record by id: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records[0], nil
}

// GetByPair retrieves all records of a pair, ordered by (timestamp, id).
func (s *RecordStore) GetByPair(ctx context.Context, pair domain.PairGroup) ([]*domain.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecordColumns+`
		WHERE in_chain = $1 AND out_chain = $2
		ORDER BY timestamp_ns ASC, id ASC
	`, pair.InChain, pair.OutChain)
	if err != nil {
		return nil, fmt.Errorf("get records by pair: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByTimeRange retrieves records within [start, end] (inclusive).
func (s *RecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.CanonicalRecord, error) {
	rows, err := s.pool.Query(ctx, selectRecordColumns+`
		WHERE timestamp_ns >= $1 AND timestamp_ns <= $2
		ORDER BY timestamp_ns ASC, id ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("get records by time range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans multiple rows into a slice of CanonicalRecord.
func scanRecords(rows pgx.Rows) ([]*domain.CanonicalRecord, error) {
	var records []*domain.CanonicalRecord

	for rows.Next() {
		var (
			r       domain.CanonicalRecord
			inLegs  []byte
			outLegs []byte
		)
		err := rows.Scan(
			&r.ID,
			&r.Timestamp,
			&r.CompletedTimestamp,
			&r.Height,
			&r.CompletedHeight,
			&r.Type,
			&r.Status,
			&inLegs,
			&outLegs,
			&r.SwapSlipBps,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		if err := json.Unmarshal(inLegs, &r.In); err != nil {
			return nil, fmt.Errorf("decode in legs of %s: %w", r.ID, err)
		}
		if err := json.Unmarshal(outLegs, &r.Out); err != nil {
			return nil, fmt.Errorf("decode out legs of %s: %w", r.ID, err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, nil
}
