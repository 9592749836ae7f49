package metrics

import (
	"context"
	"errors"
	"fmt"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// ErrNoRecords is returned when no records are available for a pair.
var ErrNoRecords = errors.New("no records available for statistics")

// Aggregator computes statistics from persisted canonical records.
type Aggregator struct {
	records storage.RecordStore
}

// NewAggregator creates a new statistics aggregator.
func NewAggregator(records storage.RecordStore) *Aggregator {
	return &Aggregator{records: records}
}

// ComputePair loads the pair's records and summarizes them.
// Returns ErrNoRecords if the pair is empty.
func (a *Aggregator) ComputePair(ctx context.Context, pair domain.PairGroup) (PairStats, error) {
	recs, err := a.records.GetByPair(ctx, pair)
	if err != nil {
		return PairStats{}, fmt.Errorf("load %s: %w", pair, err)
	}
	if len(recs) == 0 {
		return PairStats{}, fmt.Errorf("%w: %s", ErrNoRecords, pair)
	}
	return ComputePairStats(pair.String(), recs), nil
}

// ComputeAll summarizes every pair in order. Empty pairs are skipped.
func (a *Aggregator) ComputeAll(ctx context.Context, pairs []domain.PairGroup) ([]PairStats, error) {
	out := make([]PairStats, 0, len(pairs))
	for _, p := range pairs {
		ps, err := a.ComputePair(ctx, p)
		if errors.Is(err, ErrNoRecords) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, nil
}

// SlowSwaps applies q to the pairs' stored records.
func (a *Aggregator) SlowSwaps(ctx context.Context, pairs []domain.PairGroup, q SlowSwapQuery) ([]SlowSwap, error) {
	files := make(map[string][]*domain.CanonicalRecord, len(pairs))
	for _, p := range pairs {
		recs, err := a.records.GetByPair(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		files[p.String()] = recs
	}
	return FindSlowSwaps(files, q), nil
}

// ComputeFiles summarizes dataset files on disk, one PairStats per file.
func ComputeFiles(paths []string) ([]PairStats, error) {
	out := make([]PairStats, 0, len(paths))
	for _, p := range paths {
		recs, err := dataset.ReadRecords(p)
		if err != nil {
			return nil, err
		}
		out = append(out, ComputePairStats(dataset.Stem(p), recs))
	}
	return out, nil
}
