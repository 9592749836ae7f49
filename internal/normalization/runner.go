package normalization

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/observability"
)

// Runner implements Engine with one goroutine per batch.
type Runner struct {
	canon       *Canonicalizer
	logger      *zap.Logger
	concurrency int
}

var _ Engine = (*Runner)(nil)

// NewRunner creates a new normalization runner. concurrency <= 0 means unlimited.
func NewRunner(canon *Canonicalizer, logger *zap.Logger, concurrency int) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{canon: canon, logger: logger, concurrency: concurrency}
}

// CanonicalizeBatches processes batches in parallel. Data-quality failures
// are counted and skipped; only context cancellation aborts the run.
func (r *Runner) CanonicalizeBatches(ctx context.Context, batches [][]domain.RawAction) ([][]*domain.CanonicalRecord, Stats, error) {
	results := make([][]*domain.CanonicalRecord, len(batches))
	stats := make([]Stats, len(batches))

	g, ctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i := range batches {
		g.Go(func() error {
			recs, st, err := r.canonicalizeBatch(ctx, batches[i])
			if err != nil {
				return err
			}
			results[i] = recs
			stats[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var total Stats
	for _, st := range stats {
		total.Add(st)
	}
	observability.RecordCanonicalized(total.Kept)
	observability.RecordSkipped("not_swap", total.NotSwap)
	observability.RecordSkipped("no_legs", total.NoLegs)
	observability.RecordSkipped("malformed", total.Malformed)
	return results, total, nil
}

func (r *Runner) canonicalizeBatch(ctx context.Context, batch []domain.RawAction) ([]*domain.CanonicalRecord, Stats, error) {
	var st Stats
	out := make([]*domain.CanonicalRecord, 0, len(batch))
	for i := range batch {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, st, err
			}
		}
		st.Total++
		rec, err := r.canon.Canonicalize(&batch[i])
		switch {
		case err == nil:
			st.Kept++
			out = append(out, rec)
		case errors.Is(err, ErrNotSwap):
			st.NotSwap++
		case errors.Is(err, ErrNoLegs):
			st.NoLegs++
		default:
			st.Malformed++
			r.logger.Debug("skipping malformed action",
				zap.String("date", batch[i].Date),
				zap.Error(err))
		}
	}
	return out, st, nil
}
