package normalization

import (
	"context"

	"thorswap-lab/internal/domain"
)

// Engine defines the canonicalization interface used by the wash pipeline.
type Engine interface {
	// CanonicalizeBatches canonicalizes each batch independently and returns
	// records in input order along with skip counts.
	CanonicalizeBatches(ctx context.Context, batches [][]domain.RawAction) ([][]*domain.CanonicalRecord, Stats, error)
}

// Stats counts canonicalization outcomes.
type Stats struct {
	Total     int
	Kept      int
	NotSwap   int
	NoLegs    int
	Malformed int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Total += other.Total
	s.Kept += other.Kept
	s.NotSwap += other.NotSwap
	s.NoLegs += other.NoLegs
	s.Malformed += other.Malformed
}
