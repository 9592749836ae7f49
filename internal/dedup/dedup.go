// Package dedup keeps one canonical record per id.
//
// Policy is first-observed-wins. A later record with the same id but
// different content is not merged; it is recorded as an Anomaly and logged.
package dedup

import (
	"reflect"

	"go.uber.org/zap"

	"thorswap-lab/internal/domain"
)

// Anomaly describes a same-id collision with differing content.
type Anomaly struct {
	ID       string
	Kept     *domain.CanonicalRecord
	Rejected *domain.CanonicalRecord
}

// Deduplicator is a streaming first-observed-wins filter.
// Memory grows with the number of distinct ids for the lifetime of the value.
// Not safe for concurrent use.
type Deduplicator struct {
	seen       map[string]*domain.CanonicalRecord
	anomalies  []Anomaly
	duplicates int
	logger     *zap.Logger
}

// New creates an empty Deduplicator. A nil logger disables logging.
func New(logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{
		seen:   make(map[string]*domain.CanonicalRecord),
		logger: logger,
	}
}

// Add offers rec and reports whether it was kept.
func (d *Deduplicator) Add(rec *domain.CanonicalRecord) bool {
	prev, ok := d.seen[rec.ID]
	if !ok {
		d.seen[rec.ID] = rec
		return true
	}
	d.duplicates++
	if !sameContent(prev, rec) {
		d.anomalies = append(d.anomalies, Anomaly{ID: rec.ID, Kept: prev, Rejected: rec})
		d.logger.Warn("duplicate id with differing content",
			zap.String("id", rec.ID),
			zap.Int64("kept_completed_height", prev.CompletedHeight),
			zap.Int64("rejected_completed_height", rec.CompletedHeight))
	}
	return false
}

// Filter returns the records of recs that Add keeps, in input order.
func (d *Deduplicator) Filter(recs []*domain.CanonicalRecord) []*domain.CanonicalRecord {
	out := make([]*domain.CanonicalRecord, 0, len(recs))
	for _, r := range recs {
		if d.Add(r) {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of distinct ids seen.
func (d *Deduplicator) Len() int { return len(d.seen) }

// Duplicates returns how many records were dropped.
func (d *Deduplicator) Duplicates() int { return d.duplicates }

// Anomalies returns the differing-content collisions observed so far.
func (d *Deduplicator) Anomalies() []Anomaly {
	return append([]Anomaly(nil), d.anomalies...)
}

// sameContent compares every field except the dataset-local Idx.
func sameContent(a, b *domain.CanonicalRecord) bool {
	x, y := *a, *b
	x.Idx, y.Idx = 0, 0
	return reflect.DeepEqual(x, y)
}

// DuplicateID reports an id that occurs more than once in a record set.
type DuplicateID struct {
	ID    string
	Count int
	Idx   []int64 // idx values of every occurrence
}

// Validate reports ids appearing more than once, in order of first occurrence.
// A deduplicated dataset returns nil.
func Validate(records []*domain.CanonicalRecord) []DuplicateID {
	positions := make(map[string][]int64, len(records))
	var order []string
	for _, r := range records {
		if _, ok := positions[r.ID]; !ok {
			order = append(order, r.ID)
		}
		positions[r.ID] = append(positions[r.ID], r.Idx)
	}

	var dups []DuplicateID
	for _, id := range order {
		if p := positions[id]; len(p) > 1 {
			dups = append(dups, DuplicateID{ID: id, Count: len(p), Idx: p})
		}
	}
	return dups
}
