package metrics

import (
	"sort"
	"time"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

// DefaultSlowThreshold is the default minimum height diff for a slow swap.
const DefaultSlowThreshold int64 = 5000

// SlowSwapQuery selects records by height diff and creation time.
// Zero Start/End leave that side of the range open; both bounds are inclusive.
type SlowSwapQuery struct {
	Threshold int64
	Start     time.Time
	End       time.Time
}

// SlowSwap is one record whose out leg landed long after its in leg.
type SlowSwap struct {
	ID         string    `json:"id"`
	Pair       string    `json:"pair"`
	Timestamp  time.Time `json:"timestamp"`
	HeightDiff int64     `json:"height_diff"`
	InHeight   int64     `json:"in_height"`
	OutHeight  int64     `json:"out_height"`
	InAmount   int64     `json:"in_amount"`
	OutAmount  int64     `json:"out_amount"`
}

// Match returns the slow-swap row for rec when it satisfies q.
func (q SlowSwapQuery) Match(pair string, rec *domain.CanonicalRecord) (SlowSwap, bool) {
	diff, ok := LegHeightDiff(rec)
	if !ok || diff < q.Threshold {
		return SlowSwap{}, false
	}
	ts := time.Unix(0, rec.Timestamp).UTC()
	if !q.Start.IsZero() && ts.Before(q.Start) {
		return SlowSwap{}, false
	}
	if !q.End.IsZero() && ts.After(q.End) {
		return SlowSwap{}, false
	}
	return SlowSwap{
		ID:         rec.ID,
		Pair:       pair,
		Timestamp:  ts,
		HeightDiff: diff,
		InHeight:   rec.In[0].Height,
		OutHeight:  rec.Out[0].Height,
		InAmount:   rec.In[0].Amount,
		OutAmount:  rec.Out[0].Amount,
	}, true
}

// FindSlowSwaps scans pair files (keyed by file stem) and returns matches
// sorted by height diff descending. multi-* files are skipped.
func FindSlowSwaps(files map[string][]*domain.CanonicalRecord, q SlowSwapQuery) []SlowSwap {
	var out []SlowSwap
	for _, stem := range dataset.SortedStems(files) {
		if dataset.IsMultiStem(stem) {
			continue
		}
		for _, rec := range files[stem] {
			if s, ok := q.Match(stem, rec); ok {
				out = append(out, s)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].HeightDiff > out[j].HeightDiff })
	return out
}
