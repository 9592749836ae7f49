package metrics

import (
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"thorswap-lab/internal/dedup"
	"thorswap-lab/internal/domain"
)

// CoverageThresholds are the height-diff limits (in blocks) coverage is reported for.
var CoverageThresholds = []int64{10, 100, 300, 600, 1000, 6000, 14400}

// Summary holds count/min/max/mean/median of an integer series.
// Mean and Median are rounded to 2 decimals. Zero Count means the series was empty.
type Summary struct {
	Count  int     `json:"count"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
}

// Coverage is the share of records whose height diff is at or below Threshold.
type Coverage struct {
	Threshold int64   `json:"threshold"`
	Percent   float64 `json:"percent"`
}

// TimestampStats describes how creation timestamps cluster.
type TimestampStats struct {
	Min    int64 `json:"min"`
	Max    int64 `json:"max"`
	Unique int   `json:"unique"`
	// Hits maps "records sharing one timestamp" to the number of such timestamps.
	Hits map[int]int `json:"hits"`
}

// PairStats is the descriptive summary of one dataset file.
type PairStats struct {
	Name       string              `json:"name"`
	Records    int                 `json:"records"`
	InAmounts  Summary             `json:"inAmounts"`
	OutAmounts Summary             `json:"outAmounts"`
	HeightDiff Summary             `json:"heightDiff"`
	Coverage   []Coverage          `json:"coverage,omitempty"`
	Timestamps TimestampStats      `json:"timestamps"`
	Duplicates []dedup.DuplicateID `json:"duplicates,omitempty"`
}

// LegHeightDiff is out[0] height minus in[0] height.
// ok is false when either side is missing.
func LegHeightDiff(rec *domain.CanonicalRecord) (int64, bool) {
	if len(rec.In) == 0 || len(rec.Out) == 0 {
		return 0, false
	}
	return rec.Out[0].Height - rec.In[0].Height, true
}

// ComputePairStats summarizes records read from one file.
// Every leg contributes to the amount summaries.
func ComputePairStats(name string, records []*domain.CanonicalRecord) PairStats {
	ps := PairStats{
		Name:       name,
		Records:    len(records),
		Timestamps: TimestampStats{Hits: make(map[int]int)},
		Duplicates: dedup.Validate(records),
	}
	if len(records) == 0 {
		return ps
	}

	var ins, outs, diffs []int64
	perTs := make(map[int64]int, len(records))
	ps.Timestamps.Min = records[0].Timestamp
	ps.Timestamps.Max = records[0].Timestamp

	for _, r := range records {
		perTs[r.Timestamp]++
		ps.Timestamps.Min = min(ps.Timestamps.Min, r.Timestamp)
		ps.Timestamps.Max = max(ps.Timestamps.Max, r.Timestamp)

		for _, l := range r.In {
			ins = append(ins, l.Amount)
		}
		for _, l := range r.Out {
			outs = append(outs, l.Amount)
		}
		if d, ok := LegHeightDiff(r); ok {
			diffs = append(diffs, d)
		}
	}

	ps.InAmounts = summarize(ins)
	ps.OutAmounts = summarize(outs)
	ps.HeightDiff = summarize(diffs)
	ps.Coverage = computeCoverage(diffs, CoverageThresholds)

	ps.Timestamps.Unique = len(perTs)
	for _, n := range perTs {
		ps.Timestamps.Hits[n]++
	}
	return ps
}

// summarize computes count/min/max/mean/median.
func summarize(values []int64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	for i, v := range values {
		sorted[i] = float64(v)
	}
	sort.Float64s(sorted)

	return Summary{
		Count:  n,
		Min:    slices.Min(values),
		Max:    slices.Max(values),
		Mean:   round2(stat.Mean(sorted, nil)),
		Median: round2(computePercentile(sorted, 0.5)),
	}
}

// computeCoverage returns the percentage of diffs <= each threshold.
// Empty diffs yield nil.
func computeCoverage(diffs []int64, thresholds []int64) []Coverage {
	if len(diffs) == 0 {
		return nil
	}
	out := make([]Coverage, 0, len(thresholds))
	for _, th := range thresholds {
		below := 0
		for _, d := range diffs {
			if d <= th {
				below++
			}
		}
		out = append(out, Coverage{
			Threshold: th,
			Percent:   round2(float64(below) / float64(len(diffs)) * 100),
		})
	}
	return out
}

// computePercentile uses linear interpolation.
// sorted must be pre-sorted ASC.
// p is percentile (0.5 = median).
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortedHits returns hit-count keys ascending.
func (t TimestampStats) SortedHits() []int {
	keys := make([]int, 0, len(t.Hits))
	for k := range t.Hits {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
