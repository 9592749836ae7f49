package filter

import (
	"strconv"

	"thorswap-lab/internal/domain"
)

// Unavailable is the display value of a time tier that cannot be computed.
const Unavailable = "Unavailable"

// TierCount is a tier size that may be unavailable.
type TierCount struct {
	Count     int
	Available bool
}

// String returns the count, or Unavailable.
func (t TierCount) String() string {
	if !t.Available {
		return Unavailable
	}
	return strconv.Itoa(t.Count)
}

// TierSummary aggregates classifications for one pair group.
type TierSummary struct {
	Pair           domain.PairGroup
	Total          int
	WithCompletion int
	Tiers          map[domain.Tier]TierCount
}

// TimeAvailable reports whether any record in the pair has completion data.
func (s TierSummary) TimeAvailable() bool {
	return s.WithCompletion > 0
}

// Summarize classifies records of one pair. When no record has completion
// data the time-based tiers are marked unavailable instead of reporting zero.
func (f *Filter) Summarize(pair domain.PairGroup, records []*domain.CanonicalRecord) TierSummary {
	s := TierSummary{Pair: pair, Total: len(records), Tiers: make(map[domain.Tier]TierCount, len(domain.AllTiers))}
	counts := make(map[domain.Tier]int, len(domain.AllTiers))
	for _, r := range records {
		c := f.Classify(r)
		if c.TimeAvailable {
			s.WithCompletion++
		}
		for _, t := range c.Tiers() {
			counts[t]++
		}
	}
	for _, t := range domain.AllTiers {
		available := !t.IsTimeBased() || s.TimeAvailable()
		s.Tiers[t] = TierCount{Count: counts[t], Available: available}
	}
	return s
}
