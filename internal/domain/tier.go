package domain

// Tier names a labeled subset of records.
type Tier string

const (
	TierHigh     Tier = "high"      // primary in-leg amount >= asset threshold
	TierFast     Tier = "fast"      // elapsed <= time threshold
	TierHighFast Tier = "high-fast" // both
)

// AllTiers in report order.
var AllTiers = []Tier{TierHigh, TierFast, TierHighFast}

// IsTimeBased reports whether membership depends on completion time.
func (t Tier) IsTimeBased() bool {
	return t == TierFast || t == TierHighFast
}
