// Package filter classifies canonical records into amount and time tiers.
package filter

import "thorswap-lab/internal/domain"

// Classification is the tier membership of one record. Records are never modified.
type Classification struct {
	High          bool // primary in-leg amount >= threshold
	Fast          bool // elapsed <= time threshold
	TimeAvailable bool // completion time known for this record
}

// Tiers returns the tiers the record belongs to.
func (c Classification) Tiers() []domain.Tier {
	var tiers []domain.Tier
	if c.High {
		tiers = append(tiers, domain.TierHigh)
	}
	if c.Fast {
		tiers = append(tiers, domain.TierFast)
	}
	if c.High && c.Fast {
		tiers = append(tiers, domain.TierHighFast)
	}
	return tiers
}

// In reports membership in tier.
func (c Classification) In(tier domain.Tier) bool {
	switch tier {
	case domain.TierHigh:
		return c.High
	case domain.TierFast:
		return c.Fast
	case domain.TierHighFast:
		return c.High && c.Fast
	}
	return false
}

// Filter applies a Config.
type Filter struct {
	cfg Config
}

// New creates a Filter. cfg is copied.
func New(cfg Config) *Filter {
	cfg.Thresholds = mergeThresholds(cfg.Thresholds)
	return &Filter{cfg: cfg}
}

// Config returns a copy of the active config.
func (f *Filter) Config() Config {
	c := f.cfg
	c.Thresholds = make(map[string]int64, len(f.cfg.Thresholds))
	for k, v := range f.cfg.Thresholds {
		c.Thresholds[k] = v
	}
	return c
}

// Threshold returns the minimum amount for a leg. A full "CHAIN.ASSET"
// entry takes precedence over a bare symbol.
func (f *Filter) Threshold(leg domain.Leg) int64 {
	if v, ok := f.cfg.Thresholds[leg.Chain+"."+leg.Asset]; ok {
		return v
	}
	return f.cfg.Thresholds[leg.Asset]
}

// Classify returns tier membership for rec. Both boundaries are inclusive.
// Records without completion data are never fast.
func (f *Filter) Classify(rec *domain.CanonicalRecord) Classification {
	var c Classification
	in, ok := rec.PrimaryIn()
	if !ok {
		return c
	}
	c.High = in.Amount >= f.Threshold(in)

	if elapsed, ok := rec.ElapsedSeconds(); ok {
		c.TimeAvailable = true
		c.Fast = f.cfg.TimeThresholdSeconds > 0 && elapsed <= float64(f.cfg.TimeThresholdSeconds)
	}
	return c
}

// Accept applies the dataset-level composite: only 1-in/1-out records,
// high-fast when RequireBoth, high otherwise.
func (f *Filter) Accept(rec *domain.CanonicalRecord) bool {
	if len(rec.In) != 1 || len(rec.Out) != 1 {
		return false
	}
	c := f.Classify(rec)
	if f.cfg.RequireBoth {
		return c.In(domain.TierHighFast)
	}
	return c.High
}

// Apply returns the accepted records in input order.
func (f *Filter) Apply(records []*domain.CanonicalRecord) []*domain.CanonicalRecord {
	out := make([]*domain.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if f.Accept(r) {
			out = append(out, r)
		}
	}
	return out
}
