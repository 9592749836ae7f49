package domain

// Direction of a leg relative to the swap.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Leg is one side of a transfer inside a canonical record.
type Leg struct {
	Chain   string `json:"chain"`
	Asset   string `json:"asset"`
	TxID    string `json:"txID"`
	Address string `json:"address"`
	Amount  int64  `json:"amount"`          // 1e8 base units
	Height  int64  `json:"thorchainHeight"` // THORChain height the leg was observed at
}

// CanonicalRecord is one cleaned, hash-identified swap.
// Status is always StatusSuccess and Type always TypeSwap.
type CanonicalRecord struct {
	// Idx is dataset-local and assigned at write time.
	Idx int64 `json:"idx"`
	// ID is the content hash, stable across datasets and crawl re-runs.
	ID string `json:"id"`

	Timestamp          int64  `json:"timestamp"`          // creation, ns
	CompletedTimestamp int64  `json:"completedTimestamp"` // ns, 0 when unknown
	Height             int64  `json:"height"`             // creation height
	CompletedHeight    int64  `json:"completedHeight"`    // 0 when unknown
	Type               string `json:"type"`
	Status             string `json:"status"`
	In                 []Leg  `json:"in"`
	Out                []Leg  `json:"out"`
	SwapSlipBps        *int64 `json:"swapSlipBps,omitempty"`
}

// Pair returns the directional pair of a 1-in/1-out record.
// ok is false for records without both sides.
func (r *CanonicalRecord) Pair() (PairGroup, bool) {
	if len(r.In) == 0 || len(r.Out) == 0 {
		return PairGroup{}, false
	}
	return PairGroup{InChain: r.In[0].Chain, OutChain: r.Out[0].Chain}, true
}

// HasCompletion reports whether completion time is known.
func (r *CanonicalRecord) HasCompletion() bool {
	return r.CompletedTimestamp > 0 && r.CompletedTimestamp >= r.Timestamp
}

// ElapsedSeconds returns completion minus creation in seconds.
// ok is false when completion time is unknown.
func (r *CanonicalRecord) ElapsedSeconds() (float64, bool) {
	if !r.HasCompletion() {
		return 0, false
	}
	return float64(r.CompletedTimestamp-r.Timestamp) / 1e9, true
}

// HeightDiff returns completed height minus creation height.
func (r *CanonicalRecord) HeightDiff() (int64, bool) {
	if r.Height <= 0 || r.CompletedHeight <= 0 {
		return 0, false
	}
	return r.CompletedHeight - r.Height, true
}

// FeeRate returns the swap slip as a fraction in [0,1].
func (r *CanonicalRecord) FeeRate() (float64, bool) {
	if r.SwapSlipBps == nil {
		return 0, false
	}
	return float64(*r.SwapSlipBps) / 10000, true
}

// PrimaryIn returns the first in-leg.
func (r *CanonicalRecord) PrimaryIn() (Leg, bool) {
	if len(r.In) == 0 {
		return Leg{}, false
	}
	return r.In[0], true
}
