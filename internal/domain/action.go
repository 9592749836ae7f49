package domain

import (
	"strconv"
	"strings"
)

// RawAction is one action as returned by the Midgard /v2/actions endpoint.
// Numeric fields arrive as decimal strings and are parsed on demand.
type RawAction struct {
	Date     string        `json:"date"`   // nanoseconds since epoch
	Height   string        `json:"height"` // THORChain block height at creation
	Status   string        `json:"status"`
	Type     string        `json:"type"`
	In       []RawTransfer `json:"in"`
	Out      []RawTransfer `json:"out"`
	Metadata *RawMetadata  `json:"metadata,omitempty"`
	Pools    []string      `json:"pools,omitempty"`
}

// RawTransfer is one in/out entry of an action. A transfer may carry several coins.
type RawTransfer struct {
	Address string    `json:"address"`
	TxID    string    `json:"txID"`
	Height  string    `json:"height,omitempty"` // only set on out entries
	Coins   []RawCoin `json:"coins"`
}

// RawCoin is an asset amount in 1e8 base units.
type RawCoin struct {
	Asset  string `json:"asset"`
	Amount string `json:"amount"`
}

// RawMetadata carries type-specific action metadata.
type RawMetadata struct {
	Swap *RawSwapMetadata `json:"swap,omitempty"`
}

// RawSwapMetadata is the swap section of action metadata.
type RawSwapMetadata struct {
	SwapSlip     string `json:"swapSlip"` // basis points
	LiquidityFee string `json:"liquidityFee"`
	Memo         string `json:"memo,omitempty"`
	IsStreaming  bool   `json:"isStreamingSwap,omitempty"`
}

// Action status and type values.
const (
	StatusSuccess = "success"
	TypeSwap      = "swap"
)

// DateNs parses Date. Returns 0 when missing or malformed.
func (a *RawAction) DateNs() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(a.Date), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// Memo returns the swap memo if present.
func (a *RawAction) Memo() string {
	if a.Metadata == nil || a.Metadata.Swap == nil {
		return ""
	}
	return a.Metadata.Swap.Memo
}

// ParseAsset splits "CHAIN.ASSET" into upper-cased chain and asset.
// A bare symbol is used for both.
func ParseAsset(s string) (chain, asset string) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, s
}
