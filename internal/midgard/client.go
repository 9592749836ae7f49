// Package midgard is a read-only client for the THORChain Midgard API.
package midgard

import (
	"context"
	"encoding/json"

	"thorswap-lab/internal/domain"
)

// DefaultBaseURLs are the public Midgard endpoints used when none are configured.
var DefaultBaseURLs = []string{"https://midgard.thorchain.liquify.com"}

// MaxPageSize is the largest page Midgard serves.
const MaxPageSize = 50

// Client defines the Midgard endpoints the crawler needs.
type Client interface {
	// Actions fetches one page of /v2/actions, newest first.
	Actions(ctx context.Context, q ActionsQuery) (*ActionsPage, error)
}

// ActionsQuery selects one backward page. TimestampSec is the inclusive
// upper bound in Unix seconds; Offset skips records at or below it that
// were already consumed.
type ActionsQuery struct {
	Type         string
	Asset        string // comma-separated pool assets, e.g. "BTC.BTC,ETH.ETH"
	TimestampSec int64
	Offset       int
	Limit        int
}

// ActionsPage is one decoded page. Raw holds the original bytes of each
// action in the same order as Actions.
type ActionsPage struct {
	Raw     []json.RawMessage
	Actions []domain.RawAction
	Count   string
}

type actionsResponse struct {
	Actions []json.RawMessage `json:"actions"`
	Count   string            `json:"count"`
}
