package normalization

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/idhash"
)

var (
	// ErrNotSwap is returned for actions that are not successful swaps.
	ErrNotSwap = errors.New("not a successful swap")
	// ErrNoLegs is returned when no leg survives fee-asset removal.
	ErrNoLegs = errors.New("no swap legs")
	// ErrMalformed is returned for unparseable dates, heights or amounts.
	ErrMalformed = errors.New("malformed action")
)

// DefaultBlockTime is the THORChain target block interval.
const DefaultBlockTime = 6 * time.Second

// DefaultDropAssetPrefixes lists the out-leg asset prefixes of fee and
// affiliate payouts. RUNE paid in is a real swap input and is kept.
var DefaultDropAssetPrefixes = []string{"THOR."}

// Options configures a Canonicalizer.
type Options struct {
	// DropAssetPrefixes: out-legs whose CHAIN.ASSET starts with any of
	// these (case-insensitive) are removed before hashing. In-legs are
	// never dropped.
	DropAssetPrefixes []string
	// BlockTime converts a height difference into elapsed time.
	BlockTime time.Duration
}

// DefaultOptions returns default canonicalizer options.
func DefaultOptions() Options {
	return Options{
		DropAssetPrefixes: append([]string(nil), DefaultDropAssetPrefixes...),
		BlockTime:         DefaultBlockTime,
	}
}

// Canonicalizer turns raw actions into canonical records. It is stateless
// and safe for concurrent use.
type Canonicalizer struct {
	drop      []string
	blockTime time.Duration
}

// NewCanonicalizer creates a canonicalizer. Zero-valued options fall back to defaults.
func NewCanonicalizer(opts Options) *Canonicalizer {
	if opts.DropAssetPrefixes == nil {
		opts.DropAssetPrefixes = DefaultDropAssetPrefixes
	}
	if opts.BlockTime <= 0 {
		opts.BlockTime = DefaultBlockTime
	}
	drop := make([]string, 0, len(opts.DropAssetPrefixes))
	for _, p := range opts.DropAssetPrefixes {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			drop = append(drop, p)
		}
	}
	return &Canonicalizer{drop: drop, blockTime: opts.BlockTime}
}

// Canonicalize converts one raw action. Idx is left zero; it is assigned
// when the record is written to a dataset.
//
// Steps:
//  1. Reject unless status=success and type=swap
//  2. Expand transfers into one leg per coin, dropping non-swap out assets
//  3. Reject when no leg survives
//  4. Hash surviving leg descriptors into the record id
//  5. Derive completion height/time from out-leg heights
func (c *Canonicalizer) Canonicalize(raw *domain.RawAction) (*domain.CanonicalRecord, error) {
	typ := strings.ToLower(strings.TrimSpace(raw.Type))
	status := strings.ToLower(strings.TrimSpace(raw.Status))
	if status != domain.StatusSuccess || typ != domain.TypeSwap {
		return nil, fmt.Errorf("%w: type=%q status=%q", ErrNotSwap, typ, status)
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(raw.Date), 10, 64)
	if err != nil || ts <= 0 {
		return nil, fmt.Errorf("%w: date %q", ErrMalformed, raw.Date)
	}
	height, err := parseOptionalInt(raw.Height)
	if err != nil {
		return nil, fmt.Errorf("%w: height %q", ErrMalformed, raw.Height)
	}

	in, err := c.legs(raw.In, false, func(domain.RawTransfer) (int64, error) { return height, nil })
	if err != nil {
		return nil, err
	}
	out, err := c.legs(raw.Out, true, func(t domain.RawTransfer) (int64, error) {
		h, err := parseOptionalInt(t.Height)
		if err != nil {
			return 0, fmt.Errorf("%w: out height %q", ErrMalformed, t.Height)
		}
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	if len(in)+len(out) == 0 {
		return nil, ErrNoLegs
	}

	rec := &domain.CanonicalRecord{
		Timestamp: ts,
		Height:    height,
		Type:      typ,
		Status:    status,
		In:        in,
		Out:       out,
	}
	rec.ID = idhash.ComputeRecordID(idhash.DescriptorsOf(rec), typ, status)

	for _, l := range out {
		if l.Height > rec.CompletedHeight {
			rec.CompletedHeight = l.Height
		}
	}
	if rec.Height > 0 && rec.CompletedHeight >= rec.Height {
		rec.CompletedTimestamp = ts + (rec.CompletedHeight-rec.Height)*int64(c.blockTime)
	}

	if raw.Metadata != nil && raw.Metadata.Swap != nil {
		if bps, err := strconv.ParseInt(strings.TrimSpace(raw.Metadata.Swap.SwapSlip), 10, 64); err == nil && bps >= 0 {
			rec.SwapSlipBps = &bps
		}
	}

	return rec, nil
}

func (c *Canonicalizer) legs(transfers []domain.RawTransfer, filter bool, heightOf func(domain.RawTransfer) (int64, error)) ([]domain.Leg, error) {
	legs := make([]domain.Leg, 0, len(transfers))
	for _, t := range transfers {
		h, err := heightOf(t)
		if err != nil {
			return nil, err
		}
		address := strings.TrimSpace(t.Address)
		txid := strings.TrimSpace(t.TxID)
		for _, coin := range t.Coins {
			if filter && c.dropped(coin.Asset) {
				continue
			}
			amount, err := strconv.ParseInt(strings.TrimSpace(coin.Amount), 10, 64)
			if err != nil || amount < 0 {
				return nil, fmt.Errorf("%w: amount %q for %s", ErrMalformed, coin.Amount, coin.Asset)
			}
			chain, asset := domain.ParseAsset(coin.Asset)
			legs = append(legs, domain.Leg{
				Chain:   chain,
				Asset:   asset,
				TxID:    txid,
				Address: address,
				Amount:  amount,
				Height:  h,
			})
		}
	}
	return legs, nil
}

func (c *Canonicalizer) dropped(asset string) bool {
	a := strings.ToUpper(strings.TrimSpace(asset))
	for _, p := range c.drop {
		if strings.HasPrefix(a, p) {
			return true
		}
	}
	return false
}

func parseOptionalInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
