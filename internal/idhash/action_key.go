package idhash

import (
	"sort"
	"strings"

	"thorswap-lab/internal/domain"
)

// ComputeActionKey returns the crawl-level dedup key of a raw action:
// date|height|type|status|memo|in:txids|out:txids with txids sorted and unique.
// It is not hashed; keys are compared directly.
func ComputeActionKey(a *domain.RawAction) string {
	return strings.Join([]string{
		a.Date,
		a.Height,
		a.Type,
		a.Status,
		a.Memo(),
		"in:" + joinTxIDs(a.In),
		"out:" + joinTxIDs(a.Out),
	}, "|")
}

func joinTxIDs(transfers []domain.RawTransfer) string {
	set := make(map[string]struct{}, len(transfers))
	for _, t := range transfers {
		if t.TxID != "" {
			set[t.TxID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
