package dataset

import (
	"sort"
	"strings"

	"thorswap-lab/internal/domain"
)

// Multi-leg routing file stems. Records in these files are excluded from
// standard per-pair processing.
const (
	MultiIn         = "multi-in"
	MultiOut        = "multi-out"
	MultiInOut      = "multi-in-out"
	MultiCoinsIn    = "multi-coins-in"
	MultiCoinsOut   = "multi-coins-out"
	MultiCoinsInOut = "multi-coins-in-out"
	Ext             = ".ndjson"
	multiStemPrefix = "multi-"
)

// Route returns the file stem a record is written to.
//
// Priority:
//  1. several transactions on a side: multi-in / multi-out / multi-in-out
//  2. one transaction carrying several coins: multi-coins-*
//  3. otherwise "{IN}-{OUT}"
//
// ok is false when a side has no legs.
func Route(rec *domain.CanonicalRecord) (stem string, ok bool) {
	if len(rec.In) == 0 || len(rec.Out) == 0 {
		return "", false
	}

	multiIn := distinctTx(rec.In) > 1
	multiOut := distinctTx(rec.Out) > 1
	switch {
	case multiIn && multiOut:
		return MultiInOut, true
	case multiIn:
		return MultiIn, true
	case multiOut:
		return MultiOut, true
	}

	coinsIn := len(rec.In) > 1
	coinsOut := len(rec.Out) > 1
	switch {
	case coinsIn && coinsOut:
		return MultiCoinsInOut, true
	case coinsIn:
		return MultiCoinsIn, true
	case coinsOut:
		return MultiCoinsOut, true
	}

	return domain.PairGroup{InChain: rec.In[0].Chain, OutChain: rec.Out[0].Chain}.String(), true
}

// IsMultiStem reports whether stem is one of the multi-leg files.
func IsMultiStem(stem string) bool {
	return strings.HasPrefix(stem, multiStemPrefix)
}

func distinctTx(legs []domain.Leg) int {
	set := make(map[string]struct{}, len(legs))
	for _, l := range legs {
		set[l.TxID] = struct{}{}
	}
	return len(set)
}

// Partition groups records by Route. Unroutable records are returned separately.
func Partition(records []*domain.CanonicalRecord) (map[string][]*domain.CanonicalRecord, []*domain.CanonicalRecord) {
	out := make(map[string][]*domain.CanonicalRecord)
	var unroutable []*domain.CanonicalRecord
	for _, r := range records {
		stem, ok := Route(r)
		if !ok {
			unroutable = append(unroutable, r)
			continue
		}
		out[stem] = append(out[stem], r)
	}
	return out, unroutable
}

// SortedStems returns map keys in lexical order.
func SortedStems[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
