package metrics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage/memory"
)

var btcEth = domain.PairGroup{InChain: "BTC", OutChain: "ETH"}

func TestAggregator_ComputePair(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRecordStore()
	if err := store.InsertBulk(ctx, testRecords()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	agg := NewAggregator(store)
	ps, err := agg.ComputePair(ctx, btcEth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.Name != "BTC-ETH" {
		t.Errorf("expected name BTC-ETH, got %s", ps.Name)
	}
	// r4 has no out leg and is not stored under the pair.
	if ps.Records != 3 {
		t.Errorf("expected 3 records, got %d", ps.Records)
	}

	_, err = agg.ComputePair(ctx, btcEth.Reverse())
	if !errors.Is(err, ErrNoRecords) {
		t.Errorf("expected ErrNoRecords, got %v", err)
	}

	all, err := agg.ComputeAll(ctx, []domain.PairGroup{btcEth, btcEth.Reverse()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected empty pair to be skipped, got %d stats", len(all))
	}

	slow, err := agg.SlowSwaps(ctx, []domain.PairGroup{btcEth}, SlowSwapQuery{Threshold: DefaultSlowThreshold})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slow) != 1 || slow[0].ID != "r3" {
		t.Errorf("expected r3 as the only slow swap, got %+v", slow)
	}
}

func TestComputeFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "BTC-ETH.ndjson")
	if err := dataset.WriteRecords(path, testRecords()); err != nil {
		t.Fatalf("write: %v", err)
	}

	stats, err := ComputeFiles([]string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stats) != 1 || stats[0].Name != "BTC-ETH" || stats[0].Records != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}
