package memory

import (
	"context"
	"errors"
	"testing"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

func testRecord(id string, ts int64, in, out string) *domain.CanonicalRecord {
	bps := int64(12)
	return &domain.CanonicalRecord{
		ID:        id,
		Timestamp: ts,
		Height:    100,
		Type:      domain.TypeSwap,
		Status:    domain.StatusSuccess,
		In:        []domain.Leg{{Chain: in, Asset: in, TxID: "in-" + id, Amount: 1}},
		Out:       []domain.Leg{{Chain: out, Asset: out, TxID: "out-" + id, Amount: 2}},

		SwapSlipBps: &bps,
	}
}

func TestRecordStore_InsertAndGet(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("a", 1000, "BTC", "ETH")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Timestamp != 1000 || *got.SwapSlipBps != 12 {
		t.Errorf("unexpected record: %+v", got)
	}

	// Returned copies must not alias stored state.
	got.In[0].Amount = 99
	again, _ := store.GetByID(ctx, "a")
	if again.In[0].Amount != 1 {
		t.Errorf("store mutated through returned record")
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_DuplicateKey(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("a", 1000, "BTC", "ETH")); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := store.Insert(ctx, testRecord("a", 2000, "BTC", "ETH")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestRecordStore_InsertBulkAtomic(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	batch := []*domain.CanonicalRecord{
		testRecord("a", 1000, "BTC", "ETH"),
		testRecord("b", 2000, "BTC", "ETH"),
		testRecord("a", 3000, "BTC", "ETH"),
	}
	if err := store.InsertBulk(ctx, batch); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if _, err := store.GetByID(ctx, "b"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("partial batch was written")
	}

	if err := store.InsertBulk(ctx, batch[:2]); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	if err := store.InsertBulk(ctx, []*domain.CanonicalRecord{{}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRecordStore_GetByPairOrdered(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	err := store.InsertBulk(ctx, []*domain.CanonicalRecord{
		testRecord("c", 3000, "BTC", "ETH"),
		testRecord("b", 1000, "BTC", "ETH"),
		testRecord("a", 1000, "BTC", "ETH"),
		testRecord("d", 500, "ETH", "BTC"),
	})
	if err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByPair(ctx, domain.PairGroup{InChain: "BTC", OutChain: "ETH"})
	if err != nil {
		t.Fatalf("GetByPair failed: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].ID, id)
		}
	}

	ranged, err := store.GetByTimeRange(ctx, 500, 1000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ranged) != 3 {
		t.Errorf("expected 3 records in range, got %d", len(ranged))
	}
}
