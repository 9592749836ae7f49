package normalization

import (
	"errors"
	"testing"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

func btcToEth() domain.RawAction {
	return domain.RawAction{
		Date:   "1700000000000000000",
		Height: "13000000",
		Status: "success",
		Type:   "swap",
		In: []domain.RawTransfer{{
			Address: "bc1qsender",
			TxID:    "INTX1",
			Coins:   []domain.RawCoin{{Asset: "BTC.BTC", Amount: "10000000"}},
		}},
		Out: []domain.RawTransfer{
			{
				Address: "0xreceiver",
				TxID:    "OUTTX1",
				Height:  "13000010",
				Coins:   []domain.RawCoin{{Asset: "ETH.ETH", Amount: "250000000"}},
			},
			{
				Address: "thor1affiliate",
				TxID:    "",
				Height:  "13000001",
				Coins:   []domain.RawCoin{{Asset: "THOR.RUNE", Amount: "1234"}},
			},
		},
		Metadata: &domain.RawMetadata{Swap: &domain.RawSwapMetadata{SwapSlip: "12"}},
	}
}

func TestCanonicalize_Basic(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())
	raw := btcToEth()

	rec, err := c.Canonicalize(&raw)
	if err != nil {
		t.Fatalf("Canonicalize() error = %v", err)
	}

	if rec.Status != "success" || rec.Type != "swap" {
		t.Errorf("unexpected type/status %q/%q", rec.Type, rec.Status)
	}
	if len(rec.In) != 1 || len(rec.Out) != 1 {
		t.Fatalf("expected 1 in / 1 out leg, got %d / %d", len(rec.In), len(rec.Out))
	}
	if rec.In[0].Chain != "BTC" || rec.In[0].Asset != "BTC" || rec.In[0].Amount != 10000000 {
		t.Errorf("unexpected in leg %+v", rec.In[0])
	}
	if rec.In[0].Height != 13000000 {
		t.Errorf("in leg height = %d, want creation height", rec.In[0].Height)
	}
	if rec.Out[0].Chain != "ETH" || rec.Out[0].Height != 13000010 {
		t.Errorf("unexpected out leg %+v", rec.Out[0])
	}
	if rec.CompletedHeight != 13000010 {
		t.Errorf("CompletedHeight = %d, want 13000010", rec.CompletedHeight)
	}
	wantCompleted := int64(1700000000000000000) + 10*int64(DefaultBlockTime)
	if rec.CompletedTimestamp != wantCompleted {
		t.Errorf("CompletedTimestamp = %d, want %d", rec.CompletedTimestamp, wantCompleted)
	}
	if rec.SwapSlipBps == nil || *rec.SwapSlipBps != 12 {
		t.Errorf("SwapSlipBps = %v, want 12", rec.SwapSlipBps)
	}
	if len(rec.ID) != 64 {
		t.Errorf("ID length = %d, want 64", len(rec.ID))
	}
}

func TestCanonicalize_LegOrderIndependent(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())

	a := btcToEth()
	a.In = append(a.In, domain.RawTransfer{
		Address: "bc1qsecond",
		TxID:    "INTX2",
		Coins:   []domain.RawCoin{{Asset: "BTC.BTC", Amount: "5"}},
	})
	b := btcToEth()
	b.In = append([]domain.RawTransfer{a.In[1]}, b.In...)
	b.Out = []domain.RawTransfer{b.Out[1], b.Out[0]}

	ra, err := c.Canonicalize(&a)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := c.Canonicalize(&b)
	if err != nil {
		t.Fatal(err)
	}
	if ra.ID != rb.ID {
		t.Errorf("reordered legs produced different ids: %s vs %s", ra.ID, rb.ID)
	}
}

func TestCanonicalize_DroppedLegsDoNotAffectID(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())

	withFee := btcToEth()
	withoutFee := btcToEth()
	withoutFee.Out = withoutFee.Out[:1]

	r1, err := c.Canonicalize(&withFee)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := c.Canonicalize(&withoutFee)
	if err != nil {
		t.Fatal(err)
	}
	if r1.ID != r2.ID {
		t.Error("THOR.* leg should be dropped before hashing")
	}
}

func TestCanonicalize_Rejections(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())

	tests := []struct {
		name    string
		mutate  func(*domain.RawAction)
		wantErr error
	}{
		{
			name:    "pending status",
			mutate:  func(a *domain.RawAction) { a.Status = "pending" },
			wantErr: ErrNotSwap,
		},
		{
			name:    "refund type",
			mutate:  func(a *domain.RawAction) { a.Type = "refund" },
			wantErr: ErrNotSwap,
		},
		{
			name: "only fee legs",
			mutate: func(a *domain.RawAction) {
				a.In = nil
				a.Out = a.Out[1:]
			},
			wantErr: ErrNoLegs,
		},
		{
			name:    "bad amount",
			mutate:  func(a *domain.RawAction) { a.In[0].Coins[0].Amount = "1.5" },
			wantErr: ErrMalformed,
		},
		{
			name:    "bad date",
			mutate:  func(a *domain.RawAction) { a.Date = "yesterday" },
			wantErr: ErrMalformed,
		},
		{
			name:    "bad out height",
			mutate:  func(a *domain.RawAction) { a.Out[0].Height = "x" },
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := btcToEth()
			tt.mutate(&raw)
			_, err := c.Canonicalize(&raw)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Canonicalize() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCanonicalize_NoCompletionWithoutOutHeight(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())
	raw := btcToEth()
	raw.Out = raw.Out[:1]
	raw.Out[0].Height = ""

	rec, err := c.Canonicalize(&raw)
	if err != nil {
		t.Fatal(err)
	}
	if rec.CompletedHeight != 0 || rec.CompletedTimestamp != 0 {
		t.Errorf("expected unknown completion, got height=%d ts=%d", rec.CompletedHeight, rec.CompletedTimestamp)
	}
	if rec.HasCompletion() {
		t.Error("HasCompletion() = true, want false")
	}
}

func TestCanonicalize_CustomDropPrefixes(t *testing.T) {
	c := NewCanonicalizer(Options{DropAssetPrefixes: []string{"eth."}})
	raw := btcToEth()

	rec, err := c.Canonicalize(&raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Out) != 1 || rec.Out[0].Chain != "THOR" {
		t.Errorf("expected only THOR out leg to survive, got %+v", rec.Out)
	}
}

func TestCanonicalize_RuneInputKept(t *testing.T) {
	c := NewCanonicalizer(DefaultOptions())
	raw := domain.RawAction{
		Date:   "1700000000000000000",
		Height: "13000000",
		Status: "success",
		Type:   "swap",
		In: []domain.RawTransfer{{
			Address: "thor1sender",
			TxID:    "RUNEIN1",
			Coins:   []domain.RawCoin{{Asset: "THOR.RUNE", Amount: "500000000000"}},
		}},
		Out: []domain.RawTransfer{{
			Address: "bc1qreceiver",
			TxID:    "BTCOUT1",
			Height:  "13000030",
			Coins:   []domain.RawCoin{{Asset: "BTC.BTC", Amount: "9000000"}},
		}},
	}

	rec, err := c.Canonicalize(&raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.In) != 1 || rec.In[0].Chain != "THOR" || rec.In[0].Asset != "RUNE" {
		t.Fatalf("RUNE in leg dropped: %+v", rec.In)
	}
	stem, ok := dataset.Route(rec)
	if !ok || stem != "THOR-BTC" {
		t.Errorf("Route() = %q, %v; want THOR-BTC", stem, ok)
	}
}
