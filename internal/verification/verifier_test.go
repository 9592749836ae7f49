package verification

import (
	"context"
	"path/filepath"
	"testing"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/idhash"
	"thorswap-lab/internal/storage/memory"
)

func ptrInt64(v int64) *int64 { return &v }

func makeRecord(inChain, outChain, txIn string, ts int64) *domain.CanonicalRecord {
	rec := &domain.CanonicalRecord{
		Timestamp:          ts,
		CompletedTimestamp: ts + 60_000_000_000,
		Height:             100,
		CompletedHeight:    110,
		Type:               domain.TypeSwap,
		Status:             domain.StatusSuccess,
		In:                 []domain.Leg{{Chain: inChain, Asset: inChain, TxID: txIn, Address: "addr-in", Amount: 1000, Height: 100}},
		Out:                []domain.Leg{{Chain: outChain, Asset: outChain, TxID: "out-" + txIn, Address: "addr-out", Amount: 2000, Height: 110}},
		SwapSlipBps:        ptrInt64(12),
	}
	rec.ID = idhash.ComputeRecordID(idhash.DescriptorsOf(rec), rec.Type, rec.Status)
	return rec
}

// writeDataset writes three BTC-ETH records and stores them in a memory store.
func writeDataset(t *testing.T) (string, *memory.RecordStore, []*domain.CanonicalRecord) {
	t.Helper()
	dir := t.TempDir()
	recs := []*domain.CanonicalRecord{
		makeRecord("BTC", "ETH", "tx1", 3_000_000_000),
		makeRecord("BTC", "ETH", "tx2", 2_000_000_000),
		makeRecord("BTC", "ETH", "tx3", 1_000_000_000),
	}
	if err := dataset.WriteRecords(filepath.Join(dir, "BTC-ETH"+dataset.Ext), recs); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}
	store := memory.NewRecordStore()
	if err := store.InsertBulk(context.Background(), recs); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}
	return dir, store, recs
}

func fields(divs []FieldDivergence) map[string]bool {
	out := make(map[string]bool, len(divs))
	for _, d := range divs {
		out[d.Field] = true
	}
	return out
}

func TestVerifyDir_Clean(t *testing.T) {
	dir, store, _ := writeDataset(t)

	report, err := New(store).VerifyDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("VerifyDir: %v", err)
	}
	if !report.OK() {
		t.Errorf("expected clean report, got %+v", report.Files[0])
	}
	if report.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", report.TotalRecords)
	}
}

func TestVerifyFile_TamperedContent(t *testing.T) {
	dir, store, recs := writeDataset(t)
	path := filepath.Join(dir, "BTC-ETH"+dataset.Ext)

	tampered := *recs[1]
	tampered.In = []domain.Leg{recs[1].In[0]}
	tampered.In[0].Address = "addr-changed"
	if err := dataset.WriteRecords(path, []*domain.CanonicalRecord{recs[0], &tampered, recs[2]}); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	fr, err := New(store).VerifyFile(context.Background(), path)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if len(fr.Divergent) != 1 {
		t.Fatalf("Divergent = %d, want 1", len(fr.Divergent))
	}
	res := fr.Divergent[0]
	if res.Position != 1 || res.Match() {
		t.Errorf("unexpected result %+v", res)
	}
	got := fields(res.Divergences)
	if !got["ID"] || !got["In[0]"] {
		t.Errorf("divergent fields = %v, want ID and In[0]", got)
	}
}

func TestVerifyFile_WithoutStore(t *testing.T) {
	dir, _, recs := writeDataset(t)
	path := filepath.Join(dir, "BTC-ETH"+dataset.Ext)

	wrongPair := makeRecord("ETH", "BTC", "tx9", 500)
	if err := dataset.WriteRecords(path, append(recs, recs[0], wrongPair)); err != nil {
		t.Fatalf("WriteRecords: %v", err)
	}

	fr, err := New(nil).VerifyFile(context.Background(), path)
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if len(fr.Duplicates) != 1 || fr.Duplicates[0].Count != 2 {
		t.Errorf("Duplicates = %+v, want one id seen twice", fr.Duplicates)
	}
	if len(fr.Divergent) != 1 || !fields(fr.Divergent[0].Divergences)["Route"] {
		t.Errorf("Divergent = %+v, want one route divergence", fr.Divergent)
	}
	if fr.OK() {
		t.Error("expected file to fail verification")
	}
}

func TestVerifyFile_MissingFromStore(t *testing.T) {
	dir, _, _ := writeDataset(t)

	fr, err := New(memory.NewRecordStore()).VerifyFile(context.Background(), filepath.Join(dir, "BTC-ETH"+dataset.Ext))
	if err != nil {
		t.Fatalf("VerifyFile: %v", err)
	}
	if len(fr.Divergent) != 3 {
		t.Fatalf("Divergent = %d, want 3", len(fr.Divergent))
	}
	for _, r := range fr.Divergent {
		if !fields(r.Divergences)["Stored"] {
			t.Errorf("record %s: want Stored divergence, got %+v", r.ID, r.Divergences)
		}
	}
}

func TestVerifyRecord(t *testing.T) {
	rec := makeRecord("BTC", "ETH", "tx1", 1_000_000_000)
	if divs := VerifyRecord(rec, "BTC-ETH", 0); len(divs) != 0 {
		t.Errorf("clean record diverged: %+v", divs)
	}

	rec.Idx = 4
	rec.Status = "pending"
	rec.CompletedTimestamp = 1
	got := fields(VerifyRecord(rec, "", 0))
	for _, f := range []string{"ID", "Idx", "Status", "CompletedTimestamp"} {
		if !got[f] {
			t.Errorf("missing %s divergence in %v", f, got)
		}
	}
	if got["Route"] {
		t.Error("empty stem should skip routing check")
	}
}

func TestCompareRecords_LegCount(t *testing.T) {
	a := makeRecord("BTC", "ETH", "tx1", 1)
	b := *a
	b.Out = append(append([]domain.Leg(nil), a.Out...), a.Out[0])
	b.SwapSlipBps = nil

	got := fields(CompareRecords(a, &b))
	if !got["Out"] || !got["SwapSlipBps"] {
		t.Errorf("divergent fields = %v, want Out and SwapSlipBps", got)
	}
	if got["In"] {
		t.Error("In legs are equal")
	}
}
