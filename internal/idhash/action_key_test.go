package idhash

import (
	"testing"

	"thorswap-lab/internal/domain"
)

func TestComputeActionKey(t *testing.T) {
	a := &domain.RawAction{
		Date:   "1700000000000000000",
		Height: "13000000",
		Type:   "swap",
		Status: "success",
		In:     []domain.RawTransfer{{TxID: "B"}, {TxID: "A"}, {TxID: "A"}},
		Out:    []domain.RawTransfer{{TxID: ""}, {TxID: "C"}},
		Metadata: &domain.RawMetadata{
			Swap: &domain.RawSwapMetadata{Memo: "=:ETH.ETH:0xabc"},
		},
	}

	want := "1700000000000000000|13000000|swap|success|=:ETH.ETH:0xabc|in:A,B|out:C"
	if got := ComputeActionKey(a); got != want {
		t.Errorf("ComputeActionKey() = %q, want %q", got, want)
	}
}

func TestComputeActionKey_NoMetadata(t *testing.T) {
	a := &domain.RawAction{Date: "1", Height: "2", Type: "swap", Status: "pending"}

	want := "1|2|swap|pending||in:|out:"
	if got := ComputeActionKey(a); got != want {
		t.Errorf("ComputeActionKey() = %q, want %q", got, want)
	}
}
