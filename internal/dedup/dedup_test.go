package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"thorswap-lab/internal/domain"
)

func rec(id string, completedHeight int64) *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		ID:              id,
		Timestamp:       1,
		Height:          10,
		CompletedHeight: completedHeight,
		Type:            domain.TypeSwap,
		Status:          domain.StatusSuccess,
		In:              []domain.Leg{{Chain: "BTC", Asset: "BTC", Amount: 1}},
		Out:             []domain.Leg{{Chain: "ETH", Asset: "ETH", Amount: 2}},
	}
}

func TestDeduplicator_OneRecordPerID(t *testing.T) {
	input := []*domain.CanonicalRecord{
		rec("a", 11), rec("b", 11), rec("a", 11), rec("c", 11), rec("b", 11), rec("a", 11),
	}

	d := New(nil)
	out := d.Filter(input)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 3, d.Duplicates())
	assert.Empty(t, d.Anomalies())
	assert.Nil(t, Validate(out))
}

func TestDeduplicator_IdxDifferenceIsNotAnAnomaly(t *testing.T) {
	a1, a2 := rec("a", 11), rec("a", 11)
	a1.Idx, a2.Idx = 0, 7

	d := New(nil)
	assert.True(t, d.Add(a1))
	assert.False(t, d.Add(a2))
	assert.Empty(t, d.Anomalies())
}

func TestDeduplicator_FirstObservedWinsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := New(zap.New(core))

	first := rec("a", 11)
	later := rec("a", 15)

	assert.True(t, d.Add(first))
	assert.False(t, d.Add(later))

	anomalies := d.Anomalies()
	require.Len(t, anomalies, 1)
	assert.Same(t, first, anomalies[0].Kept)
	assert.Same(t, later, anomalies[0].Rejected)
	assert.Equal(t, 1, logs.FilterMessage("duplicate id with differing content").Len())
}

func TestValidate_ReportsRepeatedIDs(t *testing.T) {
	records := []*domain.CanonicalRecord{rec("x", 1), rec("y", 1), rec("x", 1), rec("x", 1)}
	for i, r := range records {
		r.Idx = int64(i)
	}

	dups := Validate(records)
	require.Len(t, dups, 1)
	assert.Equal(t, "x", dups[0].ID)
	assert.Equal(t, 3, dups[0].Count)
	assert.Equal(t, []int64{0, 2, 3}, dups[0].Idx)
}
