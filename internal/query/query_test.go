package query

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

func record(id string) *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		ID:     id,
		Type:   domain.TypeSwap,
		Status: domain.StatusSuccess,
		In:     []domain.Leg{{Chain: "BTC", Asset: "BTC", TxID: "IN-" + id, Address: "bc1qsrc", Amount: 1500, Height: 100}},
		Out:    []domain.Leg{{Chain: "ETH", Asset: "ETH", TxID: "OUT-" + id, Address: "0xdst", Amount: 4200, Height: 112}},
	}
}

func TestFromRecord(t *testing.T) {
	q, ok := FromRecord(record("abc"))
	require.True(t, ok)

	assert.Equal(t, "What is the source transaction for this cross-chain ETH output to 0xdst in tx OUT-abc on ETH, "+
		"given that it originates from BTC on BTC?", q.Query)
	assert.Equal(t, "abc", q.QueryID)
	assert.Equal(t, "IN-abc", q.GroundTruth)
	assert.Equal(t, Metadata{RecordID: "abc", HeightDiff: 12, SrcAmount: 1500, DstAmount: 4200}, q.Metadata)
}

func TestFromRecord_Rejects(t *testing.T) {
	twoIn := record("a")
	twoIn.In = append(twoIn.In, twoIn.In[0])
	_, ok := FromRecord(twoIn)
	assert.False(t, ok)

	noAddress := record("b")
	noAddress.Out[0].Address = ""
	_, ok = FromRecord(noAddress)
	assert.False(t, ok)

	noHeight := record("c")
	noHeight.Out[0].Height = 0
	q, ok := FromRecord(noHeight)
	require.True(t, ok)
	assert.Zero(t, q.Metadata.HeightDiff)
}

func TestMarshal_HeaderAndRoundTrip(t *testing.T) {
	queries := Build([]*domain.CanonicalRecord{record("a"), record("b")})

	data, err := Marshal(queries)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), Header))
	assert.Contains(t, string(data), "query_id: a")

	path := filepath.Join(t.TempDir(), "q.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, queries, f.Queries)
}

func TestGenerateBatch(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "queries")

	require.NoError(t, dataset.WriteRecords(filepath.Join(in, "BTC-ETH.ndjson"), []*domain.CanonicalRecord{record("a"), record("b")}))
	require.NoError(t, dataset.WriteRecords(filepath.Join(in, "multi-in.ndjson"), []*domain.CanonicalRecord{record("c")}))

	bad := record("d")
	bad.Out[0].TxID = ""
	require.NoError(t, dataset.WriteRecords(filepath.Join(in, "ETH-BTC.ndjson"), []*domain.CanonicalRecord{bad}))

	res, err := GenerateBatch(in, out, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, []string{"multi-in.ndjson"}, res.Skipped)
	assert.Equal(t, []string{"ETH-BTC.ndjson"}, res.Empty)
	assert.Equal(t, map[string]int{filepath.Join(out, "BTC-ETH.yaml"): 2}, res.Files)

	f, err := Load(filepath.Join(out, "BTC-ETH.yaml"))
	require.NoError(t, err)
	require.Len(t, f.Queries, 2)
	assert.Equal(t, "IN-a", f.Queries[0].GroundTruth)
}
