package ingestion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

func writeRaw(t *testing.T, path string, actions []domain.RawAction) {
	t.Helper()
	var raws []json.RawMessage
	for _, a := range actions {
		b, err := json.Marshal(a)
		require.NoError(t, err)
		raws = append(raws, b)
	}
	require.NoError(t, dataset.AppendRaw(path, raws))
}

func TestCheckOutputDir(t *testing.T) {
	empty := t.TempDir()
	assert.NoError(t, CheckOutputDir(empty, false, false))
	assert.NoError(t, CheckOutputDir(empty, false, true))
	assert.ErrorIs(t, CheckOutputDir(empty, true, true), ErrConflictingModes)

	withData := t.TempDir()
	writeRaw(t, RawPath(withData, "BTC.BTC,ETH.ETH"), makeActions("A", 1, 1))
	assert.ErrorIs(t, CheckOutputDir(withData, false, false), ErrExistingData)
	assert.ErrorIs(t, CheckOutputDir(withData, false, true), ErrFreshWithData)
	assert.NoError(t, CheckOutputDir(withData, true, false))

	withState := t.TempDir()
	require.NoError(t, os.WriteFile(StatePath(withState), []byte("{}"), 0o644))
	err := CheckOutputDir(withState, false, false)
	assert.ErrorIs(t, err, ErrExistingData)
	assert.Contains(t, err.Error(), dataset.StateFile)
}

func TestStateFromFiles(t *testing.T) {
	dir := t.TempDir()
	a := makeActions("A", 10, 1)
	b := makeActions("B", 4, 2)
	writeRaw(t, filepath.Join(dir, "BTC.BTC__ETH.ETH.ndjson"), a)
	writeRaw(t, filepath.Join(dir, "ETH.ETH__DOGE.DOGE.ndjson"), b)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "EMPTY__X.ndjson"), nil, 0o644))

	state, spans, skipped, err := StateFromFiles(dir, 0)
	require.NoError(t, err)
	require.Len(t, spans, 2)
	require.Len(t, skipped, 1)

	btc := state.Cursors["BTC.BTC,ETH.ETH"]
	assert.True(t, btc.Finished)
	assert.Equal(t, a[9].DateNs(), btc.Ts)
	assert.Equal(t, b[2].DateNs(), state.Cursors["ETH.ETH,DOGE.DOGE"].Ts)
	assert.Equal(t, a[9].DateNs(), state.MinTs)
	assert.Equal(t, b[1].DateNs(), state.MaxTs)
	assert.Equal(t, int64(14), state.Stats.Written)

	override, _, _, err := StateFromFiles(dir, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), override.MinTs)

	_, _, _, err = StateFromFiles(t.TempDir(), 0)
	assert.ErrorIs(t, err, dataset.ErrNoFiles)
}

func TestMergeDirs(t *testing.T) {
	dir1, dir2, out := t.TempDir(), t.TempDir(), t.TempDir()
	actions := makeActions("A", 10, 1)

	// dir1 holds the newest 6, dir2 the oldest 6: two overlap.
	writeRaw(t, filepath.Join(dir1, "BTC.BTC__ETH.ETH.ndjson"), actions[:6])
	writeRaw(t, filepath.Join(dir2, "BTC.BTC__ETH.ETH.ndjson"), actions[4:])
	// Only in dir2: ignored.
	writeRaw(t, filepath.Join(dir2, "ETH.ETH__DOGE.DOGE.ndjson"), actions[:1])

	results, err := MergeDirs(dir1, dir2, out, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	_, err = os.Stat(filepath.Join(out, "BTC.BTC__ETH.ETH.ndjson"))
	assert.True(t, os.IsNotExist(err), "dry run must not write")

	results, err = MergeDirs(dir1, dir2, out, false)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{File: "BTC.BTC__ETH.ETH.ndjson", Left: 6, Right: 6, Merged: 10, Duplicates: 2}, results[0])

	lines, _, err := dataset.ReadRawFile(filepath.Join(out, "BTC.BTC__ETH.ETH.ndjson"))
	require.NoError(t, err)
	require.Len(t, lines, 10)
	for i := 1; i < len(lines); i++ {
		assert.Greater(t, lines[i-1].Action.DateNs(), lines[i].Action.DateNs())
	}
}
