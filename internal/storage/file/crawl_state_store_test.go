package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

func TestCrawlStateStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "state.json")
	store, err := NewCrawlStateStore(path)
	require.NoError(t, err)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	ctx := context.Background()
	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	state := domain.NewCrawlState(1_600_000_000_000_000_000, 1_700_000_000_000_000_000)
	state.Cursors["BTC.BTC,ETH.ETH"] = domain.CrawlCursor{Ts: 1_650_000_000_000_000_000, Offset: 3}
	state.Cursors["ETH.ETH,DOGE.DOGE"] = domain.CrawlCursor{Finished: true}
	state.Stats.Pages = 7
	require.NoError(t, store.Save(ctx, state))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.Cursors, got.Cursors)
	assert.Equal(t, state.MinTs, got.MinTs)
	assert.Equal(t, int64(7), got.Stats.Pages)
	assert.Equal(t, int64(1700000000), got.UpdatedAt.Unix())
	assert.True(t, state.UpdatedAt.IsZero(), "caller state must not be stamped")
}

func TestCrawlStateStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewCrawlStateStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
}
