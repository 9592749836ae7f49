package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

// setupTestRedis starts a Redis container and returns a connected client.
func setupTestRedis(t *testing.T) (*Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port()), Prefix: "test"})
	require.NoError(t, err)

	cleanup := func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	}
	return client, cleanup
}

func TestNewClient_RequiresAddr(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	require.Error(t, err)
}

func TestSeenKeyStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewSeenKeyStore(client)
	ctx := context.Background()

	require.NoError(t, store.MarkSeen(ctx, "BTC.BTC,ETH.ETH", "k2", "k1", "k1"))

	seen, err := store.IsSeen(ctx, "BTC.BTC,ETH.ETH", "k1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.IsSeen(ctx, "ETH.ETH,DOGE.DOGE", "k1")
	require.NoError(t, err)
	assert.False(t, seen)

	keys, err := store.LoadSeen(ctx, "BTC.BTC,ETH.ETH")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)

	_, err = store.IsSeen(ctx, "BTC.BTC,ETH.ETH", "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestCrawlStateStore(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewCrawlStateStore(client, "raw")
	ctx := context.Background()

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	state := domain.NewCrawlState(1, 2)
	state.Cursors["BTC.BTC,ETH.ETH"] = domain.CrawlCursor{Ts: 5, Offset: 1}
	require.NoError(t, store.Save(ctx, state))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.Cursors, got.Cursors)
	assert.False(t, got.UpdatedAt.IsZero())
}
