package postgres

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"thorswap-lab/internal/domain"
)

// schemaDir is relative to this package; go test runs in the package dir.
const schemaDir = "../migrations/postgres"

// newTestPool starts PostgreSQL, applies the record, checkpoint and
// seen-key tables, and returns a pool. Everything is torn down with the test.
func newTestPool(t *testing.T) *Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container skipped in -short mode")
	}
	ctx := context.Background()

	server, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("thorswap"),
		tcpostgres.WithUsername("thorswap"),
		tcpostgres.WithPassword("thorswap"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres")
	t.Cleanup(func() {
		if err := server.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := server.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "connect postgres")
	t.Cleanup(pool.Close)

	paths, err := filepath.Glob(filepath.Join(schemaDir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no schema files in %s", schemaDir)
	for _, path := range paths {
		body, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(body))
		require.NoError(t, err, "apply %s", filepath.Base(path))
	}
	return pool
}

func ptr[T any](v T) *T { return &v }

// testRecord builds a completed swap from chain in to chain out at ts.
func testRecord(id string, ts int64, in, out string) *domain.CanonicalRecord {
	return &domain.CanonicalRecord{
		ID:                 id,
		Timestamp:          ts,
		CompletedTimestamp: ts + 600_000_000_000,
		Height:             19_000_000,
		CompletedHeight:    19_000_100,
		Type:               domain.TypeSwap,
		Status:             domain.StatusSuccess,
		In:                 []domain.Leg{{Chain: in, Asset: in, TxID: "IN" + id, Address: "addr-in", Amount: 100_000_000, Height: 19_000_000}},
		Out:                []domain.Leg{{Chain: out, Asset: out, TxID: "OUT" + id, Address: "addr-out", Amount: 2_500_000_000, Height: 19_000_100}},
		SwapSlipBps:        ptr(int64(15)),
	}
}
