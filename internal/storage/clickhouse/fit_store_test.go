package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/storage"
)

func TestFitStore_InsertAndGet(t *testing.T) {
	conn := newTestConn(t)

	store := NewFitStore(conn)
	ctx := context.Background()

	btcEth := domain.PairGroup{InChain: "BTC", OutChain: "ETH"}
	fits := []*domain.FittedDistribution{
		{
			Pair:       btcEth,
			Feature:    domain.FeatureTimeToCompletion,
			Params:     domain.GaussianParams{Mu: 180, Sigma: 50},
			RMSE:       0.0012,
			SampleSize: 5000,
		},
		{
			Pair:        btcEth,
			Feature:     domain.FeatureFeeRate,
			Params:      domain.GammaParams{Shape: 1.5, Rate: 300},
			RMSE:        0.4,
			SampleSize:  80,
			Provisional: true,
		},
	}

	require.NoError(t, store.InsertBulk(ctx, "run-1", fits))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.FeatureFeeRate, got[0].Feature)
	assert.Equal(t, domain.GammaParams{Shape: 1.5, Rate: 300}, got[0].Params)
	assert.True(t, got[0].Provisional)
	assert.Equal(t, 80, got[0].SampleSize)

	one, err := store.GetByKey(ctx, "run-1", btcEth, domain.FeatureTimeToCompletion)
	require.NoError(t, err)
	assert.Equal(t, domain.GaussianParams{Mu: 180, Sigma: 50}, one.Params)
	assert.InDelta(t, 0.0012, one.RMSE, 1e-12)
	assert.False(t, one.Provisional)

	_, err = store.GetByKey(ctx, "run-2", btcEth, domain.FeatureTimeToCompletion)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.InsertBulk(ctx, "run-1", fits[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestFitStore_InvalidInput(t *testing.T) {
	store := NewFitStore(nil)
	err := store.InsertBulk(context.Background(), "", nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	err = store.InsertBulk(context.Background(), "run", []*domain.FittedDistribution{{}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
