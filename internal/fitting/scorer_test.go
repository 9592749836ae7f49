package fitting

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/domain"
)

func testFits() []domain.FittedDistribution {
	return []domain.FittedDistribution{
		{Pair: btcEth, Feature: domain.FeatureTimeToCompletion, Params: domain.GaussianParams{Mu: 180, Sigma: 50}, SampleSize: 500},
		{Pair: btcEth, Feature: domain.FeatureFeeRate, Params: domain.ExponentialParams{Rate: 100}, SampleSize: 500},
	}
}

func TestDensity_Families(t *testing.T) {
	assert.InDelta(t, 1/(50*math.Sqrt(2*math.Pi)), Density(domain.GaussianParams{Mu: 180, Sigma: 50}, 180), 1e-12)
	assert.InDelta(t, 2*math.Exp(-2), Density(domain.ExponentialParams{Rate: 2}, 1), 1e-12)
	assert.Equal(t, 0.0, Density(domain.ExponentialParams{Rate: 2}, -1))
	assert.InDelta(t, 0.25, Density(domain.SigmoidParams{Mu: 0, S: 1}, 0), 1e-12)
	assert.Equal(t, 0.0, Density(domain.LogNormalParams{Mu: 0, Sigma: 1}, 0))
	assert.InDelta(t, math.Exp(-1), Density(domain.GammaParams{Shape: 1, Rate: 1}, 1), 1e-12)
}

func TestScorer_Combined(t *testing.T) {
	s := NewScorer(testFits(), Weights{domain.FeatureTimeToCompletion: 3, domain.FeatureFeeRate: 1}, nil)

	obs := map[domain.Feature]float64{
		domain.FeatureTimeToCompletion: 200,
		domain.FeatureFeeRate:          0.01,
	}
	dt, err := s.Density(btcEth, domain.FeatureTimeToCompletion, 200)
	require.NoError(t, err)
	df, err := s.Density(btcEth, domain.FeatureFeeRate, 0.01)
	require.NoError(t, err)

	got, err := s.Combined(btcEth, obs)
	require.NoError(t, err)
	assert.InDelta(t, (3*dt+df)/4, got, 1e-15)
}

func TestScorer_PairWeightsOverrideDefault(t *testing.T) {
	s := NewScorer(testFits(), nil, map[domain.PairGroup]Weights{
		btcEth: {domain.FeatureFeeRate: 1},
	})

	got, err := s.Combined(btcEth, map[domain.Feature]float64{
		domain.FeatureTimeToCompletion: 200,
		domain.FeatureFeeRate:          0.01,
	})
	require.NoError(t, err)
	df, _ := s.Density(btcEth, domain.FeatureFeeRate, 0.01)
	assert.InDelta(t, df, got, 1e-15)
}

func TestScorer_Errors(t *testing.T) {
	s := NewScorer(testFits(), Weights{domain.FeatureTimeToCompletion: 0, domain.FeatureFeeRate: 0}, nil)
	_, err := s.Combined(btcEth, map[domain.Feature]float64{domain.FeatureFeeRate: 0.01})
	assert.ErrorIs(t, err, ErrNonPositiveWeights)

	neg := NewScorer(testFits(), Weights{domain.FeatureFeeRate: -1}, nil)
	_, err = neg.Combined(btcEth, map[domain.Feature]float64{domain.FeatureFeeRate: 0.01})
	assert.ErrorIs(t, err, ErrNonPositiveWeights)

	eq := NewScorer(testFits(), nil, nil)
	_, err = eq.Density(btcEth.Reverse(), domain.FeatureFeeRate, 0.01)
	assert.ErrorIs(t, err, ErrNoFit, "reverse direction is not pooled")
}

func TestScorer_ScoreRecord(t *testing.T) {
	bps := int64(100)
	rec := &domain.CanonicalRecord{
		ID:                 "r",
		Timestamp:          1_000_000_000_000,
		CompletedTimestamp: 1_000_000_000_000 + 180*1_000_000_000,
		In:                 []domain.Leg{{Chain: "BTC"}},
		Out:                []domain.Leg{{Chain: "ETH"}},
		SwapSlipBps:        &bps,
	}

	s := NewScorer(testFits(), nil, nil)
	got, err := s.Score(rec)
	require.NoError(t, err)

	dt, _ := s.Density(btcEth, domain.FeatureTimeToCompletion, 180)
	df, _ := s.Density(btcEth, domain.FeatureFeeRate, 0.01)
	assert.InDelta(t, (dt+df)/2, got, 1e-15)
}

func TestScorer_MissingFeatureFitIsLeftOut(t *testing.T) {
	s := NewScorer(testFits()[:1], nil, nil)
	obs := map[domain.Feature]float64{
		domain.FeatureTimeToCompletion: 200,
		domain.FeatureFeeRate:          0.01,
	}

	got, missing, err := s.CombinedPartial(btcEth, obs)
	require.NoError(t, err)
	dt, _ := s.Density(btcEth, domain.FeatureTimeToCompletion, 200)
	assert.InDelta(t, dt, got, 1e-15)
	assert.Equal(t, []domain.Feature{domain.FeatureFeeRate}, missing)

	combined, err := s.Combined(btcEth, obs)
	require.NoError(t, err)
	assert.Equal(t, got, combined)

	none := NewScorer(nil, nil, nil)
	_, missing, err = none.CombinedPartial(btcEth, obs)
	assert.ErrorIs(t, err, ErrNoFit)
	assert.Len(t, missing, 2)
}

func TestSamples(t *testing.T) {
	bps := int64(25)
	groups := map[domain.PairGroup][]*domain.CanonicalRecord{
		btcEth: {
			{Timestamp: 1e9, CompletedTimestamp: 61e9, SwapSlipBps: &bps},
			{Timestamp: 1e9},
		},
	}

	samples := Samples(groups)
	assert.Equal(t, []float64{60}, samples[Key{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}])
	assert.Equal(t, []float64{0.0025}, samples[Key{Pair: btcEth, Feature: domain.FeatureFeeRate}])
}
