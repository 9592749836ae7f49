package fitting

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thorswap-lab/internal/domain"
)

var btcEth = domain.PairGroup{InChain: "BTC", OutChain: "ETH"}

func gaussianSample(n int, mu, sigma float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, 0, n)
	for len(out) < n {
		v := mu + sigma*r.NormFloat64()
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// gammaSample draws Gamma(shape, rate) for integer shape as a sum of exponentials.
func gammaSample(n, shape int, rate float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		var s float64
		for j := 0; j < shape; j++ {
			s += r.ExpFloat64() / rate
		}
		out[i] = s
	}
	return out
}

func candidate(t *testing.T, res *FitResult, fam domain.Family) Candidate {
	t.Helper()
	for _, c := range res.Candidates {
		if c.Family == fam {
			return c
		}
	}
	t.Fatalf("no candidate for %s", fam)
	return Candidate{}
}

func TestFit_GaussianSelectedForGaussianSample(t *testing.T) {
	sample := gaussianSample(50000, 180, 50, 20240101)
	f := NewFitter(DefaultOptions())

	res, err := f.Fit(Key{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}, sample)
	require.NoError(t, err)

	assert.Equal(t, domain.FamilyGaussian, res.Best.Family())
	assert.False(t, res.Provisional())
	assert.Equal(t, 50000, res.Best.SampleSize)

	gauss := candidate(t, res, domain.FamilyGaussian)
	expo := candidate(t, res, domain.FamilyExponential)
	require.NoError(t, expo.Err)
	assert.Less(t, gauss.RMSE, expo.RMSE)

	p := res.Best.Params.(domain.GaussianParams)
	assert.InDelta(t, 180, p.Mu, 1.5)
	assert.InDelta(t, 50, p.Sigma, 1.5)
}

func TestFit_GammaRecoversParameters(t *testing.T) {
	sample := gammaSample(20000, 3, 0.05, 7)

	p, err := fitGamma(sample)
	require.NoError(t, err)
	g := p.(domain.GammaParams)
	assert.InDelta(t, 3, g.Shape, 0.15)
	assert.InDelta(t, 0.05, g.Rate, 0.003)
}

func TestFit_ClosedFormEstimates(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	p, err := estimate(domain.FamilyExponential, x)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, p.(domain.ExponentialParams).Rate, 1e-12)

	p, err = estimate(domain.FamilyGaussian, x)
	require.NoError(t, err)
	g := p.(domain.GaussianParams)
	assert.InDelta(t, 2.5, g.Mu, 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), g.Sigma, 1e-12)

	p, err = estimate(domain.FamilySigmoid, x)
	require.NoError(t, err)
	s := p.(domain.SigmoidParams)
	assert.InDelta(t, 2.5, s.Mu, 1e-12)
	assert.InDelta(t, math.Sqrt(3)*math.Sqrt(1.25)/math.Pi, s.S, 1e-12)

	p, err = estimate(domain.FamilyLogNormal, []float64{math.E, math.E * math.E})
	require.NoError(t, err)
	ln := p.(domain.LogNormalParams)
	assert.InDelta(t, 1.5, ln.Mu, 1e-12)
	assert.InDelta(t, 0.5, ln.Sigma, 1e-12)
}

func TestFit_ExcludesFamiliesOutsideSupport(t *testing.T) {
	sample := []float64{0, 0.001, 0.002, 0.002, 0.004, 0.01}
	f := NewFitter(DefaultOptions())

	res, err := f.Fit(Key{Pair: btcEth, Feature: domain.FeatureFeeRate}, sample)
	require.NoError(t, err)

	excluded := res.Excluded()
	assert.ErrorIs(t, excluded[domain.FamilyLogNormal], ErrOutOfSupport)
	assert.ErrorIs(t, excluded[domain.FamilyGamma], ErrOutOfSupport)
	assert.NotContains(t, excluded, domain.FamilyGaussian)
	assert.True(t, res.Provisional(), "6 values is below the default floor")
}

func TestFit_EmptySample(t *testing.T) {
	_, err := NewFitter(DefaultOptions()).Fit(Key{Pair: btcEth, Feature: domain.FeatureFeeRate}, nil)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestFit_ConstantSampleHasNoCandidate(t *testing.T) {
	_, err := NewFitter(Options{Families: []domain.Family{domain.FamilyGaussian, domain.FamilySigmoid}}).
		Fit(Key{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}, []float64{5, 5, 5})
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestSelectBest_TieBreaks(t *testing.T) {
	order := domain.AllFamilies
	cands := []Candidate{
		{Family: domain.FamilyGaussian, Params: domain.GaussianParams{}, RMSE: 0.5},
		{Family: domain.FamilyExponential, Params: domain.ExponentialParams{}, RMSE: 0.5},
		{Family: domain.FamilySigmoid, Params: domain.SigmoidParams{}, RMSE: 0.4},
	}
	best, ok := selectBest(cands, order)
	require.True(t, ok)
	assert.Equal(t, domain.FamilySigmoid, best.Family, "lowest RMSE wins")

	cands[2].RMSE = 0.5
	best, _ = selectBest(cands, order)
	assert.Equal(t, domain.FamilyExponential, best.Family, "fewer parameters win ties")

	cands[1].Err = ErrDegenerate
	best, _ = selectBest(cands, order)
	assert.Equal(t, domain.FamilyGaussian, best.Family, "family order breaks remaining ties")
}

func TestFitAll_DirectionsIndependent(t *testing.T) {
	ethBtc := btcEth.Reverse()
	samples := map[Key][]float64{
		{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}: gaussianSample(2000, 180, 50, 1),
		{Pair: ethBtc, Feature: domain.FeatureTimeToCompletion}: gaussianSample(2000, 900, 100, 2),
		{Pair: ethBtc, Feature: domain.FeatureFeeRate}:          nil,
	}

	results, failed, err := NewFitter(Options{Concurrency: 2}).FitAll(context.Background(), samples)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, failed, 1)
	assert.ErrorIs(t, failed[Key{Pair: ethBtc, Feature: domain.FeatureFeeRate}], ErrEmptySample)

	a := results[Key{Pair: btcEth, Feature: domain.FeatureTimeToCompletion}].Best.Params.(domain.GaussianParams)
	b := results[Key{Pair: ethBtc, Feature: domain.FeatureTimeToCompletion}].Best.Params.(domain.GaussianParams)
	assert.InDelta(t, 180, a.Mu, 10)
	assert.InDelta(t, 900, b.Mu, 20)

	keys := SortedKeys(results)
	assert.Equal(t, btcEth, keys[0].Pair)
}

func TestTrigamma(t *testing.T) {
	// psi'(1) = pi^2/6, psi'(0.5) = pi^2/2
	assert.InDelta(t, math.Pi*math.Pi/6, trigamma(1), 1e-9)
	assert.InDelta(t, math.Pi*math.Pi/2, trigamma(0.5), 1e-9)
}

func TestHistogram_DensityIntegratesToOne(t *testing.T) {
	h := NewHistogram(gaussianSample(1000, 10, 2, 3), DefaultBins)
	width := h.Edges[1] - h.Edges[0]
	var total float64
	for _, d := range h.Density {
		total += d * width
	}
	assert.InDelta(t, 1, total, 1e-9)
	assert.Len(t, h.Centers, DefaultBins)
}
