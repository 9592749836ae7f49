package fitting

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"thorswap-lab/internal/domain"
)

var (
	// ErrDegenerate is returned when a sample has no spread.
	ErrDegenerate = errors.New("degenerate sample")
	// ErrOutOfSupport is returned when a sample has values outside the family's support.
	ErrOutOfSupport = errors.New("sample outside family support")
	// ErrNotConverged is returned when iterative estimation does not converge.
	ErrNotConverged = errors.New("estimation did not converge")
)

const (
	gammaMaxIter = 100
	gammaTol     = 1e-10
)

// estimate fits family f to x. x is non-empty.
func estimate(f domain.Family, x []float64) (domain.Params, error) {
	switch f {
	case domain.FamilyGaussian:
		mu, sigma := mleMeanStd(x)
		if sigma <= 0 {
			return nil, ErrDegenerate
		}
		return domain.GaussianParams{Mu: mu, Sigma: sigma}, nil

	case domain.FamilyLogNormal:
		logs := make([]float64, len(x))
		for i, v := range x {
			if v <= 0 {
				return nil, fmt.Errorf("%w: %g <= 0", ErrOutOfSupport, v)
			}
			logs[i] = math.Log(v)
		}
		mu, sigma := mleMeanStd(logs)
		if sigma <= 0 {
			return nil, ErrDegenerate
		}
		return domain.LogNormalParams{Mu: mu, Sigma: sigma}, nil

	case domain.FamilyGamma:
		return fitGamma(x)

	case domain.FamilyExponential:
		for _, v := range x {
			if v < 0 {
				return nil, fmt.Errorf("%w: %g < 0", ErrOutOfSupport, v)
			}
		}
		mean := stat.Mean(x, nil)
		if mean <= 0 {
			return nil, ErrDegenerate
		}
		return domain.ExponentialParams{Rate: 1 / mean}, nil

	case domain.FamilySigmoid:
		mu, sigma := mleMeanStd(x)
		if sigma <= 0 {
			return nil, ErrDegenerate
		}
		return domain.SigmoidParams{Mu: mu, S: math.Sqrt(3) * sigma / math.Pi}, nil
	}
	return nil, fmt.Errorf("unsupported family %s", f)
}

// fitGamma estimates shape/rate by maximum likelihood: Minka's closed-form
// start followed by Newton iterations on ln k - psi(k) = ln(mean) - mean(ln x).
func fitGamma(x []float64) (domain.Params, error) {
	var sumLog float64
	for _, v := range x {
		if v <= 0 {
			return nil, fmt.Errorf("%w: %g <= 0", ErrOutOfSupport, v)
		}
		sumLog += math.Log(v)
	}
	mean := stat.Mean(x, nil)
	s := math.Log(mean) - sumLog/float64(len(x))
	if !(s > 0) || math.IsInf(s, 0) {
		return nil, ErrDegenerate
	}

	k := (3 - s + math.Sqrt((s-3)*(s-3)+24*s)) / (12 * s)
	for i := 0; i < gammaMaxIter; i++ {
		num := math.Log(k) - mathext.Digamma(k) - s
		den := 1/k - trigamma(k)
		next := k - num/den
		if next <= 0 || math.IsNaN(next) || math.IsInf(next, 0) {
			next = k / 2
		}
		if math.Abs(next-k) <= gammaTol*k {
			return domain.GammaParams{Shape: next, Rate: next / mean}, nil
		}
		k = next
	}
	return nil, fmt.Errorf("%w: gamma shape after %d iterations", ErrNotConverged, gammaMaxIter)
}

// trigamma evaluates psi'(x) for x > 0 by recurrence up to x >= 6 and the
// asymptotic series.
func trigamma(x float64) float64 {
	var acc float64
	for x < 6 {
		acc += 1 / (x * x)
		x++
	}
	x2 := 1 / (x * x)
	return acc + 1/x + x2/2 + x2/x*(1.0/6-x2*(1.0/30-x2*(1.0/42-x2/30)))
}

// mleMeanStd returns the mean and the maximum-likelihood (1/n) standard deviation.
func mleMeanStd(x []float64) (float64, float64) {
	mean, variance := stat.MeanVariance(x, nil)
	n := float64(len(x))
	if n < 2 {
		return mean, 0
	}
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// Density returns the probability density of p at x.
func Density(p domain.Params, x float64) float64 {
	switch v := p.(type) {
	case domain.GaussianParams:
		return distuv.Normal{Mu: v.Mu, Sigma: v.Sigma}.Prob(x)
	case domain.LogNormalParams:
		if x <= 0 {
			return 0
		}
		return distuv.LogNormal{Mu: v.Mu, Sigma: v.Sigma}.Prob(x)
	case domain.GammaParams:
		if x <= 0 {
			return 0
		}
		return distuv.Gamma{Alpha: v.Shape, Beta: v.Rate}.Prob(x)
	case domain.ExponentialParams:
		if x < 0 {
			return 0
		}
		return distuv.Exponential{Rate: v.Rate}.Prob(x)
	case domain.SigmoidParams:
		e := math.Exp(-math.Abs(x-v.Mu) / v.S)
		return e / (v.S * (1 + e) * (1 + e))
	}
	return 0
}
