package fitting

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"thorswap-lab/internal/domain"
)

var (
	// ErrNoFit is returned when a (pair, feature) has no fitted distribution.
	ErrNoFit = errors.New("no fitted distribution")
	// ErrNonPositiveWeights is returned when feature weights do not sum to a positive value.
	ErrNonPositiveWeights = errors.New("feature weights must sum to a positive value")
)

// Weights maps features to non-negative combination weights.
type Weights map[domain.Feature]float64

// EqualWeights weights every feature 1.
func EqualWeights() Weights {
	w := make(Weights, len(domain.AllFeatures))
	for _, f := range domain.AllFeatures {
		w[f] = 1
	}
	return w
}

// Scorer maps observations to densities under fitted distributions.
// It is immutable after construction; refit and rebuild when samples change.
type Scorer struct {
	fits     map[Key]domain.FittedDistribution
	weights  map[domain.PairGroup]Weights
	fallback Weights
}

// NewScorer builds a scorer. pairWeights overrides defaultWeights per pair;
// a nil defaultWeights means EqualWeights.
func NewScorer(fits []domain.FittedDistribution, defaultWeights Weights, pairWeights map[domain.PairGroup]Weights) *Scorer {
	s := &Scorer{
		fits:     make(map[Key]domain.FittedDistribution, len(fits)),
		weights:  make(map[domain.PairGroup]Weights, len(pairWeights)),
		fallback: defaultWeights,
	}
	if s.fallback == nil {
		s.fallback = EqualWeights()
	}
	for _, f := range fits {
		s.fits[Key{Pair: f.Pair, Feature: f.Feature}] = f
	}
	for p, w := range pairWeights {
		s.weights[p] = w
	}
	return s
}

// Fit returns the fitted distribution for a key.
func (s *Scorer) Fit(pair domain.PairGroup, feature domain.Feature) (domain.FittedDistribution, bool) {
	f, ok := s.fits[Key{Pair: pair, Feature: feature}]
	return f, ok
}

// Density returns the probability density (not a normalized score) of x
// under the pair's selected family for feature.
func (s *Scorer) Density(pair domain.PairGroup, feature domain.Feature, x float64) (float64, error) {
	f, ok := s.Fit(pair, feature)
	if !ok {
		return 0, fmt.Errorf("%w for %s/%s", ErrNoFit, pair, feature)
	}
	return Density(f.Params, x), nil
}

// Combined returns sum(w_f * density_f) / sum(w_f) over the features in obs
// that carry a weight for the pair and have a fit. Weighted features without
// a fit are left out; ErrNoFit is returned only when none remain.
func (s *Scorer) Combined(pair domain.PairGroup, obs map[domain.Feature]float64) (float64, error) {
	score, _, err := s.CombinedPartial(pair, obs)
	return score, err
}

// CombinedPartial is Combined that also reports the weighted features left
// out for lack of a fit, in feature order.
func (s *Scorer) CombinedPartial(pair domain.PairGroup, obs map[domain.Feature]float64) (float64, []domain.Feature, error) {
	w, ok := s.weights[pair]
	if !ok {
		w = s.fallback
	}

	features := make([]domain.Feature, 0, len(obs))
	for f := range obs {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })

	var (
		num, den float64
		missing  []domain.Feature
	)
	for _, f := range features {
		wf := w[f]
		if wf < 0 || math.IsNaN(wf) {
			return 0, nil, fmt.Errorf("%w: %s weight %g", ErrNonPositiveWeights, f, wf)
		}
		if wf == 0 {
			continue
		}
		fit, ok := s.Fit(pair, f)
		if !ok {
			missing = append(missing, f)
			continue
		}
		num += wf * Density(fit.Params, obs[f])
		den += wf
	}
	if den <= 0 {
		if len(missing) > 0 {
			return 0, missing, fmt.Errorf("%w for %s (features %v)", ErrNoFit, pair, missing)
		}
		return 0, nil, fmt.Errorf("%w for %s", ErrNonPositiveWeights, pair)
	}
	return num / den, missing, nil
}

// Score is Combined over the features extracted from rec.
func (s *Scorer) Score(rec *domain.CanonicalRecord) (float64, error) {
	score, _, err := s.ScorePartial(rec)
	return score, err
}

// ScorePartial is CombinedPartial over the features extracted from rec.
func (s *Scorer) ScorePartial(rec *domain.CanonicalRecord) (float64, []domain.Feature, error) {
	pair, ok := rec.Pair()
	if !ok {
		return 0, nil, fmt.Errorf("%w: record %s has no pair", ErrNoFit, rec.ID)
	}
	return s.CombinedPartial(pair, Observation(rec))
}
