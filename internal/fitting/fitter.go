// Package fitting fits candidate distribution families to per-pair feature
// samples, selects the best by histogram RMSE and scores new observations.
package fitting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/observability"
)

var (
	// ErrEmptySample is returned when fitting was requested for a sample with no values.
	ErrEmptySample = errors.New("empty sample")
	// ErrNoCandidate is returned when every family failed to fit.
	ErrNoCandidate = errors.New("no candidate family could be fitted")
)

const (
	// DefaultBins is the shared histogram bin count.
	DefaultBins = 30
	// DefaultMinSampleSize is the floor below which fits are provisional.
	DefaultMinSampleSize = 100
	// tieTolerance is the relative RMSE difference treated as a tie.
	tieTolerance = 1e-12
)

// Options configures a Fitter.
type Options struct {
	Bins          int
	MinSampleSize int
	Families      []domain.Family // candidate set; default all
	Concurrency   int             // FitAll goroutines; <= 0 means unlimited
	Logger        *zap.Logger
}

// DefaultOptions returns default fitter options.
func DefaultOptions() Options {
	return Options{
		Bins:          DefaultBins,
		MinSampleSize: DefaultMinSampleSize,
		Families:      append([]domain.Family(nil), domain.AllFamilies...),
	}
}

// Key identifies one independent fit. Directions are never pooled.
type Key struct {
	Pair    domain.PairGroup
	Feature domain.Feature
}

func (k Key) String() string {
	return k.Pair.String() + "/" + string(k.Feature)
}

// Candidate is one family's outcome on a sample.
type Candidate struct {
	Family domain.Family
	Params domain.Params // nil when Err is set
	RMSE   float64
	Err    error // estimation failure; the family was excluded
}

// FitResult is the outcome of fitting one sample.
type FitResult struct {
	Best       domain.FittedDistribution
	Candidates []Candidate // in family order, including excluded ones
}

// Provisional reports whether the best fit came from an undersized sample.
func (r *FitResult) Provisional() bool { return r.Best.Provisional }

// Excluded returns the families that failed to fit with their errors.
func (r *FitResult) Excluded() map[domain.Family]error {
	out := make(map[domain.Family]error)
	for _, c := range r.Candidates {
		if c.Err != nil {
			out[c.Family] = c.Err
		}
	}
	return out
}

// Fitter fits and selects distribution families. Safe for concurrent use.
type Fitter struct {
	opts   Options
	logger *zap.Logger
}

// NewFitter creates a fitter. Zero-valued options fall back to defaults.
func NewFitter(opts Options) *Fitter {
	def := DefaultOptions()
	if opts.Bins <= 0 {
		opts.Bins = def.Bins
	}
	if opts.MinSampleSize <= 0 {
		opts.MinSampleSize = def.MinSampleSize
	}
	if len(opts.Families) == 0 {
		opts.Families = def.Families
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fitter{opts: opts, logger: logger}
}

// Fit fits every candidate family to sample and selects the one with the
// lowest RMSE. Ties go to fewer parameters, then to family order.
func (f *Fitter) Fit(key Key, sample []float64) (*FitResult, error) {
	if len(sample) == 0 {
		return nil, fmt.Errorf("%s: %w", key, ErrEmptySample)
	}
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: non-finite value in sample", key)
		}
	}

	hist := NewHistogram(sample, f.opts.Bins)
	res := &FitResult{Candidates: make([]Candidate, 0, len(f.opts.Families))}

	for _, fam := range f.opts.Families {
		c := Candidate{Family: fam}
		p, err := estimate(fam, sample)
		if err != nil {
			c.Err = err
			f.logger.Info("family excluded",
				zap.String("key", key.String()),
				zap.String("family", fam.String()),
				zap.Error(err))
			observability.RecordFitExcluded(fam.String())
		} else {
			c.Params = p
			c.RMSE = hist.RMSE(p)
		}
		res.Candidates = append(res.Candidates, c)
	}

	best, ok := selectBest(res.Candidates, f.opts.Families)
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNoCandidate)
	}

	res.Best = domain.FittedDistribution{
		Pair:        key.Pair,
		Feature:     key.Feature,
		Params:      best.Params,
		RMSE:        best.RMSE,
		SampleSize:  len(sample),
		Provisional: len(sample) < f.opts.MinSampleSize,
	}
	if res.Best.Provisional {
		f.logger.Warn("provisional fit from undersized sample",
			zap.String("key", key.String()),
			zap.Int("sample_size", len(sample)),
			zap.Int("min_sample_size", f.opts.MinSampleSize))
	}
	observability.RecordFit(key.Pair.String(), string(key.Feature), best.Family.String(), best.RMSE)
	return res, nil
}

func selectBest(cands []Candidate, order []domain.Family) (Candidate, bool) {
	rank := make(map[domain.Family]int, len(order))
	for i, fam := range order {
		rank[fam] = i
	}
	valid := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Err == nil && !math.IsNaN(c.RMSE) {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(valid, func(i, j int) bool {
		a, b := valid[i], valid[j]
		if !rmseTie(a.RMSE, b.RMSE) {
			return a.RMSE < b.RMSE
		}
		if a.Family.NumParams() != b.Family.NumParams() {
			return a.Family.NumParams() < b.Family.NumParams()
		}
		return rank[a.Family] < rank[b.Family]
	})
	return valid[0], true
}

func rmseTie(a, b float64) bool {
	return math.Abs(a-b) <= tieTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// FitAll fits every (pair, feature) sample in parallel. Empty samples are
// reported in the returned error map rather than aborting other fits.
func (f *Fitter) FitAll(ctx context.Context, samples map[Key][]float64) (map[Key]*FitResult, map[Key]error, error) {
	var (
		mu      sync.Mutex
		results = make(map[Key]*FitResult, len(samples))
		failed  = make(map[Key]error)
	)

	g, ctx := errgroup.WithContext(ctx)
	if f.opts.Concurrency > 0 {
		g.SetLimit(f.opts.Concurrency)
	}
	for key, sample := range samples {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := f.Fit(key, sample)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[key] = err
				return nil
			}
			results[key] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return results, failed, nil
}

// SortedKeys returns keys ordered by pair then feature.
func SortedKeys[V any](m map[Key]V) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Pair != keys[j].Pair {
			return keys[i].Pair.String() < keys[j].Pair.String()
		}
		return keys[i].Feature < keys[j].Feature
	})
	return keys
}
