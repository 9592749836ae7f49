package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/sampling"
	"thorswap-lab/internal/storage"
)

// LoadGroups reads every per-pair file in dir, keyed by the pair in its name.
func LoadGroups(dir string) (map[domain.PairGroup][]*domain.CanonicalRecord, error) {
	files, err := dataset.PairFiles(dir)
	if err != nil {
		return nil, err
	}
	groups := make(map[domain.PairGroup][]*domain.CanonicalRecord, len(files))
	for _, f := range files {
		pair, err := domain.ParsePairGroup(dataset.Stem(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		recs, err := dataset.ReadRecords(f)
		if err != nil {
			return nil, err
		}
		groups[pair] = recs
	}
	return groups, nil
}

// SortedPairs returns the group keys ordered by name.
func SortedPairs[V any](m map[domain.PairGroup]V) []domain.PairGroup {
	pairs := make([]domain.PairGroup, 0, len(m))
	for p := range m {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

func writeGroup(dir string, pair domain.PairGroup, recs []*domain.CanonicalRecord) error {
	path := filepath.Join(dir, pair.String()+dataset.Ext)
	if err := dataset.WriteRecords(path, recs); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// FilterOptions configures FilterDataset.
type FilterOptions struct {
	InDir      string
	OutDir     string
	Filter     *filter.Filter
	WriteTiers bool // also write OutDir/<tier>/<pair>.ndjson for every available tier
	Logger     *zap.Logger
}

// FilterResult summarizes a filter run.
type FilterResult struct {
	Accepted  map[domain.PairGroup]int
	Summaries []filter.TierSummary // by pair name
}

// FilterDataset applies the dataset composite to every per-pair file.
// Multi-leg files are skipped. Pairs with no accepted record get no file.
func FilterDataset(ctx context.Context, opts FilterOptions) (*FilterResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Filter == nil {
		return nil, errors.New("filter is required")
	}

	groups, err := LoadGroups(opts.InDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, err
	}

	result := &FilterResult{Accepted: make(map[domain.PairGroup]int, len(groups))}
	for _, pair := range SortedPairs(groups) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		recs := groups[pair]
		summary := opts.Filter.Summarize(pair, recs)
		result.Summaries = append(result.Summaries, summary)

		accepted := opts.Filter.Apply(recs)
		result.Accepted[pair] = len(accepted)
		logger.Info("filtered pair",
			zap.String("pair", pair.String()),
			zap.Int("total", len(recs)),
			zap.Int("accepted", len(accepted)))
		if len(accepted) > 0 {
			if err := writeGroup(opts.OutDir, pair, accepted); err != nil {
				return nil, err
			}
		}

		if !opts.WriteTiers {
			continue
		}
		for _, tier := range domain.AllTiers {
			if !summary.Tiers[tier].Available || summary.Tiers[tier].Count == 0 {
				continue
			}
			var members []*domain.CanonicalRecord
			for _, r := range recs {
				if opts.Filter.Classify(r).In(tier) {
					members = append(members, r)
				}
			}
			dir := filepath.Join(opts.OutDir, string(tier))
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
			if err := writeGroup(dir, pair, members); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// SampleOptions configures SampleDataset.
type SampleOptions struct {
	InDir   string
	OutDir  string
	Sampler *sampling.Sampler
	Target  sampling.Target
	Extend  bool // grow the samples already in OutDir instead of drawing afresh
	Logger  *zap.Logger
}

// SampleResult holds the drawn samples and the population they came from.
type SampleResult struct {
	Samples    map[domain.PairGroup][]*domain.CanonicalRecord
	Population map[domain.PairGroup]int
}

// SampleDataset draws a per-pair sample from InDir and writes it to OutDir.
func SampleDataset(ctx context.Context, opts SampleOptions) (*SampleResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Sampler == nil {
		opts.Sampler = sampling.New(sampling.DefaultSeed)
	}
	if err := opts.Target.Validate(); err != nil {
		return nil, err
	}

	groups, err := LoadGroups(opts.InDir)
	if err != nil {
		return nil, err
	}

	result := &SampleResult{Population: make(map[domain.PairGroup]int, len(groups))}
	if opts.Extend {
		result.Samples = make(map[domain.PairGroup][]*domain.CanonicalRecord, len(groups))
		for pair, pop := range groups {
			previous, err := readIfExists(filepath.Join(opts.OutDir, pair.String()+dataset.Ext))
			if err != nil {
				return nil, err
			}
			result.Samples[pair] = opts.Sampler.Extend(pair, pop, previous, opts.Target.Size(len(pop)))
		}
	} else {
		result.Samples, err = opts.Sampler.Sample(groups, opts.Target)
		if err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, err
	}
	for _, pair := range SortedPairs(result.Samples) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Population[pair] = len(groups[pair])
		logger.Info("sampled pair",
			zap.String("pair", pair.String()),
			zap.Int("population", len(groups[pair])),
			zap.Int("sample", len(result.Samples[pair])))
		if err := writeGroup(opts.OutDir, pair, result.Samples[pair]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func readIfExists(path string) ([]*domain.CanonicalRecord, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return dataset.ReadRecords(path)
}

// FitOptions configures FitGroups.
type FitOptions struct {
	Fitter  *fitting.Fitter
	Store   storage.FitStore // optional
	RunID   string           // required with Store
	OutPath string           // optional JSON dump of the selected fits
	Logger  *zap.Logger
}

// FitOutcome holds per-(pair, feature) fits and failures.
type FitOutcome struct {
	Samples map[fitting.Key][]float64
	Results map[fitting.Key]*fitting.FitResult
	Failed  map[fitting.Key]error
}

// Fits returns the selected distributions ordered by pair then feature.
func (o *FitOutcome) Fits() []*domain.FittedDistribution {
	keys := fitting.SortedKeys(o.Results)
	out := make([]*domain.FittedDistribution, 0, len(keys))
	for _, k := range keys {
		best := o.Results[k].Best
		out = append(out, &best)
	}
	return out
}

// FitGroups fits every feature of every group, then persists and dumps the
// selected fits when configured.
func FitGroups(ctx context.Context, groups map[domain.PairGroup][]*domain.CanonicalRecord, opts FitOptions) (*FitOutcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fitter := opts.Fitter
	if fitter == nil {
		fitter = fitting.NewFitter(fitting.Options{Logger: logger})
	}
	if opts.Store != nil && opts.RunID == "" {
		return nil, errors.New("run id is required to persist fits")
	}

	samples := fitting.Samples(groups)
	results, failed, err := fitter.FitAll(ctx, samples)
	if err != nil {
		return nil, err
	}
	outcome := &FitOutcome{Samples: samples, Results: results, Failed: failed}

	for _, k := range fitting.SortedKeys(failed) {
		logger.Warn("fit failed", zap.String("key", k.String()), zap.Error(failed[k]))
	}

	fits := outcome.Fits()
	if opts.Store != nil && len(fits) > 0 {
		if err := opts.Store.InsertBulk(ctx, opts.RunID, fits); err != nil {
			return nil, fmt.Errorf("store fits: %w", err)
		}
	}
	if opts.OutPath != "" {
		data, err := json.MarshalIndent(fits, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(opts.OutPath), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(opts.OutPath, append(data, '\n'), 0644); err != nil {
			return nil, err
		}
	}
	logger.Info("fit complete", zap.Int("fits", len(fits)), zap.Int("failed", len(failed)))
	return outcome, nil
}

// LoadFits reads a JSON dump written by FitGroups.
func LoadFits(path string) ([]domain.FittedDistribution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fits []domain.FittedDistribution
	if err := json.Unmarshal(data, &fits); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return fits, nil
}
