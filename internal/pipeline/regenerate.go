package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/reporting"
	"thorswap-lab/internal/storage"
	"thorswap-lab/internal/storage/memory"
)

// RegenerateOptions configures Regenerate.
type RegenerateOptions struct {
	// OutputDir is a previous pipeline output directory. Report files are
	// rewritten in place.
	OutputDir string
	RunID     string
	Filter    *filter.Filter

	// Records and Fits replace the clean/ dataset and fits.json when set.
	// Fits then requires RunID. Pairs lists the groups read from Records;
	// empty means the pair files found in clean/.
	Records storage.RecordStore
	Fits    storage.FitStore
	Pairs   []domain.PairGroup

	Sufficiency *SufficiencyChecker
	CrawlState  *domain.CrawlState
	Seed        int64
	Command     string
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Regenerate rebuilds REPORT.md and the CSV tables from a finished run
// without washing, sampling or fitting again. The wash section is omitted
// since raw inputs are not reread.
func Regenerate(ctx context.Context, opts RegenerateOptions) (*reporting.Report, *SufficiencyResult, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Sufficiency == nil {
		opts.Sufficiency = NewSufficiencyChecker(0, 0)
	}
	if opts.Fits != nil && opts.RunID == "" {
		return nil, nil, errors.New("regenerate: run id is required with a fit store")
	}

	records := opts.Records
	var pairs []domain.PairGroup
	if records == nil {
		groups, err := LoadGroups(filepath.Join(opts.OutputDir, CleanDir))
		if err != nil {
			return nil, nil, fmt.Errorf("load clean dataset: %w", err)
		}
		mem := memory.NewRecordStore()
		for _, pair := range SortedPairs(groups) {
			if err := mem.InsertBulk(ctx, groups[pair]); err != nil {
				return nil, nil, fmt.Errorf("load %s: %w", pair, err)
			}
			pairs = append(pairs, pair)
		}
		records = mem
	} else {
		pairs = opts.Pairs
		if len(pairs) == 0 {
			var err error
			if pairs, err = pairsIn(filepath.Join(opts.OutputDir, CleanDir)); err != nil {
				return nil, nil, err
			}
		}
	}

	runID := opts.RunID
	fits := opts.Fits
	if fits == nil {
		loaded, err := LoadFits(filepath.Join(opts.OutputDir, FitsJSONFile))
		switch {
		case errors.Is(err, os.ErrNotExist):
			opts.Logger.Warn("no fits found, report omits distributions", zap.String("dir", opts.OutputDir))
		case err != nil:
			return nil, nil, err
		default:
			if runID == "" {
				runID = "regenerated"
			}
			mem := memory.NewFitStore()
			ptrs := make([]*domain.FittedDistribution, len(loaded))
			for i := range loaded {
				ptrs[i] = &loaded[i]
			}
			if err := mem.InsertBulk(ctx, runID, ptrs); err != nil {
				return nil, nil, err
			}
			fits = mem
		}
	}

	gen := reporting.NewGenerator(records, fits, opts.Filter)
	if opts.Clock != nil {
		gen = gen.WithClock(opts.Clock)
	}
	report, err := gen.Generate(ctx, runID, pairs)
	if err != nil {
		return nil, nil, err
	}
	report.Crawl = reporting.CrawlSectionOf(opts.CrawlState)

	in := SufficiencyInput{
		Pairs:      len(report.PairStats),
		Duplicates: len(report.DataQuality.Duplicates),
	}
	for _, t := range report.Tiers {
		in.Records += t.Total
		in.WithCompletion += t.WithCompletion
	}
	if samples, err := LoadGroups(filepath.Join(opts.OutputDir, SampleDir)); err == nil {
		in.Samples = fitting.Samples(samples)
	} else {
		opts.Logger.Warn("no sample dataset, floor check uses none", zap.Error(err))
	}
	suff := opts.Sufficiency.Check(in)
	report.DataQuality.Checks = convertToRows(suff)
	report.Reproducibility.Seed = opts.Seed
	report.Reproducibility.Command = opts.Command

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, nil, err
	}
	if err := WriteReportFiles(opts.OutputDir, report); err != nil {
		return nil, nil, err
	}
	return report, suff, nil
}

func pairsIn(dir string) ([]domain.PairGroup, error) {
	files, err := dataset.PairFiles(dir)
	if err != nil {
		return nil, err
	}
	pairs := make([]domain.PairGroup, 0, len(files))
	for _, f := range files {
		pair, err := domain.ParsePairGroup(dataset.Stem(f))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}
