// Package pipeline runs the dataset stages end to end: wash raw crawl
// files, filter, sample, fit and report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/normalization"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/reporting"
	"thorswap-lab/internal/sampling"
	"thorswap-lab/internal/storage"
	"thorswap-lab/internal/storage/memory"
)

// Output layout under the pipeline output directory.
const (
	CleanDir      = "clean"
	FilteredDir   = "filtered"
	SampleDir     = "sample"
	ReportFile    = "REPORT.md"
	PairStatsFile = "pair_stats.csv"
	TiersFile     = "tiers.csv"
	FitsCSVFile   = "fits.csv"
	FitsJSONFile  = "fits.json"
)

// Phase names used for metrics.
const (
	PhaseWash   = "wash"
	PhaseFilter = "filter"
	PhaseSample = "sample"
	PhaseFit    = "fit"
	PhaseReport = "report"
)

// RunResult collects the outcome of every stage.
type RunResult struct {
	RunID       string
	Wash        *WashResult
	Filter      *FilterResult
	Sample      *SampleResult
	Fit         *FitOutcome
	Sufficiency *SufficiencyResult
	Report      *reporting.Report
}

// Pipeline orchestrates wash, filter, sample, fit and report generation.
type Pipeline struct {
	rawDir      string
	outputDir   string
	filter      *filter.Filter
	fitter      *fitting.Fitter
	canon       *normalization.Canonicalizer
	sampler     *sampling.Sampler
	target      sampling.Target
	records     storage.RecordStore
	fits        storage.FitStore
	crawlState  *domain.CrawlState
	sufficiency *SufficiencyChecker
	concurrency int
	runID       string
	command     string
	logger      *zap.Logger
	clock       func() time.Time
}

// NewPipeline creates a pipeline reading raw files under rawDir and writing
// everything under outputDir. Records and fits are kept in memory unless
// stores are supplied.
func NewPipeline(rawDir, outputDir string, f *filter.Filter, fitter *fitting.Fitter) *Pipeline {
	return &Pipeline{
		rawDir:      rawDir,
		outputDir:   outputDir,
		filter:      f,
		fitter:      fitter,
		sampler:     sampling.New(sampling.DefaultSeed),
		target:      sampling.Target{Count: 1000},
		records:     memory.NewRecordStore(),
		fits:        memory.NewFitStore(),
		sufficiency: NewSufficiencyChecker(0, 0),
		logger:      zap.NewNop(),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// WithCanonicalizer sets the canonicalizer used by the wash stage.
func (p *Pipeline) WithCanonicalizer(c *normalization.Canonicalizer) *Pipeline {
	p.canon = c
	return p
}

// WithSampler sets the sampler and per-pair target.
func (p *Pipeline) WithSampler(s *sampling.Sampler, target sampling.Target) *Pipeline {
	p.sampler = s
	p.target = target
	return p
}

// WithRecordStore persists washed records into store. The report reads from it.
func (p *Pipeline) WithRecordStore(store storage.RecordStore) *Pipeline {
	p.records = store
	return p
}

// WithFitStore persists selected fits into store under the run id.
func (p *Pipeline) WithFitStore(store storage.FitStore) *Pipeline {
	p.fits = store
	return p
}

// WithCrawlState adds the crawl section to the report.
func (p *Pipeline) WithCrawlState(state *domain.CrawlState) *Pipeline {
	p.crawlState = state
	return p
}

// WithSufficiencyChecker replaces the default checker.
func (p *Pipeline) WithSufficiencyChecker(c *SufficiencyChecker) *Pipeline {
	p.sufficiency = c
	return p
}

// WithConcurrency bounds canonicalization goroutines.
func (p *Pipeline) WithConcurrency(n int) *Pipeline {
	p.concurrency = n
	return p
}

// WithRunID sets the run id. Defaults to a timestamp from the clock.
func (p *Pipeline) WithRunID(id string) *Pipeline {
	p.runID = id
	return p
}

// WithCommand records the command that reproduces the run.
func (p *Pipeline) WithCommand(cmd string) *Pipeline {
	p.command = cmd
	return p
}

// WithLogger sets the logger.
func (p *Pipeline) WithLogger(logger *zap.Logger) *Pipeline {
	if logger != nil {
		p.logger = logger
	}
	return p
}

// WithClock sets a custom clock function for deterministic output.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Run executes every stage and writes:
//   - clean/, filtered/ (with tier subdirectories) and sample/ datasets
//   - fits.json
//   - REPORT.md, pair_stats.csv, tiers.csv, fits.csv
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	if p.filter == nil {
		return nil, errors.New("pipeline: filter is required")
	}
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}
	runID := p.runID
	if runID == "" {
		runID = p.clock().UTC().Format("20060102T150405Z")
	}
	res := &RunResult{RunID: runID}

	err := p.phase(PhaseWash, func() error {
		var err error
		res.Wash, err = Wash(ctx, WashOptions{
			InDir:         p.rawDir,
			OutDir:        filepath.Join(p.outputDir, CleanDir),
			Canonicalizer: p.canon,
			Concurrency:   p.concurrency,
			Records:       p.records,
			Logger:        p.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(PhaseFilter, func() error {
		var err error
		res.Filter, err = FilterDataset(ctx, FilterOptions{
			InDir:      filepath.Join(p.outputDir, CleanDir),
			OutDir:     filepath.Join(p.outputDir, FilteredDir),
			Filter:     p.filter,
			WriteTiers: true,
			Logger:     p.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(PhaseSample, func() error {
		var err error
		res.Sample, err = SampleDataset(ctx, SampleOptions{
			InDir:   filepath.Join(p.outputDir, FilteredDir),
			OutDir:  filepath.Join(p.outputDir, SampleDir),
			Sampler: p.sampler,
			Target:  p.target,
			Logger:  p.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(PhaseFit, func() error {
		var err error
		res.Fit, err = FitGroups(ctx, res.Sample.Samples, FitOptions{
			Fitter:  p.fitter,
			Store:   p.fits,
			RunID:   runID,
			OutPath: filepath.Join(p.outputDir, FitsJSONFile),
			Logger:  p.logger,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	err = p.phase(PhaseReport, func() error {
		var err error
		res.Report, res.Sufficiency, err = p.report(ctx, runID, res)
		if err != nil {
			return err
		}
		return WriteReportFiles(p.outputDir, res.Report)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// phase runs fn and records its duration and status.
func (p *Pipeline) phase(name string, fn func() error) error {
	start := time.Now()
	p.logger.Info("phase started", zap.String("phase", name))
	err := fn()
	status := "success"
	if err != nil {
		status = "failure"
	}
	observability.RecordPipelineRun(name, status, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.logger.Info("phase finished", zap.String("phase", name), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *Pipeline) report(ctx context.Context, runID string, res *RunResult) (*reporting.Report, *SufficiencyResult, error) {
	gen := reporting.NewGenerator(p.records, p.fits, p.filter).WithClock(p.clock)
	report, err := gen.Generate(ctx, runID, res.Wash.Pairs())
	if err != nil {
		return nil, nil, err
	}

	report.Crawl = reporting.CrawlSectionOf(p.crawlState)
	report.Wash = res.Wash.Section()
	report.DataQuality.Anomalies = append(report.DataQuality.Anomalies, res.Wash.AnomalyLines()...)
	_, report.FitFailures = reporting.FitRows(res.Fit.Results, res.Fit.Failed)

	in := SufficiencyInput{
		Pairs:      len(report.PairStats),
		Samples:    res.Fit.Samples,
		Duplicates: len(report.DataQuality.Duplicates),
		Anomalies:  len(res.Wash.Anomalies),
	}
	for _, t := range report.Tiers {
		in.Records += t.Total
		in.WithCompletion += t.WithCompletion
	}
	suff := p.sufficiency.Check(in)
	report.DataQuality.Checks = convertToRows(suff)

	report.Reproducibility.Seed = p.sampler.Seed()
	report.Reproducibility.Command = p.command
	return report, suff, nil
}

// WriteReportFiles writes the markdown report and its CSV tables into dir.
func WriteReportFiles(dir string, report *reporting.Report) error {
	outputs := map[string]string{
		ReportFile:    reporting.RenderMarkdown(report),
		PairStatsFile: reporting.RenderPairStatsCSV(report.PairStats),
		TiersFile:     reporting.RenderTiersCSV(report.Tiers),
		FitsCSVFile:   reporting.RenderFitsCSV(report.Fits),
	}
	for name, content := range outputs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}
