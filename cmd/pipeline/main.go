// Package main runs wash, filter, sample, fit and report end to end.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/ingestion"
	"thorswap-lab/internal/normalization"
	"thorswap-lab/internal/pipeline"
	"thorswap-lab/internal/sampling"
	"thorswap-lab/internal/storage"
	"thorswap-lab/internal/storage/file"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	rawDir := flag.String("raw-dir", "", "Crawl output directory (defaults to crawl.outdir)")
	outputDir := flag.String("output-dir", "out", "Output directory for datasets and the report")
	useFixtures := flag.Bool("use-fixtures", false, "Run on generated demo actions instead of a crawl")
	fixtureCount := flag.Int("fixture-count", 300, "Actions per direction with --use-fixtures")
	runID := flag.String("run-id", "", "Run id (defaults to a timestamp)")
	useStores := flag.Bool("stores", false, "Persist records and fits to the configured databases")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	fc, err := cfg.FilterConfig()
	if err != nil {
		cli.Fatal("filter config", err)
	}

	cli.ServeMetrics(cfg.Metrics.Addr, logger)
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	raw := *rawDir
	if raw == "" {
		raw = cfg.Crawl.OutDir
	}
	if *useFixtures {
		tmp, err := os.MkdirTemp("", "thorswap-fixtures-")
		if err != nil {
			cli.Fatal("create fixture dir", err)
		}
		defer os.RemoveAll(tmp)
		summary, err := pipeline.WriteFixtures(tmp, *fixtureCount)
		if err != nil {
			cli.Fatal("write fixtures", err)
		}
		logger.Info("fixtures written", zap.String("dir", tmp),
			zap.Int("swaps", summary.Swaps), zap.Int("duplicates", summary.Duplicates), zap.Int("not_swap", summary.NotSwap))
		raw = tmp
	}

	fitOpts := cfg.FitterOptions()
	fitOpts.Logger = logger
	p := pipeline.NewPipeline(raw, *outputDir, filter.New(fc), fitting.NewFitter(fitOpts)).
		WithCanonicalizer(normalization.NewCanonicalizer(cfg.CanonicalizerOptions())).
		WithSampler(sampling.New(cfg.Sample.Seed), cfg.SampleTarget()).
		WithSufficiencyChecker(pipeline.NewSufficiencyChecker(cfg.Fit.MinSampleSize, 0)).
		WithConcurrency(cfg.Wash.Concurrency).
		WithRunID(*runID).
		WithCommand(strings.Join(os.Args, " ")).
		WithLogger(logger)

	var states storage.CrawlStateStore
	if *useStores {
		stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			cli.Fatal("open stores", err)
		}
		defer stores.Close()
		if stores.Records != nil {
			p = p.WithRecordStore(stores.Records)
		}
		if stores.Fits != nil {
			p = p.WithFitStore(stores.Fits)
		}
		if shared, ok := stores.CrawlStates(filepath.Clean(raw)); ok {
			states = shared
		}
	}
	if !*useFixtures {
		if states == nil {
			if states, err = file.NewCrawlStateStore(ingestion.StatePath(raw)); err != nil {
				cli.Fatal("open state file", err)
			}
		}
		if state := loadCrawlState(ctx, states, logger); state != nil {
			p = p.WithCrawlState(state)
		}
	}

	res, err := p.Run(ctx)
	if err != nil {
		cli.Fatal("pipeline", err)
	}

	fmt.Printf("Run %s\n", res.RunID)
	fmt.Printf("  Washed: %d kept, %d duplicates, %d malformed\n",
		res.Wash.Kept(), res.Wash.Duplicates, res.Wash.Stats.Malformed+res.Wash.Undecodable)
	for _, pair := range pipeline.SortedPairs(res.Sample.Samples) {
		fmt.Printf("  %s: %d accepted, %d sampled\n", pair, res.Filter.Accepted[pair], len(res.Sample.Samples[pair]))
	}
	fmt.Printf("  Fits: %d selected, %d failed\n", len(res.Fit.Results), len(res.Fit.Failed))
	status := "PASS"
	if !res.Sufficiency.AllPass {
		status = "FAIL"
	}
	fmt.Printf("  Sufficiency: %s\n", status)
	fmt.Printf("  Report: %s\n", filepath.Join(*outputDir, pipeline.ReportFile))
}

// loadCrawlState returns the saved crawl checkpoint, or nil when none exists.
func loadCrawlState(ctx context.Context, states storage.CrawlStateStore, logger *zap.Logger) *domain.CrawlState {
	state, err := states.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("crawl state unreadable, report omits crawl section", zap.Error(err))
		return nil
	}
	return state
}
