// Package main rebuilds REPORT.md and its CSV tables for a finished pipeline run.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	outputDir := flag.String("output-dir", "out", "Pipeline output directory")
	runID := flag.String("run-id", "", "Run id of stored fits (required with --stores)")
	useStores := flag.Bool("stores", false, "Read records from Postgres and fits from ClickHouse")
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

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	opts := pipeline.RegenerateOptions{
		OutputDir:   *outputDir,
		RunID:       *runID,
		Filter:      filter.New(fc),
		Sufficiency: pipeline.NewSufficiencyChecker(cfg.Fit.MinSampleSize, 0),
		Seed:        cfg.Sample.Seed,
		Command:     strings.Join(os.Args, " "),
		Logger:      logger,
	}
	if *useStores {
		stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			cli.Fatal("open stores", err)
		}
		defer stores.Close()
		// nil stores fall back to the files in --output-dir
		opts.Records = stores.Records
		opts.Fits = stores.Fits
	}

	report, suff, err := pipeline.Regenerate(ctx, opts)
	if err != nil {
		cli.Fatal("report", err)
	}

	fmt.Printf("Report written to %s/%s\n", *outputDir, pipeline.ReportFile)
	fmt.Printf("  Pairs: %d, fits: %d\n", len(report.PairStats), len(report.Fits))
	for _, c := range suff.Checks {
		status := "PASS"
		if !c.Pass {
			status = "FAIL"
		}
		fmt.Printf("  %-28s %s\n", c.Name, status)
	}
}
