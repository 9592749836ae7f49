// Package main fits distribution families to per-pair features of a sample.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/pipeline"
	"thorswap-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	indir := flag.String("indir", "sample", "Sample directory")
	out := flag.String("o", "fits.json", "JSON output of the selected fits")
	csvPath := flag.String("csv", "", "Also write the fit table as CSV")
	runID := flag.String("run-id", "", "Run id for stored fits (defaults to a timestamp)")
	store := flag.Bool("store", false, "Persist fits to ClickHouse (storage.clickhouse_dsn)")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	if *runID == "" {
		*runID = time.Now().UTC().Format("20060102T150405Z")
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	groups, err := pipeline.LoadGroups(*indir)
	if err != nil {
		cli.Fatal("load samples", err)
	}

	fitOpts := cfg.FitterOptions()
	fitOpts.Logger = logger
	opts := pipeline.FitOptions{
		Fitter:  fitting.NewFitter(fitOpts),
		RunID:   *runID,
		OutPath: *out,
		Logger:  logger,
	}
	if *store {
		stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			cli.Fatal("open stores", err)
		}
		defer stores.Close()
		if stores.Fits == nil {
			cli.Fatal("store", fmt.Errorf("--store needs storage.clickhouse_dsn"))
		}
		opts.Store = stores.Fits
	}

	outcome, err := pipeline.FitGroups(ctx, groups, opts)
	if err != nil {
		cli.Fatal("fit", err)
	}

	rows, failures := reporting.FitRows(outcome.Results, outcome.Failed)
	fmt.Printf("Run %s\n", *runID)
	for _, r := range rows {
		mark := ""
		if r.Provisional {
			mark = " (provisional)"
		}
		fmt.Printf("%s %s: %s %s rmse=%.6g n=%d%s\n", r.Pair, r.Feature, r.Family, r.Params, r.RMSE, r.SampleSize, mark)
	}
	for _, f := range failures {
		fmt.Printf("%s %s: not fitted: %s\n", f.Pair, f.Feature, f.Reason)
	}

	if *csvPath != "" {
		if err := os.WriteFile(*csvPath, []byte(reporting.RenderFitsCSV(rows)), 0644); err != nil {
			cli.Fatal("write csv", err)
		}
	}
}
