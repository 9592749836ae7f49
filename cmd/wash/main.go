// Package main turns raw crawl files into cleaned per-pair ndjson datasets.
package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/config"
	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/normalization"
	"thorswap-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	indir := flag.String("indir", "data", "Directory of raw crawl files, scanned recursively")
	outdir := flag.String("outdir", "clean", "Output directory for cleaned per-pair files")
	dryRun := flag.Bool("dry-run", false, "Count what would be written without writing")
	persist := flag.Bool("persist", false, "Also insert kept records into Postgres (storage.postgres_dsn)")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	opts := pipeline.WashOptions{
		InDir:         *indir,
		OutDir:        *outdir,
		DryRun:        *dryRun,
		Canonicalizer: normalization.NewCanonicalizer(cfg.CanonicalizerOptions()),
		Concurrency:   cfg.Wash.Concurrency,
		Logger:        logger,
	}
	if *persist {
		stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			cli.Fatal("open stores", err)
		}
		defer stores.Close()
		if stores.Records == nil {
			cli.Fatal("persist", fmt.Errorf("--persist needs storage.postgres_dsn or %s", config.EnvPostgresDSN))
		}
		opts.Records = stores.Records
	}

	res, err := pipeline.Wash(ctx, opts)
	if err != nil {
		cli.Fatal("wash", err)
	}

	fmt.Printf("Raw files: %d (skipped %d undecodable)\n", res.RawFiles, len(res.BadFiles))
	for _, f := range res.BadFiles {
		fmt.Printf("  skipped %s\n", f)
	}
	fmt.Printf("Actions: %d (not swap %d, no legs %d, malformed %d, undecodable %d)\n",
		res.Stats.Total, res.Stats.NotSwap, res.Stats.NoLegs, res.Stats.Malformed, res.Undecodable)
	fmt.Printf("Duplicates dropped: %d (anomalies %d)\n", res.Duplicates, len(res.Anomalies))
	fmt.Printf("Unroutable: %d\n", res.Unroutable)
	verb := "Wrote"
	if *dryRun {
		verb = "Would write"
	}
	for _, stem := range dataset.SortedStems(res.Files) {
		fmt.Printf("  %s %s%s: %d records\n", verb, stem, dataset.Ext, len(res.Files[stem]))
	}
	if res.Persisted > 0 {
		logger.Info("records persisted", zap.Int("count", res.Persisted))
	}
}
