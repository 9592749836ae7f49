// Package main crawls swap actions from Midgard into per-asset-pair raw ndjson files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/ingestion"
	"thorswap-lab/internal/midgard"
	"thorswap-lab/internal/reporting"
	"thorswap-lab/internal/storage"
	"thorswap-lab/internal/storage/file"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	minTs := flag.Int64("min-ts", 0, "Lower bound unix timestamp (seconds), inclusive; crawl stops there")
	maxTs := flag.Int64("max-ts", 0, "Upper bound unix timestamp (seconds), inclusive; crawl starts there")
	fresh := flag.Bool("fresh", false, "Start a new crawl; refused when the output directory has data")
	resume := flag.Bool("resume", false, "Continue from the saved checkpoint or the oldest action on disk")
	regenState := flag.Bool("regen-state", false, "Rebuild state.json from the raw files and exit")
	outdir := flag.String("outdir", "", "Output directory (overrides config)")
	assets := flag.String("assets", "", "Semicolon-separated asset pairs, e.g. BTC.BTC,ETH.ETH;ETH.ETH,DOGE.DOGE")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL DSN for shared crawl state and seen keys")
	redisAddr := flag.String("redis-addr", "", "Redis address for the shared seen-key set")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics address (overrides config)")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	if *outdir != "" {
		cfg.Crawl.OutDir = *outdir
	}
	if *assets != "" {
		cfg.Crawl.Assets = splitAssets(*assets)
	}
	if *postgresDSN != "" {
		cfg.Storage.PostgresDSN = *postgresDSN
	}
	if *redisAddr != "" {
		cfg.Storage.RedisAddr = *redisAddr
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	if *regenState {
		if err := regenerateState(cfg.Crawl.OutDir, *minTs*int64(time.Second), logger); err != nil {
			cli.Fatal("regenerate state", err)
		}
		return
	}

	if err := ingestion.CheckOutputDir(cfg.Crawl.OutDir, *resume, *fresh); err != nil {
		cli.Fatal("check output directory", err)
	}

	cli.ServeMetrics(cfg.Metrics.Addr, logger)
	ctx, stop := cli.SignalContext(logger)
	defer stop()

	stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		cli.Fatal("open stores", err)
	}
	defer stores.Close()

	var states storage.CrawlStateStore
	if shared, ok := stores.CrawlStates(filepath.Clean(cfg.Crawl.OutDir)); ok {
		states = shared
	} else {
		fileStates, err := file.NewCrawlStateStore(ingestion.StatePath(cfg.Crawl.OutDir))
		if err != nil {
			cli.Fatal("open state file", err)
		}
		states = fileStates
	}

	client := midgard.NewHTTPClient(cfg.Midgard.BaseURLs, append(cfg.MidgardOptions(), midgard.WithLogger(logger))...)
	crawler, err := ingestion.NewCrawler(ingestion.CrawlerOptions{
		Client:   client,
		States:   states,
		Seen:     stores.Seen,
		OutDir:   cfg.Crawl.OutDir,
		Assets:   cfg.Crawl.Assets,
		Type:     cfg.Crawl.Type,
		Limit:    cfg.Crawl.Limit,
		Throttle: cfg.Crawl.Throttle,
		Logger:   logger,
	})
	if err != nil {
		cli.Fatal("create crawler", err)
	}

	state, err := crawler.Prepare(ctx, *minTs*int64(time.Second), *maxTs*int64(time.Second), *resume)
	if err != nil {
		cli.Fatal("prepare crawl", err)
	}

	final, err := crawler.Run(ctx, state)
	if final != nil {
		printSummary(final)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("crawl interrupted; rerun with --resume to continue")
			return
		}
		cli.Fatal("crawl", err)
	}
}

// splitAssets splits the --assets value. Pairs are separated by ';' since
// each pair itself contains a comma.
func splitAssets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		out = append(out, cli.SplitList(part)...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func regenerateState(outdir string, minTs int64, logger *zap.Logger) error {
	state, spans, skipped, err := ingestion.StateFromFiles(filepath.Join(outdir, ingestion.DataDir), minTs)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logger.Warn("no dated actions, skipped", zap.String("file", s))
	}
	for _, sp := range spans {
		fmt.Printf("%s: %d actions, %s .. %s\n", sp.Assets, sp.Actions,
			time.Unix(0, sp.MinTs).UTC().Format(time.RFC3339), time.Unix(0, sp.MaxTs).UTC().Format(time.RFC3339))
	}
	store, err := file.NewCrawlStateStore(ingestion.StatePath(outdir))
	if err != nil {
		return err
	}
	if err := store.Save(context.Background(), state); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", ingestion.StatePath(outdir))
	return nil
}

func printSummary(state *domain.CrawlState) {
	fmt.Printf("Crawl summary:\n")
	fmt.Printf("  Pages: %d\n", state.Stats.Pages)
	fmt.Printf("  Fetched: %d\n", state.Stats.Fetched)
	fmt.Printf("  Written: %d\n", state.Stats.Written)
	fmt.Printf("  Duplicates: %d\n", state.Stats.Duplicates)
	fmt.Printf("  Retries: %d\n", state.Stats.Retries)
	for _, c := range reporting.CrawlSectionOf(state).Cursors {
		fmt.Printf("  %s: ts=%s offset=%d finished=%t\n", c.Assets,
			time.Unix(0, c.Ts).UTC().Format(time.RFC3339), c.Offset, c.Finished)
	}
}
