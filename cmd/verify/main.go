// Package main re-checks a washed dataset against its content ids and,
// optionally, against the records persisted in Postgres.
package main

import (
	"flag"
	"fmt"
	"os"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	indir := flag.String("indir", "clean", "Dataset directory")
	useStore := flag.Bool("store", false, "Compare against records persisted in Postgres")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	v := verification.New(nil)
	if *useStore {
		cfg, err := cli.LoadConfig(*configPath, *envFile)
		if err != nil {
			cli.Fatal("load config", err)
		}
		stores, err := cli.OpenStores(ctx, cfg.Storage, logger)
		if err != nil {
			cli.Fatal("open stores", err)
		}
		defer stores.Close()
		if stores.Records == nil {
			cli.Fatal("store", fmt.Errorf("--store needs storage.postgres_dsn"))
		}
		v = verification.New(stores.Records)
	}

	report, err := v.VerifyDir(ctx, *indir)
	if err != nil {
		cli.Fatal("verify", err)
	}

	for _, f := range report.Files {
		status := "OK"
		if !f.OK() {
			status = "FAILED"
		}
		fmt.Printf("%s: %d records, %d divergent, %d duplicate ids: %s\n",
			f.File, f.Records, len(f.Divergent), len(f.Duplicates), status)
		for _, r := range f.Divergent {
			for _, d := range r.Divergences {
				fmt.Printf("  #%d %s %s: expected %v, got %v\n", r.Position, r.ID, d.Field, d.Expected, d.Actual)
			}
		}
		for _, d := range f.Duplicates {
			fmt.Printf("  duplicate %s x%d at idx %v\n", d.ID, d.Count, d.Idx)
		}
	}

	if !report.OK() {
		fmt.Fprintf(os.Stderr, "Verification failed: %d divergent records, %d duplicate ids\n",
			report.DivergentRecords, report.DuplicateIDs)
		os.Exit(1)
	}
	fmt.Printf("Verified %d records in %d files\n", report.TotalRecords, len(report.Files))
}
