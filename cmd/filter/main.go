// Package main applies amount and time thresholds to a cleaned dataset.
package main

import (
	"flag"
	"fmt"
	"os"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/pipeline"
	"thorswap-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	filterPath := flag.String("filter", "", "Standalone filter YAML (overrides the config filter section)")
	preset := flag.String("preset", "", "Threshold preset name (overrides config)")
	indir := flag.String("indir", "clean", "Cleaned dataset directory")
	outdir := flag.String("outdir", "filtered", "Output directory")
	tiers := flag.Bool("tiers", false, "Also write one subdirectory per tier")
	tiersCSV := flag.String("tiers-csv", "", "Write the tier table as CSV to this path")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	if *preset != "" {
		cfg.Filter.Preset = *preset
	}

	var fc filter.Config
	if *filterPath != "" {
		fc, err = filter.LoadConfig(*filterPath)
	} else {
		fc, err = cfg.FilterConfig()
	}
	if err != nil {
		cli.Fatal("filter config", err)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, err := pipeline.FilterDataset(ctx, pipeline.FilterOptions{
		InDir:      *indir,
		OutDir:     *outdir,
		Filter:     filter.New(fc),
		WriteTiers: *tiers,
		Logger:     logger,
	})
	if err != nil {
		cli.Fatal("filter", err)
	}

	rows := make([]reporting.TierRow, 0, len(res.Summaries))
	fmt.Println("| Pair | Total | Accepted | High | Fast | High+Fast |")
	fmt.Println("|------|-------|----------|------|------|-----------|")
	for _, s := range res.Summaries {
		row := reporting.TierRowOf(s)
		rows = append(rows, row)
		fmt.Printf("| %s | %d | %d | %s | %s | %s |\n",
			row.Pair, row.Total, res.Accepted[s.Pair], row.High, row.Fast, row.HighFast)
	}

	if *tiersCSV != "" {
		if err := os.WriteFile(*tiersCSV, []byte(reporting.RenderTiersCSV(rows)), 0644); err != nil {
			cli.Fatal("write tiers csv", err)
		}
	}
}
