// Package main prints height-diff and timestamp statistics for dataset files.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/metrics"
	"thorswap-lab/internal/reporting"
)

func main() {
	indir := flag.String("indir", "clean", "Dataset directory")
	csvPath := flag.String("csv", "", "Also write the statistics as CSV")
	flag.Parse()

	paths, err := dataset.PairFiles(*indir)
	if err != nil {
		cli.Fatal("list files", err)
	}

	stats, err := metrics.ComputeFiles(paths)
	if err != nil {
		cli.Fatal("compute stats", err)
	}

	var sb strings.Builder
	dups := 0
	for _, ps := range stats {
		reporting.RenderPairStats(&sb, ps)
		dups += len(ps.Duplicates)
	}
	fmt.Print(sb.String())

	if *csvPath != "" {
		if err := os.WriteFile(*csvPath, []byte(reporting.RenderPairStatsCSV(stats)), 0644); err != nil {
			cli.Fatal("write csv", err)
		}
	}
	if dups > 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: %d duplicate ids\n", dups)
		os.Exit(1)
	}
}
