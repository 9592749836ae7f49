// Package main merges two raw crawl directories, dropping repeated actions.
package main

import (
	"flag"
	"fmt"
	"os"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/ingestion"
)

func main() {
	dir1 := flag.String("dir1", "", "First raw data directory (its file names drive the merge)")
	dir2 := flag.String("dir2", "", "Second raw data directory")
	outdir := flag.String("outdir", "", "Output directory for merged files")
	dryRun := flag.Bool("dry-run", false, "Report counts without writing")
	flag.Parse()

	if *dir1 == "" || *dir2 == "" || (*outdir == "" && !*dryRun) {
		fmt.Fprintln(os.Stderr, "Error: --dir1, --dir2 and --outdir are required")
		flag.Usage()
		os.Exit(2)
	}

	results, err := ingestion.MergeDirs(*dir1, *dir2, *outdir, *dryRun)
	if err != nil {
		cli.Fatal("merge", err)
	}

	total := 0
	for _, r := range results {
		fmt.Printf("%s: %d + %d -> %d (%d duplicates)\n", r.File, r.Left, r.Right, r.Merged, r.Duplicates)
		total += r.Merged
	}
	fmt.Printf("Merged %d files, %d actions\n", len(results), total)
	if !*dryRun {
		fmt.Println("Run crawl --regen-state on the output to rebuild its checkpoint.")
	}
}
