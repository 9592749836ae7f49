// Package main converts dataset files into swap query YAML.
package main

import (
	"flag"
	"fmt"
	"os"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/query"
)

func main() {
	batch := flag.Bool("batch", false, "Convert every pair file in --input-dir")
	inputDir := flag.String("input-dir", "clean", "Dataset directory (batch mode)")
	outputDir := flag.String("output-dir", "queries", "Output directory (batch mode)")
	input := flag.String("input", "", "Single dataset file")
	output := flag.String("output", "", "Single YAML output file")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	if *batch {
		res, err := query.GenerateBatch(*inputDir, *outputDir, logger)
		if err != nil {
			cli.Fatal("generate queries", err)
		}
		fmt.Printf("Wrote %d queries to %d files in %s\n", res.Total, len(res.Files), *outputDir)
		return
	}

	if *input == "" || *output == "" {
		fmt.Fprintln(os.Stderr, "Error: --input and --output are required without --batch")
		flag.Usage()
		os.Exit(2)
	}
	n, err := query.GenerateFile(*input, *output)
	if err != nil {
		cli.Fatal("generate queries", err)
	}
	fmt.Printf("Wrote %d queries to %s\n", n, *output)
}
