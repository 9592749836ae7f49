// Package main draws reproducible per-pair samples from a dataset.
package main

import (
	"flag"
	"fmt"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/pipeline"
	"thorswap-lab/internal/sampling"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults apply when empty)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	indir := flag.String("indir", "filtered", "Dataset directory to sample from")
	outdir := flag.String("outdir", "sample", "Output directory")
	seed := flag.Int64("seed", 0, "Sampling seed (overrides config)")
	count := flag.Int("n", 0, "Records per pair (overrides config)")
	fraction := flag.Float64("fraction", 0, "Fraction of each pair, used when -n is 0")
	extend := flag.Bool("extend", false, "Grow the samples already in --outdir instead of redrawing")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	if *seed != 0 {
		cfg.Sample.Seed = *seed
	}
	if *count > 0 || *fraction > 0 {
		cfg.Sample.Count = *count
		cfg.Sample.Fraction = *fraction
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	res, err := pipeline.SampleDataset(ctx, pipeline.SampleOptions{
		InDir:   *indir,
		OutDir:  *outdir,
		Sampler: sampling.New(cfg.Sample.Seed),
		Target:  cfg.SampleTarget(),
		Extend:  *extend,
		Logger:  logger,
	})
	if err != nil {
		cli.Fatal("sample", err)
	}

	for _, pair := range pipeline.SortedPairs(res.Samples) {
		fmt.Printf("%s: %d of %d\n", pair, len(res.Samples[pair]), res.Population[pair])
	}
}
