// Package main scores swaps against fitted distributions.
package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (feature weights come from fit.weights)")
	envFile := flag.String("env-file", ".env", "dotenv file with DSN overrides")
	fitsPath := flag.String("fits", "fits.json", "Fits produced by the fit command")
	input := flag.String("i", "", "Dataset ndjson file to score")
	output := flag.String("o", "", "CSV output (stdout when empty)")
	verbose := flag.Bool("verbose", false, "Development logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -i is required")
		flag.Usage()
		os.Exit(2)
	}

	logger := cli.NewLogger(*verbose)
	defer logger.Sync()

	cfg, err := cli.LoadConfig(*configPath, *envFile)
	if err != nil {
		cli.Fatal("load config", err)
	}
	fits, err := pipeline.LoadFits(*fitsPath)
	if err != nil {
		cli.Fatal("load fits", err)
	}
	records, err := dataset.ReadRecords(*input)
	if err != nil {
		cli.Fatal("read records", err)
	}

	scorer := fitting.NewScorer(fits, cfg.Weights(), nil)
	sum, err := writeScores(*output, scorer, records, logger)
	if err != nil {
		cli.Fatal("score", err)
	}
	logger.Info("scoring complete",
		zap.Int("scored", sum.scored),
		zap.Int("partial", sum.partial),
		zap.Int("skipped", sum.skipped))
}

type scoreSummary struct {
	scored  int
	partial int // scored without every weighted feature
	skipped int
}

// writeScores writes id,pair,score rows to path, or stdout when path is
// empty. Records whose pair has no usable fit are skipped.
func writeScores(path string, scorer *fitting.Scorer, records []*domain.CanonicalRecord, logger *zap.Logger) (sum scoreSummary, err error) {
	out := os.Stdout
	if path != "" {
		f, createErr := os.Create(path)
		if createErr != nil {
			return sum, createErr
		}
		defer func() {
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
		}()
		out = f
	}

	w := csv.NewWriter(out)
	w.Write([]string{"id", "pair", "score"})
	for _, rec := range records {
		score, missing, err := scorer.ScorePartial(rec)
		if errors.Is(err, fitting.ErrNoFit) {
			sum.skipped++
			logger.Debug("no fit for record", zap.String("id", rec.ID), zap.Error(err))
			continue
		}
		if err != nil {
			w.Flush()
			return sum, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if len(missing) > 0 {
			sum.partial++
			logger.Debug("features without fit left out", zap.String("id", rec.ID), zap.Any("features", missing))
		}
		pair, _ := rec.Pair()
		w.Write([]string{rec.ID, pair.String(), strconv.FormatFloat(score, 'g', -1, 64)})
		sum.scored++
	}
	w.Flush()
	return sum, w.Error()
}
