// Package main lists swaps whose outbound leg landed long after the inbound leg.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"thorswap-lab/internal/cli"
	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/metrics"
	"thorswap-lab/internal/reporting"
)

const dateLayout = "2006-01-02"

func main() {
	indir := flag.String("indir", "clean", "Dataset directory")
	threshold := flag.Int64("t", metrics.DefaultSlowThreshold, "Minimum height diff, inclusive")
	start := flag.String("s", "", "Start date YYYY-MM-DD (UTC, inclusive)")
	end := flag.String("e", "", "End date YYYY-MM-DD (UTC, inclusive)")
	output := flag.String("o", "", "CSV output (stdout when empty)")
	flag.Parse()

	q := metrics.SlowSwapQuery{Threshold: *threshold}
	if *start != "" {
		t, err := time.Parse(dateLayout, *start)
		if err != nil {
			cli.Fatal("parse start date", err)
		}
		q.Start = t
	}
	if *end != "" {
		t, err := time.Parse(dateLayout, *end)
		if err != nil {
			cli.Fatal("parse end date", err)
		}
		// whole end day
		q.End = t.Add(24*time.Hour - time.Nanosecond)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.End.Before(q.Start) {
		cli.Fatal("date range", fmt.Errorf("end %s is before start %s", *end, *start))
	}

	paths, err := dataset.PairFiles(*indir)
	if err != nil {
		cli.Fatal("list files", err)
	}
	files := make(map[string][]*domain.CanonicalRecord, len(paths))
	for _, p := range paths {
		recs, err := dataset.ReadRecords(p)
		if err != nil {
			cli.Fatal("read "+p, err)
		}
		files[dataset.Stem(p)] = recs
	}

	swaps := metrics.FindSlowSwaps(files, q)
	out := reporting.RenderSlowSwapsCSV(swaps)
	if *output == "" {
		fmt.Print(out)
	} else if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
		cli.Fatal("write csv", err)
	}
	fmt.Fprintf(os.Stderr, "%d slow swaps (height diff >= %d)\n", len(swaps), *threshold)
}
