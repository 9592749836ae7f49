package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"thorswap-lab/internal/storage/memory"
)

func TestRegenerate_FromOutputDir(t *testing.T) {
	out := t.TempDir()
	if _, err := newTestPipeline(t, writeFixtures(t, 120), out).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := os.Remove(filepath.Join(out, ReportFile)); err != nil {
		t.Fatalf("remove report: %v", err)
	}

	report, suff, err := Regenerate(context.Background(), RegenerateOptions{
		OutputDir: out,
		RunID:     "again",
		Filter:    presetFilter(t),
		Seed:      42,
		Clock:     func() time.Time { return fixedTime },
	})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(report.PairStats) != 3 {
		t.Errorf("PairStats = %d, want 3", len(report.PairStats))
	}
	if len(report.Fits) != 6 {
		t.Errorf("Fits = %d, want 6", len(report.Fits))
	}
	if report.Wash != nil {
		t.Error("regenerated report should not carry a wash section")
	}
	if suff.AllPass {
		t.Error("expected sufficiency to fail on undersized samples")
	}

	md, err := os.ReadFile(filepath.Join(out, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(md), "Run: again") {
		t.Error("report missing regenerated run id")
	}
}

func TestRegenerate_WithoutFits(t *testing.T) {
	out := t.TempDir()
	if _, err := Wash(context.Background(), WashOptions{InDir: writeFixtures(t, 10), OutDir: filepath.Join(out, CleanDir)}); err != nil {
		t.Fatalf("Wash: %v", err)
	}

	report, _, err := Regenerate(context.Background(), RegenerateOptions{OutputDir: out, Filter: presetFilter(t)})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if len(report.Fits) != 0 {
		t.Errorf("Fits = %d, want 0", len(report.Fits))
	}
	if len(report.PairStats) != 3 {
		t.Errorf("PairStats = %d, want 3", len(report.PairStats))
	}
}

func TestRegenerate_FitStoreNeedsRunID(t *testing.T) {
	_, _, err := Regenerate(context.Background(), RegenerateOptions{OutputDir: t.TempDir(), Fits: memory.NewFitStore()})
	if err == nil {
		t.Fatal("expected error without run id")
	}
}
