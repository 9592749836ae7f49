package reporting

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/metrics"
	"thorswap-lab/internal/storage"
)

// GeneratorVersion is stamped into reproducibility metadata.
const GeneratorVersion = "1.0.0"

// Generator produces reports from stored data.
type Generator struct {
	recordStore storage.RecordStore
	fitStore    storage.FitStore
	filter      *filter.Filter
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
// fitStore may be nil when no fits were persisted.
func NewGenerator(recordStore storage.RecordStore, fitStore storage.FitStore, f *filter.Filter) *Generator {
	return &Generator{
		recordStore: recordStore,
		fitStore:    fitStore,
		filter:      f,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over pairs from the stores. Fits are read for runID.
func (g *Generator) Generate(ctx context.Context, runID string, pairs []domain.PairGroup) (*Report, error) {
	pairs = sortedPairs(pairs)

	r := &Report{GeneratedAt: g.now(), RunID: runID}
	var ids []string
	for _, p := range pairs {
		recs, err := g.recordStore.GetByPair(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
		if len(recs) == 0 {
			continue
		}
		ps := metrics.ComputePairStats(p.String(), recs)
		r.PairStats = append(r.PairStats, ps)
		r.DataQuality.Duplicates = append(r.DataQuality.Duplicates, DuplicateRows(ps)...)
		if g.filter != nil {
			r.Tiers = append(r.Tiers, TierRowOf(g.filter.Summarize(p, recs)))
		}
		for _, rec := range recs {
			ids = append(ids, rec.ID)
		}
	}

	if g.fitStore != nil && runID != "" {
		fits, err := g.fitStore.GetByRun(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("load fits: %w", err)
		}
		for _, f := range fits {
			r.Fits = append(r.Fits, FitRowOf(f))
		}
	}

	r.Reproducibility = ReproducibilityMetadata{
		GeneratorVersion: GeneratorVersion,
		DataVersion:      DataVersion(ids, r.Fits),
		CommitHash:       getGitCommitHash(),
	}
	return r, nil
}

// TierRowOf converts a tier summary into a report row.
func TierRowOf(s filter.TierSummary) TierRow {
	return TierRow{
		Pair:           s.Pair.String(),
		Total:          s.Total,
		WithCompletion: s.WithCompletion,
		High:           s.Tiers[domain.TierHigh].String(),
		Fast:           s.Tiers[domain.TierFast].String(),
		HighFast:       s.Tiers[domain.TierHighFast].String(),
	}
}

// FitRowOf converts a fitted distribution into a report row.
func FitRowOf(f *domain.FittedDistribution) FitRow {
	return FitRow{
		Pair:        f.Pair.String(),
		Feature:     string(f.Feature),
		Family:      f.Family().String(),
		Params:      FormatParams(f.Params),
		RMSE:        f.RMSE,
		SampleSize:  f.SampleSize,
		Provisional: f.Provisional,
	}
}

// FitRows converts FitAll output into sorted fit and failure rows.
func FitRows(results map[fitting.Key]*fitting.FitResult, failed map[fitting.Key]error) ([]FitRow, []FitFailureRow) {
	var fits []FitRow
	for _, k := range fitting.SortedKeys(results) {
		best := results[k].Best
		fits = append(fits, FitRowOf(&best))
	}
	var failures []FitFailureRow
	for _, k := range fitting.SortedKeys(failed) {
		failures = append(failures, FitFailureRow{
			Pair:    k.Pair.String(),
			Feature: string(k.Feature),
			Reason:  failed[k].Error(),
		})
	}
	return fits, failures
}

// DuplicateRows lists repeated ids found in one file's statistics.
func DuplicateRows(ps metrics.PairStats) []DuplicateRow {
	rows := make([]DuplicateRow, 0, len(ps.Duplicates))
	for _, d := range ps.Duplicates {
		rows = append(rows, DuplicateRow{File: ps.Name, ID: d.ID, Count: d.Count})
	}
	return rows
}

// CrawlSectionOf summarizes a crawl checkpoint with cursors sorted by asset pair.
// A nil state yields a nil section.
func CrawlSectionOf(state *domain.CrawlState) *CrawlSection {
	if state == nil {
		return nil
	}
	s := &CrawlSection{Stats: state.Stats}
	keys := make([]string, 0, len(state.Cursors))
	for k := range state.Cursors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := state.Cursors[k]
		s.Cursors = append(s.Cursors, CursorRow{Assets: k, Ts: c.Ts, Offset: c.Offset, Finished: c.Finished})
	}
	return s
}

// DataVersion computes a short SHA256 over record ids and fit rows.
func DataVersion(ids []string, fits []FitRow) string {
	h := sha256.New()

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	h.Write([]byte("RECORDS\n"))
	h.Write([]byte(strings.Join(sorted, "\n")))

	var fitParts []string
	for _, f := range fits {
		fitParts = append(fitParts, fmt.Sprintf("%s|%s|%s|%s|%.9g|%d",
			f.Pair, f.Feature, f.Family, f.Params, f.RMSE, f.SampleSize))
	}
	sort.Strings(fitParts)
	h.Write([]byte("\nFITS\n"))
	h.Write([]byte(strings.Join(fitParts, "\n")))

	return hex.EncodeToString(h.Sum(nil))[:12] // short hash
}

// getGitCommitHash returns current git commit hash or "unknown" if not in git repo.
func getGitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}

func sortedPairs(pairs []domain.PairGroup) []domain.PairGroup {
	out := append([]domain.PairGroup(nil), pairs...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
