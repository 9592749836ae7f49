package reporting

import (
	"fmt"
	"strings"
	"time"

	"thorswap-lab/internal/metrics"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# THORChain Swap Dataset Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}

	if r.Crawl != nil {
		renderCrawl(&sb, r.Crawl)
	}
	if r.Wash != nil {
		renderWash(&sb, r.Wash)
	}

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if r.DataQuality.Clean() {
		sb.WriteString("No duplicate ids or anomalies found.\n\n")
	}
	if len(r.DataQuality.Checks) > 0 {
		sb.WriteString("### Sufficiency Checks\n\n")
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, c := range r.DataQuality.Checks {
			status := "PASS"
			if !c.Pass {
				status = "FAIL"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n", c.Name, c.Threshold, c.Actual, status))
		}
		sb.WriteString("\n")
	}
	if len(r.DataQuality.Duplicates) > 0 {
		sb.WriteString("### Duplicate IDs\n\n")
		sb.WriteString("| File | ID | Count |\n")
		sb.WriteString("|------|----|-------|\n")
		for _, d := range r.DataQuality.Duplicates {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d |\n", d.File, d.ID, d.Count))
		}
		sb.WriteString("\n")
	}
	if len(r.DataQuality.Anomalies) > 0 {
		sb.WriteString("### Anomalies\n\n")
		for _, a := range r.DataQuality.Anomalies {
			sb.WriteString(fmt.Sprintf("- %s\n", a))
		}
		sb.WriteString("\n")
	}

	// Pair Statistics
	sb.WriteString("## Pair Statistics\n\n")
	if len(r.PairStats) > 0 {
		for _, ps := range r.PairStats {
			RenderPairStats(&sb, ps)
		}
	} else {
		sb.WriteString("No pair statistics available.\n\n")
	}

	// Tiers
	sb.WriteString("## Tiers\n\n")
	if len(r.Tiers) > 0 {
		sb.WriteString("| Pair | Records | With Completion | high | fast | high-fast |\n")
		sb.WriteString("|------|---------|-----------------|------|------|-----------|\n")
		for _, t := range r.Tiers {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %s | %s | %s |\n",
				t.Pair, t.Total, t.WithCompletion, t.High, t.Fast, t.HighFast))
		}
	} else {
		sb.WriteString("No tier summaries available.\n")
	}
	sb.WriteString("\n")

	// Fits
	sb.WriteString("## Fitted Distributions\n\n")
	if len(r.Fits) > 0 {
		sb.WriteString("| Pair | Feature | Family | Params | RMSE | N | Provisional |\n")
		sb.WriteString("|------|---------|--------|--------|------|---|-------------|\n")
		for _, f := range r.Fits {
			prov := ""
			if f.Provisional {
				prov = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %.6g | %d | %s |\n",
				f.Pair, f.Feature, f.Family, f.Params, f.RMSE, f.SampleSize, prov))
		}
	} else {
		sb.WriteString("No fitted distributions available.\n")
	}
	sb.WriteString("\n")

	if len(r.FitFailures) > 0 {
		sb.WriteString("### Not Fitted\n\n")
		for _, f := range r.FitFailures {
			sb.WriteString(fmt.Sprintf("- %s / %s: %s\n", f.Pair, f.Feature, f.Reason))
		}
		sb.WriteString("\n")
	}

	// Reproducibility
	sb.WriteString("## Reproducibility\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Generator Version | %s |\n", r.Reproducibility.GeneratorVersion))
	sb.WriteString(fmt.Sprintf("| Data Version | %s |\n", r.Reproducibility.DataVersion))
	sb.WriteString(fmt.Sprintf("| Commit | %s |\n", r.Reproducibility.CommitHash))
	sb.WriteString(fmt.Sprintf("| Seed | %d |\n", r.Reproducibility.Seed))
	if r.Reproducibility.Command != "" {
		sb.WriteString(fmt.Sprintf("| Command | `%s` |\n", r.Reproducibility.Command))
	}
	sb.WriteString("\n")

	return sb.String()
}

func renderCrawl(sb *strings.Builder, c *CrawlSection) {
	sb.WriteString("## Crawl\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Pages | %d |\n", c.Stats.Pages))
	sb.WriteString(fmt.Sprintf("| Fetched | %d |\n", c.Stats.Fetched))
	sb.WriteString(fmt.Sprintf("| Written | %d |\n", c.Stats.Written))
	sb.WriteString(fmt.Sprintf("| Duplicates | %d |\n", c.Stats.Duplicates))
	sb.WriteString(fmt.Sprintf("| Retries | %d |\n", c.Stats.Retries))
	sb.WriteString("\n")

	if len(c.Cursors) > 0 {
		sb.WriteString("| Assets | Cursor | Offset | Finished |\n")
		sb.WriteString("|--------|--------|--------|----------|\n")
		for _, cur := range c.Cursors {
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %t |\n",
				cur.Assets, time.Unix(0, cur.Ts).UTC().Format(time.RFC3339), cur.Offset, cur.Finished))
		}
		sb.WriteString("\n")
	}
}

func renderWash(sb *strings.Builder, w *WashSection) {
	sb.WriteString("## Wash\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Raw Files | %d |\n", w.RawFiles))
	sb.WriteString(fmt.Sprintf("| Skipped Files | %d |\n", w.BadFiles))
	sb.WriteString(fmt.Sprintf("| Raw Actions | %d |\n", w.Total))
	sb.WriteString(fmt.Sprintf("| Canonical Records | %d |\n", w.Kept))
	sb.WriteString(fmt.Sprintf("| Not Swap | %d |\n", w.NotSwap))
	sb.WriteString(fmt.Sprintf("| No Legs | %d |\n", w.NoLegs))
	sb.WriteString(fmt.Sprintf("| Malformed | %d |\n", w.Malformed))
	sb.WriteString(fmt.Sprintf("| Duplicates | %d |\n", w.Duplicates))
	sb.WriteString(fmt.Sprintf("| Unroutable | %d |\n", w.Unroutable))
	sb.WriteString("\n")

	if len(w.Files) > 0 {
		sb.WriteString("| File | Records |\n")
		sb.WriteString("|------|---------|\n")
		for _, f := range w.Files {
			sb.WriteString(fmt.Sprintf("| %s | %d |\n", f.Name, f.Records))
		}
		sb.WriteString("\n")
	}
}

// RenderPairStats writes one file's statistics block.
func RenderPairStats(sb *strings.Builder, ps metrics.PairStats) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", ps.Name))
	sb.WriteString(fmt.Sprintf("Records: %d\n\n", ps.Records))

	sb.WriteString("| Series | Count | Min | Max | Mean | Median |\n")
	sb.WriteString("|--------|-------|-----|-----|------|--------|\n")
	for _, row := range []struct {
		name string
		s    metrics.Summary
	}{
		{"In Amount", ps.InAmounts},
		{"Out Amount", ps.OutAmounts},
		{"Height Diff", ps.HeightDiff},
	} {
		if row.s.Count == 0 {
			sb.WriteString(fmt.Sprintf("| %s | 0 | N/A | N/A | N/A | N/A |\n", row.name))
			continue
		}
		sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %.2f | %.2f |\n",
			row.name, row.s.Count, row.s.Min, row.s.Max, row.s.Mean, row.s.Median))
	}
	sb.WriteString("\n")

	if len(ps.Coverage) > 0 {
		sb.WriteString("| Height Diff <= | Coverage % |\n")
		sb.WriteString("|----------------|------------|\n")
		for _, c := range ps.Coverage {
			sb.WriteString(fmt.Sprintf("| %d | %.2f |\n", c.Threshold, c.Percent))
		}
		sb.WriteString("\n")
	}

	if ps.Records > 0 {
		sb.WriteString(fmt.Sprintf("Timestamps: %s .. %s, %d unique\n\n",
			time.Unix(0, ps.Timestamps.Min).UTC().Format(time.RFC3339),
			time.Unix(0, ps.Timestamps.Max).UTC().Format(time.RFC3339),
			ps.Timestamps.Unique))
		sb.WriteString("| Entries per Timestamp | Timestamps |\n")
		sb.WriteString("|-----------------------|------------|\n")
		for _, hits := range ps.Timestamps.SortedHits() {
			sb.WriteString(fmt.Sprintf("| %d | %d |\n", hits, ps.Timestamps.Hits[hits]))
		}
		sb.WriteString("\n")
	}
}
