package reporting

import (
	"fmt"
	"strings"
	"time"

	"thorswap-lab/internal/metrics"
)

// RenderPairStatsCSV renders per-file statistics as CSV string.
func RenderPairStatsCSV(stats []metrics.PairStats) string {
	var sb strings.Builder

	// Header
	sb.WriteString("name,records,")
	sb.WriteString("in_count,in_min,in_max,in_mean,in_median,")
	sb.WriteString("out_count,out_min,out_max,out_mean,out_median,")
	sb.WriteString("hd_count,hd_min,hd_max,hd_mean,hd_median,")
	for _, th := range metrics.CoverageThresholds {
		sb.WriteString(fmt.Sprintf("hd_le_%d,", th))
	}
	sb.WriteString("ts_min,ts_max,ts_unique,duplicate_ids\n")

	// Rows
	for _, ps := range stats {
		sb.WriteString(fmt.Sprintf("%s,%d,", ps.Name, ps.Records))
		for _, s := range []metrics.Summary{ps.InAmounts, ps.OutAmounts, ps.HeightDiff} {
			sb.WriteString(fmt.Sprintf("%d,%d,%d,%.2f,%.2f,", s.Count, s.Min, s.Max, s.Mean, s.Median))
		}
		coverage := make(map[int64]float64, len(ps.Coverage))
		for _, c := range ps.Coverage {
			coverage[c.Threshold] = c.Percent
		}
		for _, th := range metrics.CoverageThresholds {
			if pct, ok := coverage[th]; ok {
				sb.WriteString(fmt.Sprintf("%.2f,", pct))
			} else {
				sb.WriteString(",")
			}
		}
		sb.WriteString(fmt.Sprintf("%d,%d,%d,%d\n",
			ps.Timestamps.Min, ps.Timestamps.Max, ps.Timestamps.Unique, len(ps.Duplicates)))
	}

	return sb.String()
}

// RenderTiersCSV renders tier rows as CSV string.
func RenderTiersCSV(tiers []TierRow) string {
	var sb strings.Builder
	sb.WriteString("pair,total,with_completion,high,fast,high_fast\n")
	for _, t := range tiers {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%s,%s,%s\n",
			t.Pair, t.Total, t.WithCompletion, t.High, t.Fast, t.HighFast))
	}
	return sb.String()
}

// RenderFitsCSV renders fit rows as CSV string. Params are quoted.
func RenderFitsCSV(fits []FitRow) string {
	var sb strings.Builder
	sb.WriteString("pair,feature,family,params,rmse,sample_size,provisional\n")
	for _, f := range fits {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%q,%.9g,%d,%t\n",
			f.Pair, f.Feature, f.Family, f.Params, f.RMSE, f.SampleSize, f.Provisional))
	}
	return sb.String()
}

// RenderSlowSwapsCSV renders slow swaps as CSV string.
func RenderSlowSwapsCSV(swaps []metrics.SlowSwap) string {
	var sb strings.Builder
	sb.WriteString("id,pair,timestamp,height_diff,in_height,out_height,in_amount,out_amount\n")
	for _, s := range swaps {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%d,%d,%d\n",
			s.ID, s.Pair, s.Timestamp.Format(time.DateTime),
			s.HeightDiff, s.InHeight, s.OutHeight, s.InAmount, s.OutAmount))
	}
	return sb.String()
}
