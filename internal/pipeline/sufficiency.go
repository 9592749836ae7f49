package pipeline

import (
	"fmt"

	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/reporting"
)

// DefaultMinCompletionShare is the share of records that must carry
// completion data for time tiers and time fits to be meaningful.
const DefaultMinCompletionShare = 0.5

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// SufficiencyInput is what a run observed.
type SufficiencyInput struct {
	Pairs          int
	Records        int
	WithCompletion int
	Samples        map[fitting.Key][]float64
	Duplicates     int // ids repeated inside a written file
	Anomalies      int // same id with differing content
}

// SufficiencyChecker validates that a run produced enough data to trust its fits.
type SufficiencyChecker struct {
	minSampleSize      int
	minCompletionShare float64
}

// NewSufficiencyChecker creates a checker. Non-positive values use defaults.
func NewSufficiencyChecker(minSampleSize int, minCompletionShare float64) *SufficiencyChecker {
	if minSampleSize <= 0 {
		minSampleSize = fitting.DefaultMinSampleSize
	}
	if minCompletionShare <= 0 {
		minCompletionShare = DefaultMinCompletionShare
	}
	return &SufficiencyChecker{minSampleSize: minSampleSize, minCompletionShare: minCompletionShare}
}

// Check runs every check against in.
func (c *SufficiencyChecker) Check(in SufficiencyInput) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true}
	add := func(check SufficiencyCheck) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
	}

	add(SufficiencyCheck{
		Name:      "Pairs with records",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d", in.Pairs),
		Pass:      in.Pairs >= 1,
	})

	atFloor := 0
	for _, s := range in.Samples {
		if len(s) >= c.minSampleSize {
			atFloor++
		}
	}
	add(SufficiencyCheck{
		Name:      "Fits at sample floor",
		Threshold: fmt.Sprintf(">= %d values each", c.minSampleSize),
		Actual:    fmt.Sprintf("%d/%d", atFloor, len(in.Samples)),
		Pass:      len(in.Samples) > 0 && atFloor == len(in.Samples),
	})

	share := 0.0
	if in.Records > 0 {
		share = float64(in.WithCompletion) / float64(in.Records)
	}
	add(SufficiencyCheck{
		Name:      "Completion coverage",
		Threshold: fmt.Sprintf(">= %.0f%%", c.minCompletionShare*100),
		Actual:    fmt.Sprintf("%.2f%%", share*100),
		Pass:      share >= c.minCompletionShare,
	})

	add(SufficiencyCheck{
		Name:      "Duplicate ids in files",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", in.Duplicates),
		Pass:      in.Duplicates == 0,
	})

	add(SufficiencyCheck{
		Name:      "Content anomalies",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", in.Anomalies),
		Pass:      in.Anomalies == 0,
	})

	return result
}

// convertToRows converts a SufficiencyResult to report rows.
func convertToRows(result *SufficiencyResult) []reporting.SufficiencyCheckRow {
	rows := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		rows[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return rows
}
