package reporting

import (
	"time"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/metrics"
)

// Report represents one pipeline run's report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunID       string

	// Optional stage sections; nil when the stage did not run.
	Crawl *CrawlSection
	Wash  *WashSection

	// Data Quality (duplicate ids, anomalies)
	DataQuality DataQualitySection

	// Per-file descriptive statistics (sorted by name)
	PairStats []metrics.PairStats

	// Tier sizes per pair (sorted by pair)
	Tiers []TierRow

	// Fitted distributions (sorted by pair, feature)
	Fits        []FitRow
	FitFailures []FitFailureRow

	Reproducibility ReproducibilityMetadata
}

// CrawlSection summarizes a crawl checkpoint.
type CrawlSection struct {
	Stats   domain.CrawlStats
	Cursors []CursorRow
}

// CursorRow is one asset pair's crawl position.
type CursorRow struct {
	Assets   string
	Ts       int64 // ns
	Offset   int
	Finished bool
}

// WashSection summarizes raw-to-canonical cleaning.
type WashSection struct {
	RawFiles   int
	BadFiles   int // undecodable raw files skipped
	Total      int
	Kept       int
	NotSwap    int
	NoLegs     int
	Malformed  int
	Duplicates int
	Unroutable int
	Files      []FileRow
}

// FileRow is one written dataset file.
type FileRow struct {
	Name    string
	Records int
}

// DataQualitySection lists consistency problems found in the data.
type DataQualitySection struct {
	Checks     []SufficiencyCheckRow
	Duplicates []DuplicateRow
	Anomalies  []string
}

// SufficiencyCheckRow is one data sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// Clean reports whether no problem was recorded.
func (d DataQualitySection) Clean() bool {
	return len(d.Duplicates) == 0 && len(d.Anomalies) == 0
}

// DuplicateRow is an id repeated within one dataset file.
type DuplicateRow struct {
	File  string
	ID    string
	Count int
}

// TierRow represents one pair's tier sizes. Time tiers hold
// filter.Unavailable when the pair has no completion data.
type TierRow struct {
	Pair           string
	Total          int
	WithCompletion int
	High           string
	Fast           string
	HighFast       string
}

// FitRow represents one selected distribution.
type FitRow struct {
	Pair        string
	Feature     string
	Family      string
	Params      string
	RMSE        float64
	SampleSize  int
	Provisional bool
}

// FitFailureRow is a (pair, feature) without a fitted distribution.
type FitFailureRow struct {
	Pair    string
	Feature string
	Reason  string
}

// ReproducibilityMetadata contains information for reproducing the report.
type ReproducibilityMetadata struct {
	GeneratorVersion string
	DataVersion      string // SHA256 of record ids and fit parameters
	CommitHash       string
	Seed             int64
	Command          string
}
