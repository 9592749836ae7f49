// Package observability exposes Prometheus counters for the crawl, wash,
// fit and store paths.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors of one registry.
type Metrics struct {
	// Crawl metrics
	CrawlPages       *prometheus.CounterVec
	CrawlActions     *prometheus.CounterVec
	CrawlDuplicates  *prometheus.CounterVec
	CrawlRetries     *prometheus.CounterVec
	CrawlCursorTs    *prometheus.GaugeVec
	MidgardLatency   *prometheus.HistogramVec
	BaseURLRotations prometheus.Counter
	CheckpointWrites prometheus.Counter

	// Wash metrics
	ActionsCanonicalized prometheus.Counter
	ActionsSkipped       *prometheus.CounterVec
	DuplicateRecords     prometheus.Counter
	DuplicateAnomalies   prometheus.Counter

	// Fitting metrics
	FitsCompleted *prometheus.CounterVec
	FitsExcluded  *prometheus.CounterVec
	FitRMSE       *prometheus.GaugeVec

	// Phases
	PipelineRunsTotal *prometheus.CounterVec
	PipelineDuration  *prometheus.HistogramVec

	// Stores
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
// against reg. A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "thorswap_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Crawl metrics
		CrawlPages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "pages_total",
			Help:      "Total number of Midgard pages fetched by asset pair",
		}, []string{"assets"}),
		CrawlActions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "actions_written_total",
			Help:      "Total number of raw actions appended by asset pair",
		}, []string{"assets"}),
		CrawlDuplicates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "duplicate_actions_total",
			Help:      "Total number of raw actions skipped as already seen",
		}, []string{"assets"}),
		CrawlRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "retries_total",
			Help:      "Total number of retried Midgard requests by status",
		}, []string{"status"}),
		CrawlCursorTs: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "cursor_timestamp_seconds",
			Help:      "Current backward cursor position by asset pair",
		}, []string{"assets"}),
		MidgardLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "request_latency_seconds",
			Help:      "Midgard request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		BaseURLRotations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "midgard",
			Name:      "base_url_rotations_total",
			Help:      "Total number of base URL switches after HTTP 403",
		}),
		CheckpointWrites: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crawl",
			Name:      "checkpoint_writes_total",
			Help:      "Total number of crawl state checkpoints persisted",
		}),

		// Wash metrics
		ActionsCanonicalized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wash",
			Name:      "actions_canonicalized_total",
			Help:      "Total number of raw actions turned into canonical records",
		}),
		ActionsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wash",
			Name:      "actions_skipped_total",
			Help:      "Total number of raw actions skipped by reason",
		}, []string{"reason"}),
		DuplicateRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wash",
			Name:      "duplicate_records_total",
			Help:      "Total number of canonical records dropped as duplicates",
		}),
		DuplicateAnomalies: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wash",
			Name:      "duplicate_anomalies_total",
			Help:      "Total number of same-id records with differing content",
		}),

		// Fitting metrics
		FitsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "completed_total",
			Help:      "Total number of (pair, feature) fits by selected family",
		}, []string{"family"}),
		FitsExcluded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "families_excluded_total",
			Help:      "Total number of candidate families excluded for failing to fit",
		}, []string{"family"}),
		FitRMSE: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "best_rmse",
			Help:      "RMSE of the selected family per pair and feature",
		}, []string{"pair", "feature"}),

		// Phases
		PipelineRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline phases finished, by phase and ok/error status",
		}, []string{"phase", "status"}),
		PipelineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Wall time of each pipeline phase",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"phase"}),

		// Stores
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Latency of store writes and reads by backend",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Failed store calls by backend",
		}, []string{"backend", "operation"}),
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics backs the package-level Record helpers.
var DefaultMetrics = NewMetrics("", nil)

// RecordCrawlPage records one fetched page and its outcome.
func RecordCrawlPage(assets string, written, duplicates int) {
	DefaultMetrics.CrawlPages.WithLabelValues(assets).Inc()
	DefaultMetrics.CrawlActions.WithLabelValues(assets).Add(float64(written))
	DefaultMetrics.CrawlDuplicates.WithLabelValues(assets).Add(float64(duplicates))
}

// RecordCrawlRetry records a retried request by HTTP status ("network" for transport errors).
func RecordCrawlRetry(status string) {
	DefaultMetrics.CrawlRetries.WithLabelValues(status).Inc()
}

// UpdateCrawlCursor updates the cursor gauge for an asset pair.
func UpdateCrawlCursor(assets string, tsNs int64) {
	DefaultMetrics.CrawlCursorTs.WithLabelValues(assets).Set(float64(tsNs) / 1e9)
}

// RecordMidgardLatency records request latency.
func RecordMidgardLatency(endpoint string, seconds float64) {
	DefaultMetrics.MidgardLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordBaseURLRotation increments the base URL rotation counter.
func RecordBaseURLRotation() {
	DefaultMetrics.BaseURLRotations.Inc()
}

// RecordCheckpoint increments the checkpoint counter.
func RecordCheckpoint() {
	DefaultMetrics.CheckpointWrites.Inc()
}

// RecordCanonicalized increments the canonicalized counter.
func RecordCanonicalized(n int) {
	DefaultMetrics.ActionsCanonicalized.Add(float64(n))
}

// RecordSkipped records raw actions skipped for reason.
func RecordSkipped(reason string, n int) {
	if n == 0 {
		return
	}
	DefaultMetrics.ActionsSkipped.WithLabelValues(reason).Add(float64(n))
}

// RecordDuplicates records dropped duplicates and anomalies.
func RecordDuplicates(duplicates, anomalies int) {
	DefaultMetrics.DuplicateRecords.Add(float64(duplicates))
	DefaultMetrics.DuplicateAnomalies.Add(float64(anomalies))
}

// RecordFit records a selected fit.
func RecordFit(pair, feature, family string, rmse float64) {
	DefaultMetrics.FitsCompleted.WithLabelValues(family).Inc()
	DefaultMetrics.FitRMSE.WithLabelValues(pair, feature).Set(rmse)
}

// RecordFitExcluded records a family dropped from comparison.
func RecordFitExcluded(family string) {
	DefaultMetrics.FitsExcluded.WithLabelValues(family).Inc()
}

// RecordDBQuery observes one store call against backend.
func RecordDBQuery(backend, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(backend, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(backend, operation).Inc()
	}
}

// RecordPipelineRun counts a finished phase and its duration.
func RecordPipelineRun(phase, status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(phase, status).Inc()
	DefaultMetrics.PipelineDuration.WithLabelValues(phase).Observe(durationSeconds)
}
