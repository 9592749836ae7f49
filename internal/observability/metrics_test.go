package observability

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics_PrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.CrawlPages.WithLabelValues("BTC.BTC,ETH.ETH").Inc()
	m.CrawlPages.WithLabelValues("BTC.BTC,ETH.ETH").Inc()
	m.DBQueryErrors.WithLabelValues("postgres", "insert_record").Inc()

	if got := testutil.ToFloat64(m.CrawlPages.WithLabelValues("BTC.BTC,ETH.ETH")); got != 2 {
		t.Errorf("pages = %v, want 2", got)
	}

	want := `
# HELP test_store_query_errors_total Failed store calls by backend
# TYPE test_store_query_errors_total counter
test_store_query_errors_total{backend="postgres",operation="insert_record"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "test_store_query_errors_total"); err != nil {
		t.Error(err)
	}
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("clickhouse", "probe"))
	RecordDBQuery("clickhouse", "probe", 0.01, errors.New("boom"))
	RecordDBQuery("clickhouse", "probe", 0.01, nil)
	if got := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("clickhouse", "probe")); got != before+1 {
		t.Errorf("errors = %v, want %v", got, before+1)
	}

	skipped := testutil.ToFloat64(DefaultMetrics.ActionsSkipped.WithLabelValues("probe"))
	RecordSkipped("probe", 0)
	RecordSkipped("probe", 3)
	if got := testutil.ToFloat64(DefaultMetrics.ActionsSkipped.WithLabelValues("probe")); got != skipped+3 {
		t.Errorf("skipped = %v, want %v", got, skipped+3)
	}

	UpdateCrawlCursor("probe", 1_700_000_000_500_000_000)
	if got := testutil.ToFloat64(DefaultMetrics.CrawlCursorTs.WithLabelValues("probe")); got != 1_700_000_000.5 {
		t.Errorf("cursor = %v", got)
	}
}
