package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/dedup"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/normalization"
	"thorswap-lab/internal/observability"
	"thorswap-lab/internal/reporting"
	"thorswap-lab/internal/storage"
)

// RawExts are the raw crawl file extensions read by Wash.
var RawExts = []string{dataset.Ext, ".json"}

// WashOptions configures Wash.
type WashOptions struct {
	InDir         string
	OutDir        string
	DryRun        bool                         // classify and count without writing
	Canonicalizer *normalization.Canonicalizer // default options when nil
	Concurrency   int
	Records       storage.RecordStore // optional; kept records are persisted here too
	Logger        *zap.Logger
}

// WashResult summarizes a wash run.
type WashResult struct {
	RawFiles    int
	BadFiles    []string // raw files skipped as a whole
	Undecodable int
	Stats       normalization.Stats
	Duplicates  int
	Anomalies   []dedup.Anomaly
	Unroutable  int
	Persisted   int
	Files       map[string][]*domain.CanonicalRecord // by file stem
}

// Kept returns the number of records routed to an output file.
func (r *WashResult) Kept() int {
	n := 0
	for _, recs := range r.Files {
		n += len(recs)
	}
	return n
}

// Pairs returns the directional pairs of the per-pair files.
func (r *WashResult) Pairs() []domain.PairGroup {
	var pairs []domain.PairGroup
	for _, stem := range dataset.SortedStems(r.Files) {
		if dataset.IsMultiStem(stem) {
			continue
		}
		if p, err := domain.ParsePairGroup(stem); err == nil {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// Section converts the result into a report section.
func (r *WashResult) Section() *reporting.WashSection {
	s := &reporting.WashSection{
		RawFiles:   r.RawFiles,
		BadFiles:   len(r.BadFiles),
		Total:      r.Stats.Total,
		Kept:       r.Kept(),
		NotSwap:    r.Stats.NotSwap,
		NoLegs:     r.Stats.NoLegs,
		Malformed:  r.Stats.Malformed + r.Undecodable,
		Duplicates: r.Duplicates,
		Unroutable: r.Unroutable,
	}
	for _, stem := range dataset.SortedStems(r.Files) {
		s.Files = append(s.Files, reporting.FileRow{Name: stem + dataset.Ext, Records: len(r.Files[stem])})
	}
	return s
}

// AnomalyLines describes each same-id collision for the report.
func (r *WashResult) AnomalyLines() []string {
	out := make([]string, 0, len(r.Anomalies))
	for _, a := range r.Anomalies {
		out = append(out, fmt.Sprintf("id %s: kept completedHeight=%d, rejected completedHeight=%d",
			a.ID, a.Kept.CompletedHeight, a.Rejected.CompletedHeight))
	}
	return out
}

// Wash turns every raw crawl file under InDir into canonical records,
// drops duplicate ids across the whole input and writes one ndjson file per
// routing stem into OutDir. Files are processed in path order so the first
// observed record of an id is deterministic.
func Wash(ctx context.Context, opts WashOptions) (*WashResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	canon := opts.Canonicalizer
	if canon == nil {
		canon = normalization.NewCanonicalizer(normalization.DefaultOptions())
	}

	files, err := dataset.ListFiles(opts.InDir, true, RawExts...)
	if err != nil {
		return nil, fmt.Errorf("list raw files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", dataset.ErrNoFiles, opts.InDir)
	}

	result := &WashResult{RawFiles: len(files)}
	batches := make([][]domain.RawAction, 0, len(files))
	for _, f := range files {
		lines, skipped, err := dataset.ReadRawFile(f)
		if errors.Is(err, dataset.ErrUndecodableFile) {
			logger.Warn("undecodable raw file, skipped", zap.String("file", f), zap.Error(err))
			result.BadFiles = append(result.BadFiles, f)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		if skipped > 0 {
			logger.Warn("undecodable raw lines", zap.String("file", f), zap.Int("skipped", skipped))
		}
		result.Undecodable += skipped
		batches = append(batches, dataset.Actions(lines))
	}
	observability.RecordSkipped("undecodable", result.Undecodable)
	observability.RecordSkipped("undecodable_file", len(result.BadFiles))

	runner := normalization.NewRunner(canon, logger, opts.Concurrency)
	canonical, stats, err := runner.CanonicalizeBatches(ctx, batches)
	if err != nil {
		return nil, err
	}
	result.Stats = stats

	d := dedup.New(logger)
	var kept []*domain.CanonicalRecord
	for _, batch := range canonical {
		kept = append(kept, d.Filter(batch)...)
	}
	result.Duplicates = d.Duplicates()
	result.Anomalies = d.Anomalies()
	observability.RecordDuplicates(result.Duplicates, len(result.Anomalies))

	var unroutable []*domain.CanonicalRecord
	result.Files, unroutable = dataset.Partition(kept)
	result.Unroutable = len(unroutable)
	observability.RecordSkipped("unroutable", result.Unroutable)

	logger.Info("wash complete",
		zap.Int("raw_files", result.RawFiles),
		zap.Int("bad_files", len(result.BadFiles)),
		zap.Int("actions", stats.Total),
		zap.Int("kept", result.Kept()),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("anomalies", len(result.Anomalies)),
		zap.Bool("dry_run", opts.DryRun))

	if opts.DryRun {
		return result, nil
	}

	if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
		return nil, err
	}
	for _, stem := range dataset.SortedStems(result.Files) {
		path := filepath.Join(opts.OutDir, stem+dataset.Ext)
		if err := dataset.WriteRecords(path, result.Files[stem]); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
	}

	if opts.Records != nil {
		n, err := persistRecords(ctx, opts.Records, kept)
		if err != nil {
			return nil, fmt.Errorf("persist records: %w", err)
		}
		result.Persisted = n
	}
	return result, nil
}

// persistRecords bulk-inserts records. When the store already holds some
// of them it falls back to one insert per record and skips the existing ids.
func persistRecords(ctx context.Context, store storage.RecordStore, records []*domain.CanonicalRecord) (int, error) {
	err := store.InsertBulk(ctx, records)
	if err == nil {
		return len(records), nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, err
	}

	n := 0
	for _, r := range records {
		if err := store.Insert(ctx, r); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}
