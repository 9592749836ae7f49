// Package query turns cleaned pair datasets into YAML batch query files.
// Each query asks for the source transaction of a cross-chain output; the
// in-leg txID is the ground truth.
package query

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

// ErrNoQueries is returned when a file yields no usable queries.
var ErrNoQueries = errors.New("no valid queries")

// Header is written above the YAML document.
const Header = `# Batch Query File
# Auto-generated from THORChain ndjson data
# Format: Each query has 'query', 'query_id', 'groundtruth', and 'metadata'

`

const template = "What is the source transaction for this cross-chain %s output " +
	"to %s in tx %s on %s, given that it originates from %s on %s?"

// Metadata carries the record facts a query was built from.
type Metadata struct {
	RecordID   string `yaml:"thorchain_id"`
	HeightDiff int64  `yaml:"thorchain_height_diff"`
	SrcAmount  int64  `yaml:"src_amount"`
	DstAmount  int64  `yaml:"dst_amount"`
}

// Query is one batch entry.
type Query struct {
	Query       string   `yaml:"query"`
	QueryID     string   `yaml:"query_id"`
	GroundTruth string   `yaml:"groundtruth"`
	Metadata    Metadata `yaml:"metadata"`
}

// File is the YAML document root.
type File struct {
	Queries []Query `yaml:"queries"`
}

// FromRecord builds a query from a 1-in/1-out record.
// ok is false when the record has other leg counts or is missing a field.
func FromRecord(rec *domain.CanonicalRecord) (Query, bool) {
	if len(rec.In) != 1 || len(rec.Out) != 1 {
		return Query{}, false
	}
	in, out := rec.In[0], rec.Out[0]
	for _, s := range []string{in.Chain, in.Asset, in.TxID, out.Chain, out.Asset, out.TxID, out.Address} {
		if s == "" {
			return Query{}, false
		}
	}

	var diff int64
	if in.Height != 0 && out.Height != 0 {
		diff = out.Height - in.Height
	}

	return Query{
		Query:       fmt.Sprintf(template, out.Asset, out.Address, out.TxID, out.Chain, in.Asset, in.Chain),
		QueryID:     rec.ID,
		GroundTruth: in.TxID,
		Metadata: Metadata{
			RecordID:   rec.ID,
			HeightDiff: diff,
			SrcAmount:  in.Amount,
			DstAmount:  out.Amount,
		},
	}, true
}

// Build converts records, dropping those FromRecord rejects.
func Build(records []*domain.CanonicalRecord) []Query {
	out := make([]Query, 0, len(records))
	for _, r := range records {
		if q, ok := FromRecord(r); ok {
			out = append(out, q)
		}
	}
	return out
}

// Marshal renders queries with the header comment.
func Marshal(queries []Query) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(Header)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(File{Queries: queries}); err != nil {
		return nil, fmt.Errorf("encode queries: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads a query file.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// GenerateFile converts one dataset file into one query file.
// Returns the number of queries written, or ErrNoQueries.
func GenerateFile(input, output string) (int, error) {
	recs, err := dataset.ReadRecords(input)
	if err != nil {
		return 0, err
	}
	queries := Build(recs)
	if len(queries) == 0 {
		return 0, fmt.Errorf("%w in %s", ErrNoQueries, input)
	}

	data, err := Marshal(queries)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return 0, err
	}
	return len(queries), nil
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Files   map[string]int // output path -> query count
	Skipped []string       // multi-* inputs
	Empty   []string       // inputs without valid queries
	Total   int
}

// GenerateBatch writes {stem}.yaml into outDir for each pair file in inDir.
func GenerateBatch(inDir, outDir string, logger *zap.Logger) (*BatchResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	files, err := dataset.ListFiles(inDir, false, dataset.Ext)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{Files: make(map[string]int)}
	for _, f := range files {
		stem := dataset.Stem(f)
		if dataset.IsMultiStem(stem) {
			res.Skipped = append(res.Skipped, filepath.Base(f))
			continue
		}

		output := filepath.Join(outDir, stem+".yaml")
		n, err := GenerateFile(f, output)
		if errors.Is(err, ErrNoQueries) {
			logger.Warn("no valid queries", zap.String("file", f))
			res.Empty = append(res.Empty, filepath.Base(f))
			continue
		}
		if err != nil {
			return nil, err
		}
		logger.Info("queries generated", zap.String("file", f), zap.String("output", output), zap.Int("queries", n))
		res.Files[output] = n
		res.Total += n
	}

	if len(res.Skipped) > 0 {
		logger.Info("skipped multi-leg files", zap.String("files", strings.Join(res.Skipped, ", ")))
	}
	return res, nil
}
