package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/domain"
)

// FileSpan summarizes one raw file.
type FileSpan struct {
	Assets  string
	Path    string
	Actions int
	MinTs   int64 // ns
	MaxTs   int64 // ns
}

// readRawIfExists reads a raw file, treating a missing file as empty.
func readRawIfExists(path string) ([]dataset.RawLine, error) {
	lines, _, err := dataset.ReadRawFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// ScanFile returns the action count and date range of a raw file.
// ok is false when the file holds no dated action.
func ScanFile(path string) (span FileSpan, ok bool, err error) {
	lines, err := readRawIfExists(path)
	if err != nil {
		return FileSpan{}, false, err
	}
	span = FileSpan{
		Assets:  AssetsFromSlug(dataset.Stem(path)),
		Path:    path,
		Actions: len(lines),
	}
	for i := range lines {
		d := lines[i].Action.DateNs()
		if d <= 0 {
			continue
		}
		if span.MinTs == 0 || d < span.MinTs {
			span.MinTs = d
		}
		if d > span.MaxTs {
			span.MaxTs = d
		}
	}
	return span, span.MinTs > 0, nil
}

// StateFromFiles rebuilds a checkpoint from the raw files in dataDir, for
// datasets assembled by merging or copied without their state. Every cursor
// points at the oldest action of its file and is marked finished. A
// positive minTs overrides the computed lower bound. Files without dated
// actions are returned in skipped.
func StateFromFiles(dataDir string, minTs int64) (state *domain.CrawlState, spans []FileSpan, skipped []string, err error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, "*"+dataset.Ext))
	if err != nil {
		return nil, nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, nil, fmt.Errorf("%w in %s", dataset.ErrNoFiles, dataDir)
	}

	state = domain.NewCrawlState(0, 0)
	for _, p := range paths {
		span, ok, err := ScanFile(p)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			skipped = append(skipped, p)
			continue
		}
		spans = append(spans, span)
		state.Cursors[span.Assets] = domain.CrawlCursor{Ts: span.MinTs, Finished: true}
		state.Stats.Written += int64(span.Actions)
		if state.MinTs == 0 || span.MinTs < state.MinTs {
			state.MinTs = span.MinTs
		}
		if span.MaxTs > state.MaxTs {
			state.MaxTs = span.MaxTs
		}
	}
	if minTs > 0 {
		state.MinTs = minTs
	}
	return state, spans, skipped, nil
}
