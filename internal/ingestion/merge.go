package ingestion

import (
	"fmt"
	"path/filepath"
	"sort"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/idhash"
)

// MergeResult counts one merged file.
type MergeResult struct {
	File       string
	Left       int
	Right      int
	Merged     int
	Duplicates int
}

// MergeActions concatenates left and right, keeps the first action of each
// action key and sorts by date descending, the order Midgard serves pages in.
func MergeActions(left, right []dataset.RawLine) []dataset.RawLine {
	seen := make(map[string]struct{}, len(left)+len(right))
	merged := make([]dataset.RawLine, 0, len(left)+len(right))
	for _, side := range [][]dataset.RawLine{left, right} {
		for _, l := range side {
			key := idhash.ComputeActionKey(&l.Action)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, l)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Action.DateNs() > merged[j].Action.DateNs()
	})
	return merged
}

// MergeDirs merges every raw file of dir1 with the same-named file of dir2
// into outdir. Files only present in dir2 are ignored. With dryRun nothing
// is written.
func MergeDirs(dir1, dir2, outdir string, dryRun bool) ([]MergeResult, error) {
	paths, err := filepath.Glob(filepath.Join(dir1, "*"+dataset.Ext))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", dataset.ErrNoFiles, dir1)
	}
	sort.Strings(paths)

	results := make([]MergeResult, 0, len(paths))
	for _, p := range paths {
		name := filepath.Base(p)
		left, err := readRawIfExists(p)
		if err != nil {
			return nil, err
		}
		right, err := readRawIfExists(filepath.Join(dir2, name))
		if err != nil {
			return nil, err
		}

		merged := MergeActions(left, right)
		results = append(results, MergeResult{
			File:       name,
			Left:       len(left),
			Right:      len(right),
			Merged:     len(merged),
			Duplicates: len(left) + len(right) - len(merged),
		})
		if dryRun {
			continue
		}
		if err := dataset.WriteRawFile(filepath.Join(outdir, name), merged); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	return results, nil
}
