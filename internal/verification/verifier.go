// Package verification re-checks washed datasets: every record's id must
// match its content hash, files must keep their routing and idx layout, and
// persisted records must equal what was written to disk.
package verification

import (
	"context"
	"errors"
	"fmt"

	"thorswap-lab/internal/dataset"
	"thorswap-lab/internal/dedup"
	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/idhash"
	"thorswap-lab/internal/storage"
)

// FieldDivergence represents a mismatch between expected and actual values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // value implied by content or stored copy
	Actual   interface{} // value found in the file
}

// RecordResult lists the divergences found for one record.
type RecordResult struct {
	ID          string
	Position    int // line position in the file, 0-based
	Divergences []FieldDivergence
}

// Match reports whether the record verified cleanly.
func (r RecordResult) Match() bool { return len(r.Divergences) == 0 }

// FileReport contains results for one dataset file.
type FileReport struct {
	File       string
	Records    int
	Divergent  []RecordResult // records with at least one divergence
	Duplicates []dedup.DuplicateID
}

// OK reports whether the file has no divergences and no repeated ids.
func (f *FileReport) OK() bool { return len(f.Divergent) == 0 && len(f.Duplicates) == 0 }

// Report contains results for a dataset directory.
type Report struct {
	Files            []*FileReport
	TotalRecords     int
	DivergentRecords int
	DuplicateIDs     int
}

// OK reports whether every file verified cleanly.
func (r *Report) OK() bool { return r.DivergentRecords == 0 && r.DuplicateIDs == 0 }

// Verifier checks dataset files, optionally against a record store.
type Verifier struct {
	records storage.RecordStore
}

// New creates a verifier. records may be nil to skip the store comparison.
func New(records storage.RecordStore) *Verifier {
	return &Verifier{records: records}
}

// VerifyDir verifies every dataset file in dir, multi-leg files included.
func (v *Verifier) VerifyDir(ctx context.Context, dir string) (*Report, error) {
	files, err := dataset.ListFiles(dir, false, dataset.Ext)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", dataset.ErrNoFiles, dir)
	}

	report := &Report{}
	for _, f := range files {
		fr, err := v.VerifyFile(ctx, f)
		if err != nil {
			return nil, err
		}
		report.Files = append(report.Files, fr)
		report.TotalRecords += fr.Records
		report.DivergentRecords += len(fr.Divergent)
		report.DuplicateIDs += len(fr.Duplicates)
	}
	return report, nil
}

// VerifyFile verifies one dataset file. The file stem is the expected
// routing stem of every record in it.
func (v *Verifier) VerifyFile(ctx context.Context, path string) (*FileReport, error) {
	records, err := dataset.ReadRecords(path)
	if err != nil {
		return nil, err
	}
	stem := dataset.Stem(path)

	fr := &FileReport{File: path, Records: len(records), Duplicates: dedup.Validate(records)}
	for i, rec := range records {
		divs := VerifyRecord(rec, stem, int64(i))
		if v.records != nil {
			stored, err := v.records.GetByID(ctx, rec.ID)
			switch {
			case errors.Is(err, storage.ErrNotFound):
				divs = append(divs, FieldDivergence{Field: "Stored", Expected: "present", Actual: "missing"})
			case err != nil:
				return nil, fmt.Errorf("load %s: %w", rec.ID, err)
			default:
				divs = append(divs, CompareRecords(stored, rec)...)
			}
		}
		if len(divs) > 0 {
			fr.Divergent = append(fr.Divergent, RecordResult{ID: rec.ID, Position: i, Divergences: divs})
		}
	}
	return fr, nil
}

// VerifyRecord checks one record against its own content: the id hash, the
// idx at its file position, the routing stem and the swap invariants.
// An empty stem skips the routing check.
func VerifyRecord(rec *domain.CanonicalRecord, stem string, idx int64) []FieldDivergence {
	var divs []FieldDivergence

	if id := idhash.ComputeRecordID(idhash.DescriptorsOf(rec), rec.Type, rec.Status); id != rec.ID {
		divs = append(divs, FieldDivergence{Field: "ID", Expected: id, Actual: rec.ID})
	}
	if rec.Idx != idx {
		divs = append(divs, FieldDivergence{Field: "Idx", Expected: idx, Actual: rec.Idx})
	}
	if rec.Type != domain.TypeSwap {
		divs = append(divs, FieldDivergence{Field: "Type", Expected: domain.TypeSwap, Actual: rec.Type})
	}
	if rec.Status != domain.StatusSuccess {
		divs = append(divs, FieldDivergence{Field: "Status", Expected: domain.StatusSuccess, Actual: rec.Status})
	}
	if rec.CompletedTimestamp != 0 && rec.CompletedTimestamp < rec.Timestamp {
		divs = append(divs, FieldDivergence{Field: "CompletedTimestamp", Expected: ">= timestamp", Actual: rec.CompletedTimestamp})
	}
	if stem != "" {
		if route, ok := dataset.Route(rec); !ok || route != stem {
			divs = append(divs, FieldDivergence{Field: "Route", Expected: stem, Actual: route})
		}
	}
	return divs
}

// CompareRecords compares a stored record with the file copy and returns
// divergences. Idx is dataset-local and not compared.
func CompareRecords(stored, file *domain.CanonicalRecord) []FieldDivergence {
	var divs []FieldDivergence

	if stored.ID != file.ID {
		divs = append(divs, FieldDivergence{Field: "ID", Expected: stored.ID, Actual: file.ID})
	}
	if stored.Timestamp != file.Timestamp {
		divs = append(divs, FieldDivergence{Field: "Timestamp", Expected: stored.Timestamp, Actual: file.Timestamp})
	}
	if stored.CompletedTimestamp != file.CompletedTimestamp {
		divs = append(divs, FieldDivergence{Field: "CompletedTimestamp", Expected: stored.CompletedTimestamp, Actual: file.CompletedTimestamp})
	}
	if stored.Height != file.Height {
		divs = append(divs, FieldDivergence{Field: "Height", Expected: stored.Height, Actual: file.Height})
	}
	if stored.CompletedHeight != file.CompletedHeight {
		divs = append(divs, FieldDivergence{Field: "CompletedHeight", Expected: stored.CompletedHeight, Actual: file.CompletedHeight})
	}
	if !int64PtrEquals(stored.SwapSlipBps, file.SwapSlipBps) {
		divs = append(divs, FieldDivergence{Field: "SwapSlipBps", Expected: stored.SwapSlipBps, Actual: file.SwapSlipBps})
	}
	divs = append(divs, compareLegs("In", stored.In, file.In)...)
	divs = append(divs, compareLegs("Out", stored.Out, file.Out)...)
	return divs
}

func compareLegs(side string, stored, file []domain.Leg) []FieldDivergence {
	if len(stored) != len(file) {
		return []FieldDivergence{{Field: side, Expected: len(stored), Actual: len(file)}}
	}
	var divs []FieldDivergence
	for i := range stored {
		if stored[i] != file[i] {
			divs = append(divs, FieldDivergence{
				Field:    fmt.Sprintf("%s[%d]", side, i),
				Expected: stored[i],
				Actual:   file[i],
			})
		}
	}
	return divs
}

func int64PtrEquals(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
