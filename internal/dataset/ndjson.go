// Package dataset reads and writes raw crawl files and cleaned ndjson datasets.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"thorswap-lab/internal/domain"
)

var (
	// ErrNoFiles is returned when a directory holds no dataset files.
	ErrNoFiles = errors.New("no dataset files")
	// ErrUndecodableFile is returned when a JSON array file cannot be
	// decoded as a whole, e.g. a truncated crawl page.
	ErrUndecodableFile = errors.New("undecodable raw file")
)

// maxLine bounds a single ndjson line.
const maxLine = 16 << 20

// StateFile is skipped when scanning raw directories.
const StateFile = "state.json"

// RawLine is one raw action with its original bytes preserved.
type RawLine struct {
	Raw    json.RawMessage
	Action domain.RawAction
}

// ReadRawFile reads raw actions from a JSON array, a single JSON object or
// ndjson. Lines that fail to decode are counted in skipped.
func ReadRawFile(path string) (lines []RawLine, skipped int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, 0, nil
	}

	if data[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, 0, fmt.Errorf("%w %s: %v", ErrUndecodableFile, path, err)
		}
		for _, raw := range arr {
			l, ok := decodeRaw(raw)
			if !ok {
				skipped++
				continue
			}
			lines = append(lines, l)
		}
		return lines, skipped, nil
	}

	if l, ok := decodeRaw(data); ok {
		return []RawLine{l}, 0, nil
	}

	err = scanLines(bytes.NewReader(data), func(_ int, b []byte) error {
		l, ok := decodeRaw(b)
		if !ok {
			skipped++
			return nil
		}
		lines = append(lines, l)
		return nil
	})
	return lines, skipped, err
}

func decodeRaw(b []byte) (RawLine, bool) {
	var a domain.RawAction
	if err := json.Unmarshal(b, &a); err != nil {
		return RawLine{}, false
	}
	raw := make(json.RawMessage, len(b))
	copy(raw, b)
	return RawLine{Raw: raw, Action: a}, true
}

// Actions returns the decoded actions of lines.
func Actions(lines []RawLine) []domain.RawAction {
	out := make([]domain.RawAction, len(lines))
	for i, l := range lines {
		out[i] = l.Action
	}
	return out
}

// WriteRawFile atomically writes lines as ndjson.
func WriteRawFile(path string, lines []RawLine) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		for _, l := range lines {
			if _, err := w.Write(l.Raw); err != nil {
				return err
			}
			if err := w.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendRaw appends already-encoded actions to an ndjson file.
func AppendRaw(path string, raws []json.RawMessage) error {
	if len(raws) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, r := range raws {
		if _, err := w.Write(r); err != nil {
			f.Close()
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadRecords reads a cleaned ndjson dataset. Blank lines are ignored; a
// line that does not decode fails the read with its line number.
func ReadRecords(path string) ([]*domain.CanonicalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []*domain.CanonicalRecord
	err = scanLines(f, func(n int, b []byte) error {
		var r domain.CanonicalRecord
		if err := json.Unmarshal(b, &r); err != nil {
			return fmt.Errorf("%s:%d: %w", path, n, err)
		}
		out = append(out, &r)
		return nil
	})
	return out, err
}

// WriteRecords atomically writes records as ndjson. Idx is written as the
// contiguous position 0..n-1; the input records are not modified.
func WriteRecords(path string, records []*domain.CanonicalRecord) error {
	return writeAtomic(path, func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i, r := range records {
			c := *r
			c.Idx = int64(i)
			if err := enc.Encode(&c); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeAtomic(path string, fill func(*bufio.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := fill(w); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func scanLines(r io.Reader, fn func(lineNo int, b []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if err := fn(n, b); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ListFiles returns files under dir with any of exts, sorted. When recursive
// is false only the top level is scanned. state.json is never returned.
func ListFiles(dir string, recursive bool, exts ...string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	match := func(name string) bool {
		if name == StateFile {
			return false
		}
		for _, e := range exts {
			if strings.HasSuffix(name, e) {
				return true
			}
		}
		return false
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && match(d.Name()) {
				files = append(files, p)
			}
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(dir)
		for _, e := range entries {
			if !e.IsDir() && match(e.Name()) {
				files = append(files, filepath.Join(dir, e.Name()))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PairFiles lists per-pair dataset files in dir, skipping multi-leg files.
func PairFiles(dir string) ([]string, error) {
	files, err := ListFiles(dir, false, Ext)
	if err != nil {
		return nil, err
	}
	out := files[:0]
	for _, f := range files {
		if !IsMultiStem(Stem(f)) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFiles, dir)
	}
	return out, nil
}
