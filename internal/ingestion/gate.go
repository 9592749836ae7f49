package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExistingData is returned when an output directory already holds
	// crawl data and neither resume nor fresh was requested.
	ErrExistingData = errors.New("output directory has existing crawl data; choose --resume or --fresh")

	// ErrFreshWithData is returned when a fresh crawl would mix with existing data.
	ErrFreshWithData = errors.New("--fresh requested but output directory has existing crawl data; clear it first")

	// ErrConflictingModes is returned when both resume and fresh are requested.
	ErrConflictingModes = errors.New("--resume and --fresh are mutually exclusive")
)

// CheckOutputDir refuses to start a crawl that could silently mix or
// overwrite existing data. It returns the paths it found in the error.
func CheckOutputDir(outdir string, resume, fresh bool) error {
	if resume && fresh {
		return ErrConflictingModes
	}

	var found []string
	if _, err := os.Stat(StatePath(outdir)); err == nil {
		found = append(found, StatePath(outdir))
	}
	dataDir := filepath.Join(outdir, DataDir)
	if entries, err := os.ReadDir(dataDir); err == nil && len(entries) > 0 {
		found = append(found, dataDir+string(filepath.Separator))
	}

	if len(found) == 0 || resume {
		return nil
	}
	if fresh {
		return fmt.Errorf("%w: %s", ErrFreshWithData, strings.Join(found, ", "))
	}
	return fmt.Errorf("%w: %s", ErrExistingData, strings.Join(found, ", "))
}
