package ingestion

import (
	"path/filepath"
	"regexp"
	"strings"

	"thorswap-lab/internal/dataset"
)

// DefaultAssets are the pool pairs crawled when none are configured.
var DefaultAssets = []string{
	"BTC.BTC,DOGE.DOGE",
	"BTC.BTC,ETH.ETH",
	"ETH.ETH,DOGE.DOGE",
}

// DataDir is the raw action directory inside a crawl output directory.
const DataDir = "data"

var unsafeSlugChars = regexp.MustCompile(`[^A-Za-z0-9._~-]+`)

// Slug turns an asset list into a file-name stem: "BTC.BTC,ETH.ETH" -> "BTC.BTC__ETH.ETH".
func Slug(assets string) string {
	s := strings.ReplaceAll(strings.TrimSpace(assets), ",", "__")
	return unsafeSlugChars.ReplaceAllString(s, "_")
}

// AssetsFromSlug reverses Slug for stems produced from plain asset names.
func AssetsFromSlug(stem string) string {
	return strings.ReplaceAll(stem, "__", ",")
}

// RawPath returns the ndjson file holding raw actions of assets.
func RawPath(outdir, assets string) string {
	return filepath.Join(outdir, DataDir, Slug(assets)+dataset.Ext)
}

// StatePath returns the checkpoint file of a crawl output directory.
func StatePath(outdir string) string {
	return filepath.Join(outdir, dataset.StateFile)
}
