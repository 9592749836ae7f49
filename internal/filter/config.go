package filter

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPreset is returned for preset names not in Presets.
var ErrUnknownPreset = errors.New("unknown threshold preset")

// DefaultTimeThresholdSeconds is 300 blocks at 6s.
const DefaultTimeThresholdSeconds = 1800

// Config enumerates the recognized filter options. It is loaded once and
// passed to New; the filter never mutates it.
type Config struct {
	// Thresholds maps an asset symbol ("BTC") or full asset ("ETH.USDC")
	// to a minimum amount in 1e8 base units. Assets without an entry have
	// no minimum.
	Thresholds map[string]int64
	// TimeThresholdSeconds is the maximum elapsed time of a fast record.
	// Zero disables the time tiers.
	TimeThresholdSeconds int64
	RequireBoth          bool
}

// Presets are per-asset minimum amounts keyed by the fee rate they target.
var Presets = map[string]map[string]int64{
	"0.01": {"BTC": 100_000_000, "ETH": 2_000_000_000, "DOGE": 1_000_000_000_000},
	"0.02": {"BTC": 50_000_000, "ETH": 1_000_000_000, "DOGE": 500_000_000_000},
	"0.05": {"BTC": 20_000_000, "ETH": 400_000_000, "DOGE": 200_000_000_000},
	"0.1":  {"BTC": 10_000_000, "ETH": 200_000_000, "DOGE": 100_000_000_000},
}

// Preset returns a Config using the named preset thresholds and the
// default time threshold.
func Preset(name string) (Config, error) {
	p, ok := Presets[name]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	th := make(map[string]int64, len(p))
	for k, v := range p {
		th[k] = v
	}
	return Config{Thresholds: th, TimeThresholdSeconds: DefaultTimeThresholdSeconds}, nil
}

// PresetNames returns preset names sorted.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for k := range Presets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate checks the config for consistency.
func (c Config) Validate() error {
	for asset, v := range c.Thresholds {
		if v < 0 {
			return fmt.Errorf("threshold for %s must be >= 0, got %d", asset, v)
		}
	}
	if c.TimeThresholdSeconds < 0 {
		return fmt.Errorf("time_threshold_seconds must be >= 0, got %d", c.TimeThresholdSeconds)
	}
	if c.RequireBoth && c.TimeThresholdSeconds == 0 {
		return errors.New("require_both needs time_threshold_seconds > 0")
	}
	return nil
}

// FileConfig is the on-disk form. Preset seeds Thresholds before explicit
// entries are applied. A nil TimeThresholdSeconds keeps the default; an
// explicit 0 disables the time tiers.
type FileConfig struct {
	Preset               string           `yaml:"preset"`
	Thresholds           map[string]int64 `yaml:"thresholds"`
	TimeThresholdSeconds *int64           `yaml:"time_threshold_seconds"`
	RequireBoth          bool             `yaml:"require_both"`
}

// LoadConfig reads a filter config from a YAML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read filter config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML filter config bytes.
func ParseConfig(data []byte) (Config, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parse filter config: %w", err)
	}
	return fc.Resolve()
}

// Resolve layers the explicit thresholds over the preset, fills the
// default time threshold and validates.
func (fc FileConfig) Resolve() (Config, error) {
	cfg := Config{TimeThresholdSeconds: DefaultTimeThresholdSeconds}
	var preset map[string]int64
	if fc.Preset != "" {
		p, err := Preset(fc.Preset)
		if err != nil {
			return Config{}, err
		}
		preset = p.Thresholds
	}
	cfg.Thresholds = mergeThresholds(preset, fc.Thresholds)
	if fc.TimeThresholdSeconds != nil {
		cfg.TimeThresholdSeconds = *fc.TimeThresholdSeconds
	}
	cfg.RequireBoth = fc.RequireBoth

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid filter config: %w", err)
	}
	return cfg, nil
}

// mergeThresholds upper-cases asset keys and applies layers in order, so a
// later layer overrides an earlier one whatever the key's case. Keys within
// one layer are applied in sorted order.
func mergeThresholds(layers ...map[string]int64) map[string]int64 {
	out := make(map[string]int64)
	for _, layer := range layers {
		keys := make([]string, 0, len(layer))
		for k := range layer {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[strings.ToUpper(strings.TrimSpace(k))] = layer[k]
		}
	}
	return out
}
