// Package config loads the pipeline configuration: a YAML file for stage
// settings and environment variables (optionally from a .env file) for
// connection strings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"thorswap-lab/internal/domain"
	"thorswap-lab/internal/filter"
	"thorswap-lab/internal/fitting"
	"thorswap-lab/internal/ingestion"
	"thorswap-lab/internal/midgard"
	"thorswap-lab/internal/normalization"
	"thorswap-lab/internal/sampling"
)

// Environment variables overlaid on the file config.
const (
	EnvPostgresDSN   = "THORSWAP_POSTGRES_DSN"
	EnvClickHouseDSN = "THORSWAP_CLICKHOUSE_DSN"
	EnvRedisAddr     = "THORSWAP_REDIS_ADDR"
	EnvRedisPassword = "THORSWAP_REDIS_PASSWORD"
	EnvMidgardURLs   = "THORSWAP_MIDGARD_URLS"
	EnvMetricsAddr   = "THORSWAP_METRICS_ADDR"
)

// Config represents the application configuration.
type Config struct {
	Midgard MidgardConfig     `yaml:"midgard"`
	Crawl   CrawlConfig       `yaml:"crawl"`
	Wash    WashConfig        `yaml:"wash"`
	Filter  filter.FileConfig `yaml:"filter"`
	Sample  SampleConfig      `yaml:"sample"`
	Fit     FitConfig         `yaml:"fit"`
	Storage StorageConfig     `yaml:"storage"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// MidgardConfig holds API client settings.
type MidgardConfig struct {
	BaseURLs   []string      `yaml:"base_urls"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	UserAgent  string        `yaml:"user_agent"`
}

// CrawlConfig holds crawler settings.
type CrawlConfig struct {
	Assets   []string      `yaml:"assets"`
	Type     string        `yaml:"type"`
	Limit    int           `yaml:"limit"`
	Throttle time.Duration `yaml:"throttle"`
	OutDir   string        `yaml:"outdir"`
}

// WashConfig holds canonicalization settings.
type WashConfig struct {
	BlockTime         time.Duration `yaml:"block_time"`
	DropAssetPrefixes []string      `yaml:"drop_asset_prefixes"`
	Concurrency       int           `yaml:"concurrency"`
}

// SampleConfig holds sampler settings. Count wins over Fraction.
type SampleConfig struct {
	Seed     int64   `yaml:"seed"`
	Count    int     `yaml:"count"`
	Fraction float64 `yaml:"fraction"`
}

// FitConfig holds fitter and scorer settings.
type FitConfig struct {
	Bins          int                        `yaml:"bins"`
	MinSampleSize int                        `yaml:"min_sample_size"`
	Concurrency   int                        `yaml:"concurrency"`
	Families      []domain.Family            `yaml:"families"`
	Weights       map[domain.Feature]float64 `yaml:"weights"`
}

// StorageConfig holds optional backing stores. Empty values disable a store.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// MetricsConfig holds the Prometheus endpoint address; empty disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Midgard: MidgardConfig{
			BaseURLs:   append([]string(nil), midgard.DefaultBaseURLs...),
			Timeout:    midgard.DefaultTimeout,
			MaxRetries: midgard.DefaultMaxRetries,
			UserAgent:  midgard.DefaultUserAgent,
		},
		Crawl: CrawlConfig{
			Assets:   append([]string(nil), ingestion.DefaultAssets...),
			Type:     domain.TypeSwap,
			Limit:    midgard.MaxPageSize,
			Throttle: ingestion.DefaultThrottle,
			OutDir:   "data",
		},
		Wash: WashConfig{
			BlockTime:         normalization.DefaultBlockTime,
			DropAssetPrefixes: append([]string(nil), normalization.DefaultDropAssetPrefixes...),
		},
		Filter: filter.FileConfig{Preset: "0.01"},
		Sample: SampleConfig{Seed: sampling.DefaultSeed, Count: 1000},
		Fit: FitConfig{
			Bins:          fitting.DefaultBins,
			MinSampleSize: fitting.DefaultMinSampleSize,
		},
	}
}

// Load reads path over the defaults, then applies the environment.
// An empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from path into the process environment when the
// file exists. Variables already set are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays non-empty environment values.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(EnvPostgresDSN, &c.Storage.PostgresDSN)
	set(EnvClickHouseDSN, &c.Storage.ClickHouseDSN)
	set(EnvRedisAddr, &c.Storage.RedisAddr)
	set(EnvRedisPassword, &c.Storage.RedisPassword)
	set(EnvMetricsAddr, &c.Metrics.Addr)

	if v, ok := lookup(EnvMidgardURLs); ok && strings.TrimSpace(v) != "" {
		c.Midgard.BaseURLs = splitList(v)
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Midgard.BaseURLs) == 0 {
		errs = append(errs, errors.New("midgard.base_urls must not be empty"))
	}
	if c.Midgard.MaxRetries < 0 {
		errs = append(errs, errors.New("midgard.max_retries must be >= 0"))
	}
	if c.Crawl.Limit < 1 || c.Crawl.Limit > midgard.MaxPageSize {
		errs = append(errs, fmt.Errorf("crawl.limit must be in [1, %d]", midgard.MaxPageSize))
	}
	if c.Crawl.Throttle < 0 {
		errs = append(errs, errors.New("crawl.throttle must be >= 0"))
	}
	if c.Wash.BlockTime <= 0 {
		errs = append(errs, errors.New("wash.block_time must be positive"))
	}
	if _, err := c.Filter.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SampleTarget().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sample: %w", err))
	}
	if c.Fit.Bins < 1 {
		errs = append(errs, errors.New("fit.bins must be at least 1"))
	}
	for f, w := range c.Fit.Weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("fit.weights[%s] must be >= 0", f))
		}
	}
	return errors.Join(errs...)
}

// FilterConfig resolves the filter section.
func (c *Config) FilterConfig() (filter.Config, error) {
	return c.Filter.Resolve()
}

// SampleTarget returns the per-group sample size.
func (c *Config) SampleTarget() sampling.Target {
	return sampling.Target{Count: c.Sample.Count, Fraction: c.Sample.Fraction}
}

// CanonicalizerOptions returns canonicalizer options.
func (c *Config) CanonicalizerOptions() normalization.Options {
	return normalization.Options{
		DropAssetPrefixes: c.Wash.DropAssetPrefixes,
		BlockTime:         c.Wash.BlockTime,
	}
}

// FitterOptions returns fitter options without a logger.
func (c *Config) FitterOptions() fitting.Options {
	return fitting.Options{
		Bins:          c.Fit.Bins,
		MinSampleSize: c.Fit.MinSampleSize,
		Families:      c.Fit.Families,
		Concurrency:   c.Fit.Concurrency,
	}
}

// Weights returns scorer weights, nil when unset.
func (c *Config) Weights() fitting.Weights {
	if len(c.Fit.Weights) == 0 {
		return nil
	}
	w := make(fitting.Weights, len(c.Fit.Weights))
	for f, v := range c.Fit.Weights {
		w[f] = v
	}
	return w
}

// MidgardOptions returns HTTP client options for the configured settings.
func (c *Config) MidgardOptions() []midgard.ClientOption {
	opts := []midgard.ClientOption{midgard.WithMaxRetries(c.Midgard.MaxRetries)}
	if c.Midgard.Timeout > 0 {
		opts = append(opts, midgard.WithTimeout(c.Midgard.Timeout))
	}
	if c.Midgard.UserAgent != "" {
		opts = append(opts, midgard.WithUserAgent(c.Midgard.UserAgent))
	}
	return opts
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
