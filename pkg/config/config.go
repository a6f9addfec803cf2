// Package config centralizes the closed set of options that shape how
// a Database is constructed (spec §6.4): data directory, index
// variant, cache sizing, retry pacing, and sanitizer strictness.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full, closed set of options a Database construction
// accepts. Zero value is not directly usable; build one with
// Default() or FromEnv() and apply Option funcs on top.
type Config struct {
	DataDir string `yaml:"data_dir"`

	CacheCapacity               int  `yaml:"cache_capacity"`
	UseBinaryIndex              bool `yaml:"use_binary_index"`
	AggressiveTrigramThresholds bool `yaml:"aggressive_trigram_thresholds"`
	StrictSanitization          bool `yaml:"strict_sanitization"`
	CIMode                      bool `yaml:"-"`
	MaxQueryTerms               int  `yaml:"max_query_terms"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"`
}

// Default returns the baseline configuration: in-memory trigram
// index, lenient sanitization, the wrapper stack's stated defaults.
func Default() Config {
	return Config{
		DataDir:                     "./kotadb-data",
		CacheCapacity:               1000,
		UseBinaryIndex:              false,
		AggressiveTrigramThresholds: false,
		StrictSanitization:          false,
		CIMode:                      ciModeFromEnv(),
		MaxQueryTerms:               32,
		RetryMaxAttempts:            3,
		RetryBaseDelay:              100 * time.Millisecond,
		RetryMaxDelay:               5 * time.Second,
	}
}

// Option mutates a Config in place; used with Apply to compose
// overrides from flags, env, or callers.
type Option func(*Config)

// Apply runs each Option over cfg in order.
func Apply(cfg Config, opts ...Option) Config {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithDataDir(dir string) Option {
	return func(c *Config) { c.DataDir = dir }
}

func WithCacheCapacity(n int) Option {
	return func(c *Config) { c.CacheCapacity = n }
}

func WithBinaryIndex(enabled bool) Option {
	return func(c *Config) { c.UseBinaryIndex = enabled }
}

func WithAggressiveTrigramThresholds(enabled bool) Option {
	return func(c *Config) { c.AggressiveTrigramThresholds = enabled }
}

func WithStrictSanitization(enabled bool) Option {
	return func(c *Config) { c.StrictSanitization = enabled }
}

func WithMaxQueryTerms(n int) Option {
	return func(c *Config) { c.MaxQueryTerms = n }
}

func WithRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Config) {
		c.RetryMaxAttempts = maxAttempts
		c.RetryBaseDelay = baseDelay
		c.RetryMaxDelay = maxDelay
	}
}

// ciModeFromEnv detects CI the same way the teacher's buffered-flusher
// gate does: CI or GITHUB_ACTIONS set to any non-empty value.
func ciModeFromEnv() bool {
	return os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != ""
}

// FromEnv layers KOTADB_-prefixed environment variables over base.
// Unset variables leave base's fields untouched. Malformed numeric or
// duration values are ignored rather than rejected, matching the
// teacher's own tolerant flag-parsing style (GetString/GetBool ignore
// the error return and fall back to the flag default).
func FromEnv(base Config) Config {
	cfg := base
	if v, ok := os.LookupEnv("KOTADB_DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := envInt("KOTADB_CACHE_CAPACITY"); ok {
		cfg.CacheCapacity = v
	}
	if v, ok := envBool("KOTADB_USE_BINARY_INDEX"); ok {
		cfg.UseBinaryIndex = v
	}
	if v, ok := envBool("KOTADB_AGGRESSIVE_TRIGRAM_THRESHOLDS"); ok {
		cfg.AggressiveTrigramThresholds = v
	}
	if v, ok := envBool("KOTADB_STRICT_SANITIZATION"); ok {
		cfg.StrictSanitization = v
	}
	cfg.CIMode = ciModeFromEnv()
	if v, ok := envInt("KOTADB_MAX_QUERY_TERMS"); ok {
		cfg.MaxQueryTerms = v
	}
	if v, ok := envInt("KOTADB_RETRY_MAX_ATTEMPTS"); ok {
		cfg.RetryMaxAttempts = v
	}
	if v, ok := envDuration("KOTADB_RETRY_BASE_DELAY"); ok {
		cfg.RetryBaseDelay = v
	}
	if v, ok := envDuration("KOTADB_RETRY_MAX_DELAY"); ok {
		cfg.RetryMaxDelay = v
	}
	return cfg
}

// LoadYAML reads a YAML config file and layers its fields over base.
// Fields absent from the file keep base's value, since zero-valued
// fields in the decoded struct are indistinguishable from "not set" —
// callers that need per-field detection should decode into a
// base-seeded copy, which is exactly what this does.
func LoadYAML(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}
	cfg.CIMode = ciModeFromEnv()
	return cfg, nil
}

func envInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// PerfThresholds are the floors performance-sanity tests assert
// against. They are overridable via KOTADB_LOCK_*/KOTADB_WRITE_* env
// vars so the same test suite stays green on slower, shared CI
// hardware instead of needing a separate "slow CI" test tag.
type PerfThresholds struct {
	LockReadAvgMillis   float64
	LockWriteAvgMillis  float64
	WriteP95Millis      float64
	WriteP99Millis      float64
	WriteStdDevMillis   float64
	WriteOutlierPercent float64
	LockEfficiencyMin   float64
}

// DefaultPerfThresholds are conservative floors suitable for a
// developer laptop or an uncontended CI runner.
var DefaultPerfThresholds = PerfThresholds{
	LockReadAvgMillis:   5,
	LockWriteAvgMillis:  10,
	WriteP95Millis:      25,
	WriteP99Millis:      50,
	WriteStdDevMillis:   15,
	WriteOutlierPercent: 5,
	LockEfficiencyMin:   0.8,
}

// PerfThresholdsFromEnv layers KOTADB_LOCK_*/KOTADB_WRITE_* overrides
// over DefaultPerfThresholds.
func PerfThresholdsFromEnv() PerfThresholds {
	t := DefaultPerfThresholds
	if v, ok := envFloat("KOTADB_LOCK_READ_AVG_MS"); ok {
		t.LockReadAvgMillis = v
	}
	if v, ok := envFloat("KOTADB_LOCK_WRITE_AVG_MS"); ok {
		t.LockWriteAvgMillis = v
	}
	if v, ok := envFloat("KOTADB_WRITE_P95_MS"); ok {
		t.WriteP95Millis = v
	}
	if v, ok := envFloat("KOTADB_WRITE_P99_MS"); ok {
		t.WriteP99Millis = v
	}
	if v, ok := envFloat("KOTADB_WRITE_STDDEV_MS"); ok {
		t.WriteStdDevMillis = v
	}
	if v, ok := envFloat("KOTADB_WRITE_OUTLIER_PCT"); ok {
		t.WriteOutlierPercent = v
	}
	if v, ok := envFloat("KOTADB_LOCK_EFFICIENCY_MIN"); ok {
		t.LockEfficiencyMin = v
	}
	return t
}

func envFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envDuration(key string) (time.Duration, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
