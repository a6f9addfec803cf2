package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	if cfg.DataDir == "" {
		t.Error("DataDir should have a default")
	}
	if cfg.RetryMaxAttempts <= 0 {
		t.Error("RetryMaxAttempts should default to a positive value")
	}
}

func TestApplyOptionsOverrideFields(t *testing.T) {
	cfg := Apply(Default(),
		WithDataDir("/tmp/kotadb"),
		WithCacheCapacity(42),
		WithBinaryIndex(true),
		WithAggressiveTrigramThresholds(true),
		WithStrictSanitization(true),
		WithMaxQueryTerms(8),
		WithRetryPolicy(5, time.Millisecond, time.Second),
	)
	if cfg.DataDir != "/tmp/kotadb" {
		t.Errorf("DataDir = %q, want /tmp/kotadb", cfg.DataDir)
	}
	if cfg.CacheCapacity != 42 {
		t.Errorf("CacheCapacity = %d, want 42", cfg.CacheCapacity)
	}
	if !cfg.UseBinaryIndex || !cfg.AggressiveTrigramThresholds || !cfg.StrictSanitization {
		t.Error("boolean options did not apply")
	}
	if cfg.MaxQueryTerms != 8 {
		t.Errorf("MaxQueryTerms = %d, want 8", cfg.MaxQueryTerms)
	}
	if cfg.RetryMaxAttempts != 5 || cfg.RetryBaseDelay != time.Millisecond || cfg.RetryMaxDelay != time.Second {
		t.Error("retry policy option did not apply")
	}
}

func TestFromEnvOverridesBaseFields(t *testing.T) {
	t.Setenv("KOTADB_DATA_DIR", "/var/kotadb")
	t.Setenv("KOTADB_CACHE_CAPACITY", "256")
	t.Setenv("KOTADB_USE_BINARY_INDEX", "true")

	cfg := FromEnv(Default())
	if cfg.DataDir != "/var/kotadb" {
		t.Errorf("DataDir = %q, want /var/kotadb", cfg.DataDir)
	}
	if cfg.CacheCapacity != 256 {
		t.Errorf("CacheCapacity = %d, want 256", cfg.CacheCapacity)
	}
	if !cfg.UseBinaryIndex {
		t.Error("UseBinaryIndex should be true from env")
	}
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("KOTADB_CACHE_CAPACITY", "not-a-number")
	base := Default()
	cfg := FromEnv(base)
	if cfg.CacheCapacity != base.CacheCapacity {
		t.Errorf("CacheCapacity = %d, want unchanged %d", cfg.CacheCapacity, base.CacheCapacity)
	}
}

func TestCIModeDetectedFromEnv(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("GITHUB_ACTIONS", "")
	cfg := FromEnv(Default())
	if !cfg.CIMode {
		t.Error("CIMode should be true when CI=true")
	}
}

func TestLoadYAMLOverridesBaseFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kotadb.yaml")
	content := "data_dir: /srv/kotadb\ncache_capacity: 512\nuse_binary_index: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAML(path, Default())
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if cfg.DataDir != "/srv/kotadb" {
		t.Errorf("DataDir = %q, want /srv/kotadb", cfg.DataDir)
	}
	if cfg.CacheCapacity != 512 {
		t.Errorf("CacheCapacity = %d, want 512", cfg.CacheCapacity)
	}
	if !cfg.UseBinaryIndex {
		t.Error("UseBinaryIndex should be true from YAML")
	}
	if cfg.RetryMaxAttempts != Default().RetryMaxAttempts {
		t.Errorf("RetryMaxAttempts should keep base value when absent from YAML")
	}
}

func TestLoadYAMLMissingFileErrors(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "missing.yaml"), Default()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPerfThresholdsFromEnvOverrides(t *testing.T) {
	t.Setenv("KOTADB_WRITE_P95_MS", "100")
	th := PerfThresholdsFromEnv()
	if th.WriteP95Millis != 100 {
		t.Errorf("WriteP95Millis = %v, want 100", th.WriteP95Millis)
	}
	if th.WriteP99Millis != DefaultPerfThresholds.WriteP99Millis {
		t.Errorf("WriteP99Millis should remain default when unset")
	}
}
