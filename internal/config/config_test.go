package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	prev := GlConfig
	t.Cleanup(func() { GlConfig = prev })

	path := writeConfig(t, "workers: 8\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers=8, got %d", cfg.Workers)
	}
	if cfg.WorkDir != "builds" {
		t.Errorf("expected default workDir, got %q", cfg.WorkDir)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level, got %q", cfg.Logging.Level)
	}
	if GlConfig != cfg {
		t.Error("expected Load to publish the loaded config globally")
	}
}

func TestLoadFullConfig(t *testing.T) {
	prev := GlConfig
	t.Cleanup(func() { GlConfig = prev })

	path := writeConfig(t, `workDir: /tmp/work
cacheDir: /tmp/cache
outputDir: /tmp/out
workers: 2
logging:
  level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.CacheDir != "/tmp/cache" || cfg.OutputDir != "/tmp/out" {
		t.Errorf("unexpected directories: %+v", cfg)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	prev := GlConfig
	t.Cleanup(func() { GlConfig = prev })

	path := writeConfig(t, "bogusKey: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected schema validation error for unknown key")
	}
}

func TestLoadRejectsBadLevel(t *testing.T) {
	prev := GlConfig
	t.Cleanup(func() { GlConfig = prev })

	path := writeConfig(t, "logging:\n  level: loud\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected schema validation error for bad log level")
	}
}

func TestLoadRejectsZeroWorkers(t *testing.T) {
	prev := GlConfig
	t.Cleanup(func() { GlConfig = prev })

	path := writeConfig(t, "workers: 0\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected schema validation error for workers below minimum")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestCreateDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &GlobalConfig{
		WorkDir:   filepath.Join(base, "w"),
		CacheDir:  filepath.Join(base, "c"),
		OutputDir: filepath.Join(base, "o"),
		Workers:   1,
	}
	if err := cfg.CreateDirs(); err != nil {
		t.Fatalf("CreateDirs failed: %v", err)
	}
	for _, dir := range []string{cfg.WorkDir, cfg.CacheDir, cfg.OutputDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected %s to exist: %v", dir, err)
		}
	}
	// Second run is a no-op.
	if err := cfg.CreateDirs(); err != nil {
		t.Fatalf("CreateDirs second run failed: %v", err)
	}
}
