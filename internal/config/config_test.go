package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestYAMLAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	data := []byte("" +
		"models: /etc/keitaidump/models.csv\n" +
		"output: /srv/out\n" +
		"workers: 3\n" +
		"logging:\n  level: debug\n")
	if err := os.WriteFile(cfgPath, data, 0o600); err != nil {
		t.Fatal(err)
	}

	// baseline from file
	cfg := Load(cfgPath)
	if cfg.ModelsPath != "/etc/keitaidump/models.csv" {
		t.Fatalf("models from yaml: %s", cfg.ModelsPath)
	}
	if cfg.OutputDir != "/srv/out" {
		t.Fatalf("output from yaml: %s", cfg.OutputDir)
	}
	if cfg.Workers != 3 {
		t.Fatalf("workers from yaml: %d", cfg.Workers)
	}
	if cfg.LogLevel != zerolog.DebugLevel {
		t.Fatalf("loglevel from yaml: %s", cfg.LogLevel)
	}

	// env overrides file
	t.Setenv("KDX_MODELS", "/tmp/other.csv")
	t.Setenv("KDX_OUTPUT", "/tmp/out")
	t.Setenv("KDX_WORKERS", "8")
	t.Setenv("KDX_LOG", "warn")
	cfg = Load(cfgPath)
	if cfg.ModelsPath != "/tmp/other.csv" || cfg.OutputDir != "/tmp/out" || cfg.Workers != 8 {
		t.Fatalf("env overrides: %+v", cfg)
	}
	if cfg.LogLevel != zerolog.WarnLevel {
		t.Fatalf("loglevel from env: %s", cfg.LogLevel)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg.ModelsPath != "" || cfg.OutputDir != "" || cfg.Workers != 0 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.LogLevel != zerolog.InfoLevel {
		t.Fatalf("default level: %s", cfg.LogLevel)
	}
}

func TestLoadIgnoresMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("models: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := Load(path)
	if cfg.LogLevel != zerolog.InfoLevel || cfg.ModelsPath != "" {
		t.Fatalf("malformed file changed config: %+v", cfg)
	}
}
