package config

import (
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config carries tool-level settings. Precedence: defaults, then the YAML
// file, then KDX_* environment variables. CLI flags override all three at
// the command layer.
type Config struct {
	// ModelsPath points at an external model table CSV; empty means the
	// embedded table.
	ModelsPath string
	// OutputDir overrides the default output location next to the input.
	OutputDir string
	// Workers sizes the classification pool; 0 means NumCPU.
	Workers  int
	LogLevel zerolog.Level
}

type fileConfig struct {
	Models  string `yaml:"models"`
	Output  string `yaml:"output"`
	Workers int    `yaml:"workers"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Load reads configuration from path (missing or malformed files are
// ignored) and applies environment overrides.
func Load(path string) Config {
	cfg := Config{LogLevel: zerolog.InfoLevel}

	if b, err := os.ReadFile(path); err == nil {
		var fc fileConfig
		if yaml.Unmarshal(b, &fc) == nil {
			cfg.ModelsPath = fc.Models
			cfg.OutputDir = fc.Output
			if fc.Workers > 0 {
				cfg.Workers = fc.Workers
			}
			if l, err := zerolog.ParseLevel(fc.Logging.Level); err == nil && fc.Logging.Level != "" {
				cfg.LogLevel = l
			}
		}
	}

	if v := os.Getenv("KDX_MODELS"); v != "" {
		cfg.ModelsPath = v
	}
	if v := os.Getenv("KDX_OUTPUT"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("KDX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("KDX_LOG"); v != "" {
		if l, err := zerolog.ParseLevel(v); err == nil {
			cfg.LogLevel = l
		}
	}
	return cfg
}
