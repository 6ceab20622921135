package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config but with pointer fields so we can tell
// "unset in file" apart from an explicit zero.
type fileConfig struct {
	ModelURL  *string `json:"model_url" yaml:"model_url" toml:"model_url"`
	ModelDir  *string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	ModelFile *string `json:"model_file" yaml:"model_file" toml:"model_file"`

	Host *string `json:"host" yaml:"host" toml:"host"`
	Port *int    `json:"port" yaml:"port" toml:"port"`

	MaxTokens   *int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature *float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	CtxSize     *int     `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads     *int     `json:"threads" yaml:"threads" toml:"threads"`
	Preload     *bool    `json:"preload" yaml:"preload" toml:"preload"`

	DownloadAttempts *int    `json:"download_attempts" yaml:"download_attempts" toml:"download_attempts"`
	DownloadDelay    *string `json:"download_delay" yaml:"download_delay" toml:"download_delay"`

	LogLevel *string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// LoadFile reads a configuration file based on its extension and applies the
// values it sets onto cfg. Callers load the file over the defaults first and
// resolve the environment on top, so env always wins over file.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string, cfg Config) (Config, error) {
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &fc); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return fc.apply(cfg)
}

func (fc fileConfig) apply(cfg Config) (Config, error) {
	if fc.ModelURL != nil {
		cfg.ModelURL = *fc.ModelURL
	}
	if fc.ModelDir != nil {
		cfg.ModelDir = *fc.ModelDir
	}
	if fc.ModelFile != nil {
		cfg.ModelFile = *fc.ModelFile
	}
	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.MaxTokens != nil {
		cfg.MaxTokens = *fc.MaxTokens
	}
	if fc.Temperature != nil {
		cfg.Temperature = *fc.Temperature
	}
	if fc.CtxSize != nil {
		cfg.CtxSize = *fc.CtxSize
	}
	if fc.Threads != nil {
		cfg.Threads = *fc.Threads
	}
	if fc.Preload != nil {
		cfg.Preload = *fc.Preload
	}
	if fc.DownloadAttempts != nil {
		cfg.DownloadAttempts = *fc.DownloadAttempts
	}
	if fc.DownloadDelay != nil {
		d, err := time.ParseDuration(*fc.DownloadDelay)
		if err != nil {
			return cfg, fmt.Errorf("download_delay: %w", err)
		}
		cfg.DownloadDelay = d
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	return cfg, nil
}
