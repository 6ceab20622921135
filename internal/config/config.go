package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"inferd/internal/common/fsutil"
)

// Defaults applied when the environment leaves a knob unset.
const (
	DefaultModelDir    = "/app/model"
	DefaultModelFile   = "model.gguf"
	DefaultPort        = 8080
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
	DefaultCtxSize     = 2048
	DefaultThreads     = 4

	DefaultDownloadAttempts = 5
	DefaultDownloadDelay    = 5 * time.Second
)

// Config holds runtime parameters for the service.
// Resolved once at process start; never mutated afterwards.
type Config struct {
	ModelURL  string `json:"model_url" yaml:"model_url" toml:"model_url"`
	ModelDir  string `json:"model_dir" yaml:"model_dir" toml:"model_dir"`
	ModelFile string `json:"model_file" yaml:"model_file" toml:"model_file"`

	Host string `json:"host" yaml:"host" toml:"host"`
	Port int    `json:"port" yaml:"port" toml:"port"`

	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	CtxSize     int     `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads     int     `json:"threads" yaml:"threads" toml:"threads"`
	Preload     bool    `json:"preload" yaml:"preload" toml:"preload"`

	DownloadAttempts int           `json:"download_attempts" yaml:"download_attempts" toml:"download_attempts"`
	DownloadDelay    time.Duration `json:"download_delay" yaml:"download_delay" toml:"download_delay"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns a Config with all documented defaults applied.
func Default() Config {
	return Config{
		ModelDir:         DefaultModelDir,
		ModelFile:        DefaultModelFile,
		Port:             DefaultPort,
		MaxTokens:        DefaultMaxTokens,
		Temperature:      DefaultTemperature,
		CtxSize:          DefaultCtxSize,
		Threads:          DefaultThreads,
		DownloadAttempts: DefaultDownloadAttempts,
		DownloadDelay:    DefaultDownloadDelay,
		LogLevel:         "info",
	}
}

// FromEnv resolves configuration from environment variables on top of the
// defaults. Malformed numeric values fall back to the default rather than
// aborting startup; only a missing MODEL_URL is fatal (checked in Validate).
func FromEnv() Config {
	return ApplyEnv(Default())
}

// ApplyEnv resolves environment variables on top of an existing Config,
// typically one already populated from a config file.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("MODEL_URL"); v != "" {
		cfg.ModelURL = v
	}
	if v := os.Getenv("MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}
	if v := os.Getenv("MODEL_FILE"); v != "" {
		cfg.ModelFile = v
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	cfg.Port = envInt("PORT", cfg.Port)
	cfg.MaxTokens = envInt("MAX_TOKENS", cfg.MaxTokens)
	cfg.Temperature = envFloat("TEMPERATURE", cfg.Temperature)
	cfg.CtxSize = envInt("INFERD_CTX_SIZE", cfg.CtxSize)
	cfg.Threads = envInt("INFERD_THREADS", cfg.Threads)
	cfg.Preload = envBool("INFERD_PRELOAD", cfg.Preload)
	cfg.DownloadAttempts = envInt("INFERD_DOWNLOAD_ATTEMPTS", cfg.DownloadAttempts)
	cfg.DownloadDelay = envDuration("INFERD_DOWNLOAD_DELAY", cfg.DownloadDelay)
	if v := os.Getenv("INFERD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

// Validate checks the resolved configuration. The source URL is the only
// required value; everything else has a documented default.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ModelURL) == "" {
		return fmt.Errorf("MODEL_URL is required: set it to the URL of the GGUF file to serve")
	}
	return nil
}

// Addr returns the host:port the HTTP listener binds to.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ModelPath returns the absolute target path of the model file,
// with a leading '~' in the directory expanded.
func (c Config) ModelPath() (string, error) {
	dir, err := fsutil.ExpandHome(c.ModelDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.ModelFile), nil
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
