package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"inferd/internal/config"
	"inferd/internal/fetch"
	"inferd/internal/httpapi"
	"inferd/internal/runtime"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "inferd",
		Short:         "Single-model GGUF inference server",
		Long:          "inferd downloads a quantized GGUF model (if absent) and serves text generation over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newFetchCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// resolveConfig layers defaults < config file < environment < flags.
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		cfg, err = config.LoadFile(path, cfg)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	cfg = config.ApplyEnv(cfg)
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("model-url") {
		cfg.ModelURL, _ = cmd.Flags().GetString("model-url")
	}
	if cmd.Flags().Changed("model-dir") {
		cfg.ModelDir, _ = cmd.Flags().GetString("model-dir")
	}
	if cmd.Flags().Changed("model-file") {
		cfg.ModelFile, _ = cmd.Flags().GetString("model-file")
	}
	if cmd.Flags().Changed("preload") {
		cfg.Preload, _ = cmd.Flags().GetBool("preload")
	}
	return cfg, nil
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "Optional config file (.yaml/.json/.toml); env vars override it")
	cmd.Flags().String("model-url", "", "Source URL of the GGUF file (defaults MODEL_URL)")
	cmd.Flags().String("model-dir", config.DefaultModelDir, "Storage directory (defaults MODEL_DIR)")
	cmd.Flags().String("model-file", config.DefaultModelFile, "Filename under the model directory (defaults MODEL_FILE)")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().Logger()
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Ensure the model file is present, then serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)

			modelPath, err := cfg.ModelPath()
			if err != nil {
				return err
			}
			fetcher := fetch.New(nil, fetch.Policy{
				Attempts: cfg.DownloadAttempts,
				Delay:    cfg.DownloadDelay,
			}, log)
			// Fail fast: the server never starts without the model file.
			if err := fetcher.Ensure(cmd.Context(), cfg.ModelURL, modelPath); err != nil {
				return err
			}

			rt, err := runtime.New(cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			httpapi.SetBaseContext(baseCtx)
			httpapi.SetLogger(log)
			if v := os.Getenv("INFERD_MAX_BODY_BYTES"); v != "" {
				if n, err := strconv.ParseInt(v, 10, 64); err == nil {
					httpapi.SetMaxBodyBytes(n)
				}
			}
			if origins := splitCSV(os.Getenv("INFERD_CORS_ORIGINS")); len(origins) > 0 {
				httpapi.SetCORSOptions(true, origins,
					splitCSV(os.Getenv("INFERD_CORS_METHODS")),
					splitCSV(os.Getenv("INFERD_CORS_HEADERS")))
			}

			if cfg.Preload {
				rt.Preload(baseCtx)
			}

			mux := httpapi.NewMux(rt)
			srv := &http.Server{Addr: cfg.Addr(), Handler: mux}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr()).Str("model", modelPath).Msg("inferd listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			// Graceful shutdown (Ctrl+C / SIGTERM)
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-stop:
				log.Info().Str("signal", sig.String()).Msg("shutting down")
			}
			cancelBase()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				log.Error().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().String("host", "", "Bind address (defaults HOST, empty = all interfaces)")
	cmd.Flags().Int("port", config.DefaultPort, "HTTP listen port (defaults PORT)")
	cmd.Flags().Bool("preload", false, "Eagerly load the model at startup instead of on first request")
	addModelFlags(cmd)
	return cmd
}

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the model file if absent, then exit",
		Long:  "Runs only the idempotent download step. Useful for prewarming a deployment image.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log := newLogger(cfg.LogLevel)
			modelPath, err := cfg.ModelPath()
			if err != nil {
				return err
			}
			fetcher := fetch.New(nil, fetch.Policy{
				Attempts: cfg.DownloadAttempts,
				Delay:    cfg.DownloadDelay,
			}, log)
			return fetcher.Ensure(cmd.Context(), cfg.ModelURL, modelPath)
		},
	}
	addModelFlags(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("inferd %s (%s)\n", version, commit)
		},
	}
}

// splitCSV splits a comma-separated list, trimming whitespace and dropping
// empty items. Returns nil for an empty input.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
