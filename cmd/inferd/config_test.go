package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveConfigLayering(t *testing.T) {
	d := t.TempDir()
	cfgPath := filepath.Join(d, "inferd.yaml")
	if err := os.WriteFile(cfgPath, []byte("model_url: from-file\nport: 7000\nmodel_dir: /from/file\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("MODEL_URL", "from-env")
	t.Setenv("MODEL_DIR", "")

	cmd := newServeCmd()
	if err := cmd.Flags().Set("config", cfgPath); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := cmd.Flags().Set("port", "7001"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// env beats file
	if cfg.ModelURL != "from-env" {
		t.Fatalf("model url=%q", cfg.ModelURL)
	}
	// flag beats env and file
	if cfg.Port != 7001 {
		t.Fatalf("port=%d", cfg.Port)
	}
	// file beats defaults when env is silent
	if cfg.ModelDir != "/from/file" {
		t.Fatalf("model dir=%q", cfg.ModelDir)
	}
}

func TestResolveConfigMissingURLFailsValidation(t *testing.T) {
	t.Setenv("MODEL_URL", "")
	cmd := newServeCmd()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error without MODEL_URL")
	}
}
