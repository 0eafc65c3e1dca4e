package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cognicore/ethnoscan/pkg/ethnoscan/internalerr"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Window != 3 || cfg.OutputDir != "output" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte("window: 1\ncache:\n  backend: memory\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Window != 1 || cfg.Cache.Backend != "memory" {
		t.Fatalf("file values not applied: %+v", cfg)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetIf(t *testing.T) {
	v := "keep"
	setIf(&v, "")
	if v != "keep" {
		t.Fatalf("empty override replaced value: %q", v)
	}
	setIf(&v, "new")
	if v != "new" {
		t.Fatalf("override not applied: %q", v)
	}
}
