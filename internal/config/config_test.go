package config

import (
	"path/filepath"
	"testing"
)

func TestWriteDefaultThenLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IPVC_CONFIG_HOME", dir)

	if err := WriteDefault(dir); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	if _, err := filepath.Abs(filepath.Join(dir, "config.toml")); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Fatalf("got backend %q, want sqlite", cfg.Backend)
	}
}

func TestEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("IPVC_CONFIG_HOME", dir)
	t.Setenv("IPVC_BACKEND", "libsql")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "libsql" {
		t.Fatalf("got backend %q, want libsql from env override", cfg.Backend)
	}
}

func TestWriteDefaultIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	if err := WriteDefault(dir); err != nil {
		t.Fatal(err)
	}
	if err := WriteDefault(dir); err != nil {
		t.Fatalf("second WriteDefault should be a no-op, got: %v", err)
	}
}
