package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoad_AppliesEngineDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
default_provider = "zen"

[providers.zen]
endpoint = "https://opencode.ai/zen/v1"
model = "claude-sonnet-4"
temperature = 0.2
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.MaxIterations != 10 || cfg.Engine.MaxRetryAttempts != 5 {
		t.Errorf("engine defaults = %+v", cfg.Engine)
	}
}

func TestLoad_RejectsMissingProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("default_provider = \"zen\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for empty providers")
	}
}

func TestLoad_RejectsBadEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	toml := `
[providers.zen]
endpoint = "not-a-url"
model = "claude-sonnet-4"
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for invalid endpoint")
	}
}

func TestEngineConfig_WithDefaultsIdempotent(t *testing.T) {
	var cfg EngineConfig
	cfg = cfg.WithDefaults()
	again := cfg.WithDefaults()
	if !reflect.DeepEqual(cfg, again) {
		t.Errorf("WithDefaults not idempotent: %+v vs %+v", cfg, again)
	}
}
