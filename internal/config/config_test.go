package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("GUARDRAIL_SERVER__PORT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("storage type = %s, want sqlite", cfg.Storage.Type)
	}
	if cfg.Evaluator.FastTimeout != "200ms" {
		t.Errorf("fast timeout = %s, want 200ms", cfg.Evaluator.FastTimeout)
	}
	if cfg.Policy.HighRisk != 0.8 {
		t.Errorf("high risk threshold = %f, want 0.8", cfg.Policy.HighRisk)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	os.Setenv("GUARDRAIL_SERVER__PORT", "9000")
	defer os.Unsetenv("GUARDRAIL_SERVER__PORT")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
server:
  port: 7070
policy:
  mode: lenient
actors:
  - id: u1
    name: Alice Johnson
    role: USER
    key_hash: abc123
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Policy.Mode != "lenient" {
		t.Errorf("mode = %s, want lenient", cfg.Policy.Mode)
	}
	if len(cfg.Actors) != 1 || cfg.Actors[0].ID != "u1" {
		t.Errorf("actors = %+v, want one u1", cfg.Actors)
	}
	// Defaults still fill unset keys.
	if cfg.Evaluator.DeepTimeout != "5s" {
		t.Errorf("deep timeout = %s, want 5s", cfg.Evaluator.DeepTimeout)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() accepted a missing config file")
	}
}
