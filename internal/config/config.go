// Package config loads guardrail configuration from an optional YAML file
// plus GUARDRAIL_-prefixed environment variables, env taking precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Evaluator EvaluatorConfig `koanf:"evaluator"`
	Policy    PolicyConfig    `koanf:"policy"`
	Actors    []ActorConfig   `koanf:"actors"`
}

type ServerConfig struct {
	Port           int    `koanf:"port"`
	RequestTimeout string `koanf:"request_timeout"` // duration string like "30s"
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type EvaluatorConfig struct {
	FastTimeout string        `koanf:"fast_timeout"`
	DeepTimeout string        `koanf:"deep_timeout"`
	Webhook     WebhookConfig `koanf:"webhook"`
}

// WebhookConfig points the deep stage at an external evaluator service.
// When URL is empty the runtime falls back to a static evaluator.
type WebhookConfig struct {
	URL     string `koanf:"url"`
	Timeout string `koanf:"timeout"`
}

type PolicyConfig struct {
	Mode       string  `koanf:"mode"`
	HighRisk   float64 `koanf:"high_risk_threshold"`
	MediumRisk float64 `koanf:"medium_risk_threshold"`
}

// ActorConfig declares one actor the API-key authenticator accepts.
type ActorConfig struct {
	ID      string `koanf:"id"`
	Name    string `koanf:"name"`
	Role    string `koanf:"role"`
	KeyHash string `koanf:"key_hash"` // sha256 hex of the API key
}

// Load reads configuration. path may be empty to skip the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Environment overrides: GUARDRAIL_SERVER__PORT -> server.port
	if err := k.Load(env.Provider("GUARDRAIL_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "GUARDRAIL_")
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	// Defaults
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/guardrail.db")
	}
	if !k.Exists("evaluator.fast_timeout") {
		k.Set("evaluator.fast_timeout", "200ms")
	}
	if !k.Exists("evaluator.deep_timeout") {
		k.Set("evaluator.deep_timeout", "5s")
	}
	if !k.Exists("policy.mode") {
		k.Set("policy.mode", "strict")
	}
	if !k.Exists("policy.high_risk_threshold") {
		k.Set("policy.high_risk_threshold", 0.8)
	}
	if !k.Exists("policy.medium_risk_threshold") {
		k.Set("policy.medium_risk_threshold", 0.5)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
