package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/primebank/guardrail/internal/config"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/evaluator"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Storage.Type = "memory"
	cfg.Server.Port = 0
	cfg.Policy.Mode = "strict"
	cfg.Policy.HighRisk = 0.8
	cfg.Policy.MediumRisk = 0.5
	return cfg
}

func TestNewWithMemoryStores(t *testing.T) {
	g, err := New(WithConfig(memoryConfig()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.log == nil || g.tickets == nil {
		t.Fatal("memory stores were not initialized")
	}
	if g.db != nil {
		t.Fatal("memory storage must not open a database")
	}
	if g.fast == nil || g.deep == nil {
		t.Fatal("default evaluators were not initialized")
	}
}

func TestNewUnknownStorageType(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Type = "etcd"
	if _, err := New(WithConfig(cfg)); err == nil {
		t.Fatal("expected error for unknown storage type")
	}
}

func TestNewConfigFileMissing(t *testing.T) {
	if _, err := New(WithConfigFile("/nonexistent/guardrail.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefaultDeepEscalates(t *testing.T) {
	// Without a webhook URL the deep stage must never approve on its own.
	g, err := New(WithConfig(memoryConfig()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	decision, err := g.deep.Evaluate(context.Background(), "anything",
		evaluator.PolicyContext{Mode: "strict"})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision.Action != domain.ActionEscalate {
		t.Errorf("action = %s, want escalate", decision.Action)
	}
	if decision.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", decision.Confidence)
	}
}

func TestWithMemoryStoresOverridesConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.Type = "sqlite" // would try to open a file without the override
	cfg.Storage.SQLite.Path = "/nonexistent/dir/guardrail.db"

	g, err := New(WithConfig(cfg), WithMemoryStores())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.db != nil {
		t.Fatal("explicit memory stores must win over configured sqlite")
	}
}

func TestParseDuration(t *testing.T) {
	if got := parseDuration("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("parseDuration(250ms) = %v", got)
	}
	if got := parseDuration("", time.Second); got != time.Second {
		t.Errorf("parseDuration(empty) = %v, want fallback", got)
	}
	if got := parseDuration("bogus", 2*time.Second); got != 2*time.Second {
		t.Errorf("parseDuration(bogus) = %v, want fallback", got)
	}
}
