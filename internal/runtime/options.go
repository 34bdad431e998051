package runtime

import (
	"fmt"
	"log/slog"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/config"
	"github.com/primebank/guardrail/internal/evaluator"
	"github.com/primebank/guardrail/internal/storage/sqlite"
	"github.com/primebank/guardrail/internal/ticket"
)

// Option is a functional option for configuring a Guardrail.
type Option func(*Guardrail) error

// WithConfig uses an already-loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Guardrail) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfigFile loads configuration from a YAML file, with environment
// overrides applied on top.
func WithConfigFile(path string) Option {
	return func(g *Guardrail) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger used by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guardrail) error {
		if logger == nil {
			return fmt.Errorf("nil logger")
		}
		g.logger = logger
		return nil
	}
}

// WithSQLite stores the audit log and escalation tickets in SQLite at the
// given path, regardless of what the configuration says.
func WithSQLite(path string) Option {
	return func(g *Guardrail) error {
		db, err := sqlite.Open(path)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		g.db = db
		g.log = db.AuditLog()
		g.tickets = db.TicketStore()
		return nil
	}
}

// WithMemoryStores keeps the audit log and tickets in process memory.
// State is lost on restart; intended for tests and local experiments.
func WithMemoryStores() Option {
	return func(g *Guardrail) error {
		g.log = audit.NewMemoryLog()
		g.tickets = ticket.NewMemoryStore()
		return nil
	}
}

// WithFastEvaluator replaces the first-stage prefilter.
func WithFastEvaluator(fast evaluator.Fast) Option {
	return func(g *Guardrail) error {
		if fast == nil {
			return fmt.Errorf("nil fast evaluator")
		}
		g.fast = fast
		return nil
	}
}

// WithDeepEvaluator replaces the second-stage policy evaluator.
func WithDeepEvaluator(deep evaluator.Deep) Option {
	return func(g *Guardrail) error {
		if deep == nil {
			return fmt.Errorf("nil deep evaluator")
		}
		g.deep = deep
		return nil
	}
}
