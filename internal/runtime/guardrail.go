// Package runtime assembles the guardrail pipeline and manages its
// lifecycle. Guardrail can be embedded in larger applications or run
// standalone from cmd/guardrail.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/primebank/guardrail/internal/api"
	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/auth"
	"github.com/primebank/guardrail/internal/catalog"
	"github.com/primebank/guardrail/internal/config"
	"github.com/primebank/guardrail/internal/dispatch"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/engine"
	"github.com/primebank/guardrail/internal/evaluator"
	"github.com/primebank/guardrail/internal/evaluator/keyword"
	"github.com/primebank/guardrail/internal/evaluator/static"
	"github.com/primebank/guardrail/internal/evaluator/webhook"
	"github.com/primebank/guardrail/internal/rbac"
	"github.com/primebank/guardrail/internal/server"
	"github.com/primebank/guardrail/internal/storage/sqlite"
	"github.com/primebank/guardrail/internal/ticket"
)

// Guardrail wires the evaluators, engine, dispatcher, access-control gate,
// ticket service, and HTTP server into one runnable unit.
type Guardrail struct {
	cfg    *config.Config
	logger *slog.Logger

	// Pluggable pieces (overridable via options).
	db      *sqlite.DB
	log     audit.Log
	tickets ticket.Store
	fast    evaluator.Fast
	deep    evaluator.Deep

	server *server.Server
	mu     sync.Mutex
}

// New creates a Guardrail with the given options. Without options it loads
// configuration from the environment, opens the configured SQLite store,
// runs the keyword prefilter, and escalates everything the deep stage
// would have decided when no webhook evaluator is configured.
func New(opts ...Option) (*Guardrail, error) {
	g := &Guardrail{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if g.cfg == nil {
		cfg, err := config.Load("")
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
	}

	if g.log == nil || g.tickets == nil {
		if err := g.initStorage(); err != nil {
			return nil, err
		}
	}
	if g.fast == nil {
		fast, err := keyword.New(keyword.DefaultPatterns, g.cfg.Policy.MediumRisk)
		if err != nil {
			return nil, fmt.Errorf("create keyword prefilter: %w", err)
		}
		g.fast = fast
	}
	if g.deep == nil {
		deep, err := g.defaultDeep()
		if err != nil {
			return nil, err
		}
		g.deep = deep
	}

	return g, nil
}

func (g *Guardrail) initStorage() error {
	switch g.cfg.Storage.Type {
	case "", "sqlite":
		db, err := sqlite.Open(g.cfg.Storage.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open sqlite storage: %w", err)
		}
		g.db = db
		if g.log == nil {
			g.log = db.AuditLog()
		}
		if g.tickets == nil {
			g.tickets = db.TicketStore()
		}
	case "memory":
		if g.log == nil {
			g.log = audit.NewMemoryLog()
		}
		if g.tickets == nil {
			g.tickets = ticket.NewMemoryStore()
		}
	default:
		return fmt.Errorf("unknown storage type %q", g.cfg.Storage.Type)
	}
	return nil
}

func (g *Guardrail) defaultDeep() (evaluator.Deep, error) {
	if url := g.cfg.Evaluator.Webhook.URL; url != "" {
		return webhook.New(webhook.Config{
			URL:     url,
			Timeout: parseDuration(g.cfg.Evaluator.Webhook.Timeout, 0),
		})
	}

	// No evaluator backend configured: never approve on our own authority.
	g.logger.Warn("no deep evaluator configured, escalating all requests")
	return &static.Deep{Decision: &domain.SafetyDecision{
		Action:     domain.ActionEscalate,
		Confidence: 0.0,
		Reasoning:  "no policy evaluator configured; escalating for human review",
	}}, nil
}

// Start assembles the pipeline and begins serving. It blocks until the
// listener stops, so callers typically run it in a goroutine and drive
// Shutdown from signal handling.
func (g *Guardrail) Start(ctx context.Context) error {
	g.mu.Lock()

	gate := rbac.NewGate(g.log, g.logger)
	grants := dispatch.NewGrants()
	dispatcher := dispatch.New(g.tickets, grants, g.log, g.logger)
	svc := ticket.NewService(g.tickets, gate, g.log, g.logger)
	cat := catalog.New()

	eng, err := engine.New(engine.Config{
		Fast:   g.fast,
		Deep:   g.deep,
		Log:    g.log,
		Logger: g.logger,
		Policy: evaluator.PolicyContext{
			Mode:       g.cfg.Policy.Mode,
			HighRisk:   g.cfg.Policy.HighRisk,
			MediumRisk: g.cfg.Policy.MediumRisk,
		},
		FastTimeout: parseDuration(g.cfg.Evaluator.FastTimeout, engine.DefaultFastTimeout),
		DeepTimeout: parseDuration(g.cfg.Evaluator.DeepTimeout, engine.DefaultDeepTimeout),
	})
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("create engine: %w", err)
	}

	var authenticator *auth.Authenticator
	if len(g.cfg.Actors) > 0 {
		authenticator = auth.NewAuthenticator(g.cfg.Actors)
	} else {
		g.logger.Warn("no actors configured, all requests will be rejected")
		authenticator = auth.NewAuthenticator(nil)
	}

	srv := server.New(g.cfg.Server.Port,
		parseDuration(g.cfg.Server.RequestTimeout, 30*time.Second),
		g.logger, authenticator)
	api.New(eng, dispatcher, grants, gate, svc, g.log, cat, g.logger).Routes(srv.Router)
	g.server = srv

	g.logger.Info("guardrail started",
		slog.Int("port", g.cfg.Server.Port),
		slog.String("storage", g.cfg.Storage.Type),
		slog.Int("actors", len(g.cfg.Actors)),
	)

	g.mu.Unlock()
	return srv.Start()
}

// Shutdown drains the HTTP server and closes storage.
func (g *Guardrail) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down guardrail")

	if g.server != nil {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("server shutdown failed", slog.String("error", err.Error()))
			return err
		}
	}
	if g.db != nil {
		if err := g.db.Close(); err != nil {
			g.logger.Error("storage close failed", slog.String("error", err.Error()))
		}
	}

	g.logger.Info("guardrail shutdown complete")
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
