// Package engine runs the two-stage safety evaluation. A request moves
// through RECEIVED -> PREFILTERED -> EVALUATED -> DECIDED; no state is
// revisited and each request produces exactly one decision.
//
// The engine is deliberately fail-safe: any failure of the deep stage
// (transport error, timeout, action outside the known set) produces an
// escalate decision with zero confidence. It never falls back to approve.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/evaluator"
)

// State is a pipeline stage marker, recorded in audit details.
type State string

const (
	StateReceived    State = "RECEIVED"
	StatePrefiltered State = "PREFILTERED"
	StateEvaluated   State = "EVALUATED"
	StateDecided     State = "DECIDED"
)

// Default stage budgets. The fast stage is meant to be cheap; the deep
// stage may be a remote model call.
const (
	DefaultFastTimeout = 200 * time.Millisecond
	DefaultDeepTimeout = 5 * time.Second
)

// Config configures an Engine.
type Config struct {
	Fast        evaluator.Fast
	Deep        evaluator.Deep
	Log         audit.Log
	Logger      *slog.Logger
	Policy      evaluator.PolicyContext
	FastTimeout time.Duration
	DeepTimeout time.Duration
}

// Engine evaluates safety requests.
type Engine struct {
	fast        evaluator.Fast
	deep        evaluator.Deep
	log         audit.Log
	logger      *slog.Logger
	policy      evaluator.PolicyContext
	fastTimeout time.Duration
	deepTimeout time.Duration
}

// New creates an engine. Fast, Deep, and Log are required.
func New(cfg Config) (*Engine, error) {
	if cfg.Fast == nil || cfg.Deep == nil {
		return nil, fmt.Errorf("engine requires both fast and deep evaluators")
	}
	if cfg.Log == nil {
		return nil, fmt.Errorf("engine requires an audit log")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FastTimeout <= 0 {
		cfg.FastTimeout = DefaultFastTimeout
	}
	if cfg.DeepTimeout <= 0 {
		cfg.DeepTimeout = DefaultDeepTimeout
	}

	return &Engine{
		fast:        cfg.Fast,
		deep:        cfg.Deep,
		log:         cfg.Log,
		logger:      cfg.Logger,
		policy:      cfg.Policy,
		fastTimeout: cfg.FastTimeout,
		deepTimeout: cfg.DeepTimeout,
	}, nil
}

// Evaluate runs both stages and returns the single decision for the
// request. The decision is audited before it is returned; an audit append
// failure fails the whole evaluation, because the system must never act on
// a decision it cannot account for.
func (e *Engine) Evaluate(ctx context.Context, req *domain.SafetyRequest) (*domain.SafetyDecision, error) {
	decision, err := e.run(ctx, req)
	if err != nil {
		return nil, err
	}

	entry := domain.AuditEntry{
		EventType: audit.EventDecision,
		ActorID:   req.ActorID,
		Action:    string(decision.Action),
		Details: map[string]any{
			"request_id":   req.ID,
			"state":        string(StateDecided),
			"safety_score": decision.SafetyScore,
			"confidence":   decision.Confidence,
		},
		Success: true,
	}
	if _, err := e.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	e.logger.Info("decision made",
		slog.String("request_id", req.ID),
		slog.String("action", string(decision.Action)),
		slog.Float64("confidence", decision.Confidence),
	)
	return decision, nil
}

func (e *Engine) run(ctx context.Context, req *domain.SafetyRequest) (*domain.SafetyDecision, error) {
	// Stage 1: fast pre-filter under a short budget.
	fastCtx, cancel := context.WithTimeout(ctx, e.fastTimeout)
	pre, preErr := e.fast.Evaluate(fastCtx, req.RawInput)
	cancel()

	entry := domain.AuditEntry{
		EventType: audit.EventPrefilterCheck,
		ActorID:   req.ActorID,
		Action:    "prefilter",
		Details: map[string]any{
			"request_id": req.ID,
			"state":      string(StatePrefiltered),
			"risk_score": pre.RiskScore,
			"pass":       pre.Pass,
		},
		Success: preErr == nil,
	}
	if preErr != nil {
		entry.Error = preErr.Error()
	}
	if _, err := e.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	if preErr != nil {
		// The input was not shown bad, the check was unavailable. Escalate
		// rather than reject, still with zero confidence.
		return failSafe(fmt.Sprintf("fast pre-filter unavailable: %v", preErr)), nil
	}

	if !pre.Pass {
		// Short-circuit: the deep evaluator is never invoked on a
		// pre-filter failure.
		return &domain.SafetyDecision{
			SafetyScore: clamp(1 - pre.RiskScore),
			Action:      domain.ActionReject,
			Confidence:  1.0,
			Reasoning:   fmt.Sprintf("input failed the fast pre-filter (risk %.2f)", pre.RiskScore),
		}, nil
	}

	// Stage 2: deep policy evaluation.
	deepCtx, cancel := context.WithTimeout(ctx, e.deepTimeout)
	candidate, deepErr := e.deep.Evaluate(deepCtx, req.RawInput, e.policy)
	cancel()

	if deepErr == nil && (candidate == nil || !candidate.Action.Known()) {
		got := domain.Action("")
		if candidate != nil {
			got = candidate.Action
		}
		deepErr = domain.ErrMalformedDecision(fmt.Sprintf("action %q outside the known set", got))
	}

	entry = domain.AuditEntry{
		EventType: audit.EventPolicyCheck,
		ActorID:   req.ActorID,
		Action:    "deep_policy",
		Details: map[string]any{
			"request_id": req.ID,
			"state":      string(StateEvaluated),
		},
		Success: deepErr == nil,
	}
	if deepErr == nil {
		entry.Details["action"] = string(candidate.Action)
		entry.Details["safety_score"] = candidate.SafetyScore
	} else {
		entry.Error = deepErr.Error()
	}
	if _, err := e.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	if deepErr != nil {
		return failSafe(fmt.Sprintf("deep policy evaluation failed: %v", deepErr)), nil
	}

	out := *candidate
	return &out, nil
}

// failSafe is the mandated recovery decision for any stage-2 failure mode.
func failSafe(reason string) *domain.SafetyDecision {
	return &domain.SafetyDecision{
		SafetyScore: 0,
		Action:      domain.ActionEscalate,
		Confidence:  0,
		Reasoning:   reason,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
