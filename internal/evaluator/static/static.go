// Package static provides fixed-outcome evaluators for tests and local
// runs without an external evaluator backend.
package static

import (
	"context"
	"sync/atomic"

	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/evaluator"
)

// Fast always returns the configured result (or the configured error).
// Calls counts invocations so tests can assert short-circuit behavior.
type Fast struct {
	Result evaluator.PrefilterResult
	Err    error
	Calls  atomic.Int64
}

var _ evaluator.Fast = (*Fast)(nil)

// Pass returns a fast evaluator that clears everything with zero risk.
func Pass() *Fast {
	return &Fast{Result: evaluator.PrefilterResult{Pass: true}}
}

func (f *Fast) Evaluate(ctx context.Context, input string) (evaluator.PrefilterResult, error) {
	f.Calls.Add(1)
	if f.Err != nil {
		return evaluator.PrefilterResult{}, f.Err
	}
	return f.Result, nil
}

// Deep always returns the configured decision (or the configured error).
type Deep struct {
	Decision *domain.SafetyDecision
	Err      error
	Calls    atomic.Int64
}

var _ evaluator.Deep = (*Deep)(nil)

// Approve returns a deep evaluator that approves everything.
func Approve() *Deep {
	return &Deep{Decision: &domain.SafetyDecision{
		SafetyScore: 1.0,
		Action:      domain.ActionApprove,
		Confidence:  1.0,
		Reasoning:   "static evaluator approves all input",
	}}
}

func (d *Deep) Evaluate(ctx context.Context, input string, policy evaluator.PolicyContext) (*domain.SafetyDecision, error) {
	d.Calls.Add(1)
	if d.Err != nil {
		return nil, d.Err
	}
	out := *d.Decision
	return &out, nil
}
