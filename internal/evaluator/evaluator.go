// Package evaluator defines the contracts for the two pluggable
// safety-scoring stages. The decision engine depends only on these
// interfaces; concrete backends (keyword prefilter, webhook, static) live
// in subpackages.
package evaluator

import (
	"context"

	"github.com/primebank/guardrail/internal/domain"
)

// PrefilterResult is the output of the fast stage. A non-passing result
// short-circuits the pipeline to a reject decision.
type PrefilterResult struct {
	Pass      bool    `json:"pass"`
	RiskScore float64 `json:"risk_score"`
}

// PolicyContext carries the active policy configuration into the deep
// stage.
type PolicyContext struct {
	Mode       string  `json:"mode"`
	HighRisk   float64 `json:"high_risk_threshold"`
	MediumRisk float64 `json:"medium_risk_threshold"`
}

// Fast is the cheap pre-filter contract. Implementations should honor the
// context deadline; the engine treats errors and timeouts as a failure to
// clear the input, never as a pass.
type Fast interface {
	Evaluate(ctx context.Context, input string) (PrefilterResult, error)
}

// Deep is the deep policy evaluator contract. The returned decision is a
// candidate only: the engine validates the action set and applies the
// fail-safe on errors, timeouts, and malformed output.
type Deep interface {
	Evaluate(ctx context.Context, input string, policy PolicyContext) (*domain.SafetyDecision, error)
}
