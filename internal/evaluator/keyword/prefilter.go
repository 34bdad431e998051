// Package keyword provides a fast, in-process pre-filter backed by a
// compiled pattern list. It stands in for a lightweight ML classifier: each
// matching pattern contributes a risk weight, and the input passes only if
// the accumulated risk stays under the threshold.
package keyword

import (
	"context"
	"regexp"

	"github.com/primebank/guardrail/internal/evaluator"
)

// Pattern pairs a regular expression with the risk it contributes when the
// input matches.
type Pattern struct {
	Expr string
	Risk float64
}

// DefaultPatterns covers the obviously-bad inputs the fast stage exists to
// stop before the expensive deep stage runs.
var DefaultPatterns = []Pattern{
	{Expr: `(?i)ignore (all )?(previous|prior) instructions`, Risk: 1.0},
	{Expr: `(?i)you are now (dan|developer mode)`, Risk: 1.0},
	{Expr: `(?i)disregard your (system )?prompt`, Risk: 1.0},
	{Expr: `(?i)(launder|laundering) money`, Risk: 0.9},
	{Expr: `(?i)bypass (the )?(fraud|security) (check|controls?)`, Risk: 0.9},
	{Expr: `(?i)steal (an? )?(identity|credentials|account)`, Risk: 0.8},
}

type compiled struct {
	re   *regexp.Regexp
	risk float64
}

// Prefilter implements evaluator.Fast over a pattern list.
type Prefilter struct {
	patterns  []compiled
	threshold float64
}

var _ evaluator.Fast = (*Prefilter)(nil)

// New compiles the pattern list. Inputs whose accumulated risk reaches
// threshold fail the filter. A zero threshold means any match fails.
func New(patterns []Pattern, threshold float64) (*Prefilter, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	if threshold <= 0 {
		threshold = 0.5
	}

	p := &Prefilter{threshold: threshold}
	for _, pat := range patterns {
		re, err := regexp.Compile(pat.Expr)
		if err != nil {
			return nil, err
		}
		p.patterns = append(p.patterns, compiled{re: re, risk: pat.Risk})
	}
	return p, nil
}

// Evaluate scores the input against all patterns. The risk score is the
// highest single pattern risk; that keeps scores in 0..1 without a
// normalization pass.
func (p *Prefilter) Evaluate(ctx context.Context, input string) (evaluator.PrefilterResult, error) {
	if err := ctx.Err(); err != nil {
		return evaluator.PrefilterResult{}, err
	}

	var risk float64
	for _, pat := range p.patterns {
		if pat.re.MatchString(input) && pat.risk > risk {
			risk = pat.risk
		}
	}

	return evaluator.PrefilterResult{
		Pass:      risk < p.threshold,
		RiskScore: risk,
	}, nil
}
