// Package webhook implements the deep policy evaluator contract over an
// external HTTP service. The service receives the raw input plus the active
// policy context and must answer with a safety-decision payload.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/evaluator"
)

// request is the wire payload POSTed to the evaluator endpoint.
type request struct {
	Input  string                  `json:"input"`
	Policy evaluator.PolicyContext `json:"policy"`
}

// response mirrors the evaluator's decision payload. The action is decoded
// as-is; the engine is responsible for rejecting unknown actions.
type response struct {
	SafetyScore   float64  `json:"safety_score"`
	Action        string   `json:"action"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	ViolatedRules []string `json:"violated_rules"`
	Params        struct {
		RewrittenText string `json:"rewritten_text"`
	} `json:"params"`
}

// Deep calls an external evaluator endpoint.
type Deep struct {
	url     string
	headers map[string]string
	client  *http.Client
}

var _ evaluator.Deep = (*Deep)(nil)

// Config configures a webhook evaluator.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// New creates a webhook-backed deep evaluator.
func New(cfg Config) (*Deep, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook evaluator URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Deep{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Evaluate POSTs the input and decodes the decision payload. Transport
// failures, non-200 statuses, and undecodable bodies all surface as
// evaluator errors for the engine's fail-safe path.
func (d *Deep) Evaluate(ctx context.Context, input string, policy evaluator.PolicyContext) (*domain.SafetyDecision, error) {
	body, err := json.Marshal(request{Input: input, Policy: policy})
	if err != nil {
		return nil, domain.ErrEvaluator(fmt.Sprintf("marshal evaluator request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.ErrEvaluator(fmt.Sprintf("build evaluator request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range d.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, domain.ErrEvaluator(fmt.Sprintf("evaluator call failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, domain.ErrEvaluator(fmt.Sprintf("evaluator returned status %d: %s", resp.StatusCode, payload))
	}

	var wire response
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, domain.ErrEvaluator(fmt.Sprintf("decode evaluator response: %v", err))
	}

	decision := &domain.SafetyDecision{
		SafetyScore:   wire.SafetyScore,
		Action:        domain.Action(wire.Action),
		Confidence:    wire.Confidence,
		Reasoning:     wire.Reasoning,
		ViolatedRules: wire.ViolatedRules,
		Params:        domain.DecisionParams{RewrittenText: wire.Params.RewrittenText},
	}
	return decision, nil
}
