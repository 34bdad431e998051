// Package dispatch interprets a safety decision and drives its effect:
// issue a request-scoped authorization grant, refuse, substitute a
// rewritten input, or open an escalation ticket.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/ticket"
)

// OutcomeKind is the user-visible effect of a dispatch.
type OutcomeKind string

const (
	// OutcomeProceed means the caller may request tool authorizations for
	// the effective input using the returned grant token.
	OutcomeProceed OutcomeKind = "proceed"

	// OutcomeRefused means no tool authorization will ever be granted for
	// this request.
	OutcomeRefused OutcomeKind = "refused"

	// OutcomeEscalated means a human-review ticket was opened; no tool
	// authorization is granted.
	OutcomeEscalated OutcomeKind = "escalated"
)

// Outcome is the result handed back to the caller after dispatch.
type Outcome struct {
	Kind           OutcomeKind `json:"kind"`
	Token          string      `json:"token,omitempty"`
	EffectiveInput string      `json:"effective_input,omitempty"`
	Rewritten      bool        `json:"rewritten,omitempty"`
	Reasoning      string      `json:"reasoning,omitempty"`
	TicketID       string      `json:"ticket_id,omitempty"`
}

// Dispatcher maps decisions to outcomes.
type Dispatcher struct {
	tickets ticket.Store
	grants  *Grants
	log     audit.Log
	logger  *slog.Logger
}

// New creates a dispatcher.
func New(tickets ticket.Store, grants *Grants, log audit.Log, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{tickets: tickets, grants: grants, log: log, logger: logger}
}

// Dispatch applies the decision's action. Exactly one audit entry records
// the dispatch outcome (plus one ticket_created entry when a ticket is
// opened), appended before the outcome is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req *domain.SafetyRequest, decision *domain.SafetyDecision) (*Outcome, error) {
	var outcome *Outcome
	var err error

	switch decision.Action {
	case domain.ActionApprove:
		grant := d.grants.issue(req.ActorID, req.ID, req.RawInput)
		outcome = &Outcome{
			Kind:           OutcomeProceed,
			Token:          grant.Token,
			EffectiveInput: req.RawInput,
		}

	case domain.ActionReject:
		outcome = &Outcome{
			Kind:      OutcomeRefused,
			Reasoning: decision.Reasoning,
		}

	case domain.ActionRewrite:
		if decision.Params.RewrittenText == "" {
			// Malformed rewrite output gets the same fail-safe treatment
			// as a deep-stage failure.
			outcome, err = d.escalate(ctx, req,
				"rewrite decision carried no rewritten text; escalating for human review")
		} else {
			// One-shot substitution: the rewritten text re-enters at the
			// authorization stage only, never back through the evaluators.
			grant := d.grants.issue(req.ActorID, req.ID, decision.Params.RewrittenText)
			outcome = &Outcome{
				Kind:           OutcomeProceed,
				Token:          grant.Token,
				EffectiveInput: decision.Params.RewrittenText,
				Rewritten:      true,
			}
		}

	case domain.ActionEscalate:
		outcome, err = d.escalate(ctx, req, decision.Reasoning)

	default:
		// The engine validates the action set; reaching here means a
		// decision bypassed it. Escalate anyway.
		outcome, err = d.escalate(ctx, req,
			fmt.Sprintf("unrecognized action %q at dispatch; escalating for human review", decision.Action))
	}
	if err != nil {
		return nil, err
	}

	entry := domain.AuditEntry{
		EventType: audit.EventDispatch,
		ActorID:   req.ActorID,
		Action:    string(decision.Action),
		Details: map[string]any{
			"request_id": req.ID,
			"outcome":    string(outcome.Kind),
			"rewritten":  outcome.Rewritten,
		},
		Success: true,
	}
	if outcome.TicketID != "" {
		entry.Details["ticket_id"] = outcome.TicketID
	}
	if _, err := d.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	d.logger.Info("dispatched",
		slog.String("request_id", req.ID),
		slog.String("action", string(decision.Action)),
		slog.String("outcome", string(outcome.Kind)),
	)
	return outcome, nil
}

func (d *Dispatcher) escalate(ctx context.Context, req *domain.SafetyRequest, reasoning string) (*Outcome, error) {
	t, err := d.tickets.Create(ctx, req.ActorID, req.RawInput, reasoning)
	if err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("create escalation ticket: %v", err))
	}

	entry := domain.AuditEntry{
		EventType: audit.EventTicketCreated,
		ActorID:   req.ActorID,
		Action:    "escalate",
		Details: map[string]any{
			"request_id": req.ID,
			"ticket_id":  t.ID,
		},
		Success: true,
	}
	if _, err := d.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	return &Outcome{
		Kind:      OutcomeEscalated,
		Reasoning: reasoning,
		TicketID:  t.ID,
	}, nil
}
