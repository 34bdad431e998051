// Package audit defines the append-only audit log that every guardrail
// component writes to. Entries are write-once and totally ordered by a
// monotonic sequence number assigned at append time; the sequence is the
// authority for reconciling concurrent writers.
package audit

import (
	"context"

	"github.com/primebank/guardrail/internal/domain"
)

// Event types written by the core components.
const (
	EventUserQuery       = "user_query"
	EventPrefilterCheck  = "prefilter_check"
	EventPolicyCheck     = "policy_check"
	EventDecision        = "decision"
	EventDispatch        = "dispatch"
	EventPermissionCheck = "permission_check"
	EventTicketCreated   = "ticket_created"
	EventTicketResolved  = "ticket_resolved"
	EventToolAuthorized  = "tool_authorized"
)

// ListOptions filters an audit log read. Zero values mean "no filter".
type ListOptions struct {
	EventType string
	ActorID   string
	SinceSeq  int64
	Limit     int
}

// Log is the append-only audit sink. Append assigns the sequence number and
// timestamp (when unset) and must not return until the entry is durably
// recorded; callers rely on that for the log-before-respond invariant.
type Log interface {
	Append(ctx context.Context, entry domain.AuditEntry) (int64, error)
	List(ctx context.Context, opts ListOptions) ([]domain.AuditEntry, error)
}
