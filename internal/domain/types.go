// Package domain holds the core types shared by the guardrail pipeline:
// actors and roles, safety requests and decisions, escalation tickets, and
// audit log entries.
package domain

import "time"

// Role is an actor's privilege level. Roles are ordered USER < STAFF < ADMIN;
// the capability sets in the rbac package are supersets along that order.
type Role string

const (
	RoleUser  Role = "USER"
	RoleStaff Role = "STAFF"
	RoleAdmin Role = "ADMIN"
)

// Actor is an authenticated identity. Actors are created by the identity
// layer (API key auth) and are immutable for the lifetime of a request.
type Actor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}

// SafetyRequest is a single inbound user input entering the pipeline.
// Immutable once created.
type SafetyRequest struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	RawInput  string    `json:"raw_input"`
	Timestamp time.Time `json:"timestamp"`
}

// Action is the disposition chosen for a request by the deep policy
// evaluator (or by the engine's short-circuit and fail-safe paths).
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionRewrite  Action = "rewrite"
	ActionEscalate Action = "escalate"
)

// Known reports whether a is one of the four recognized actions. Anything
// else coming back from an evaluator is treated as malformed output.
func (a Action) Known() bool {
	switch a {
	case ActionApprove, ActionReject, ActionRewrite, ActionEscalate:
		return true
	}
	return false
}

// DecisionParams carries action-specific payload. Only rewrite uses it
// today.
type DecisionParams struct {
	RewrittenText string `json:"rewritten_text,omitempty"`
}

// SafetyDecision is the single structured outcome of evaluating a request.
// Produced exactly once per request; immutable.
type SafetyDecision struct {
	SafetyScore   float64        `json:"safety_score"`
	Action        Action         `json:"action"`
	Confidence    float64        `json:"confidence"`
	Reasoning     string         `json:"reasoning"`
	ViolatedRules []string       `json:"violated_rules,omitempty"`
	Params        DecisionParams `json:"params"`
}

// TicketStatus is the lifecycle state of an escalation ticket. The only
// transition is OPEN -> RESOLVED, exactly once.
type TicketStatus string

const (
	TicketOpen     TicketStatus = "OPEN"
	TicketResolved TicketStatus = "RESOLVED"
)

// EscalationTicket is a durable request for human review, created by the
// dispatcher on an escalate decision. Tickets are never deleted.
type EscalationTicket struct {
	ID             string       `json:"id"`
	ActorID        string       `json:"actor_id"`
	OriginalInput  string       `json:"original_input"`
	Reasoning      string       `json:"reasoning"`
	Status         TicketStatus `json:"status"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	ResolvedBy     string       `json:"resolved_by,omitempty"`
}

// AuditEntry is one write-once record in the append-only audit log. Seq is
// assigned by the log at append time and is the authoritative total order
// across concurrent writers.
type AuditEntry struct {
	Seq       int64          `json:"seq"`
	EventType string         `json:"event_type"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
