package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
)

// Authorization is the proof that the gate allowed an actor to exercise a
// capability, optionally against a target resource owner.
type Authorization struct {
	Token      string     `json:"token"`
	ActorID    string     `json:"actor_id"`
	Capability Capability `json:"capability"`
	Target     string     `json:"target,omitempty"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// Gate answers "may actor A perform capability C on target T?". Every call
// appends exactly one audit entry, success or denial, before returning; an
// audit append failure fails the authorization.
type Gate struct {
	log    audit.Log
	logger *slog.Logger
}

// NewGate creates a gate writing to the given audit log.
func NewGate(log audit.Log, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{log: log, logger: logger}
}

// Authorize checks the actor's role against the capability and, when target
// is non-empty, the ownership rule: an actor whose capability is own-scoped
// may only be authorized against their own id unless they also hold the
// any-scope counterpart.
func (g *Gate) Authorize(ctx context.Context, actor domain.Actor, cap Capability, target string) (*Authorization, error) {
	denied := g.check(actor, cap, target)

	entry := domain.AuditEntry{
		EventType: audit.EventPermissionCheck,
		ActorID:   actor.ID,
		Action:    string(cap),
		Details: map[string]any{
			"role":   string(actor.Role),
			"target": target,
		},
		Success: denied == nil,
	}
	if denied != nil {
		entry.Error = denied.Error()
	}
	if _, err := g.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	if denied != nil {
		g.logger.Warn("authorization denied",
			slog.String("actor", actor.ID),
			slog.String("capability", string(cap)),
			slog.String("target", target),
		)
		return nil, denied
	}

	return &Authorization{
		Token:      uuid.New().String(),
		ActorID:    actor.ID,
		Capability: cap,
		Target:     target,
		GrantedAt:  time.Now().UTC(),
	}, nil
}

func (g *Gate) check(actor domain.Actor, cap Capability, target string) *domain.Error {
	if !HasCapability(actor.Role, cap) {
		return domain.ErrAccessDenied(string(cap), target,
			fmt.Sprintf("role %s does not hold capability", actor.Role))
	}

	// Ownership rule: a non-empty target other than the actor's own id
	// requires either an any-scope capability or its any-scope counterpart.
	if target != "" && target != actor.ID && !IsAnyScope(cap) {
		anyCap, ok := AnyScopeOf(cap)
		if !ok || !HasCapability(actor.Role, anyCap) {
			return domain.ErrAccessDenied(string(cap), target,
				"capability is restricted to the actor's own resources")
		}
	}

	return nil
}
