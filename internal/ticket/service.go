package ticket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/rbac"
)

// Service wraps a Store with access control and audit. Resolution is an
// administrative action: it requires the administer-tickets capability
// through the gate, so a ticket's owner may never self-resolve unless they
// also hold that capability.
type Service struct {
	store  Store
	gate   *rbac.Gate
	log    audit.Log
	logger *slog.Logger
}

// NewService creates a ticket service.
func NewService(store Store, gate *rbac.Gate, log audit.Log, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gate: gate, log: log, logger: logger}
}

// Resolve authorizes the acting actor for ticket administration, applies
// the OPEN -> RESOLVED transition, and audits the mutation before
// returning.
func (s *Service) Resolve(ctx context.Context, actor domain.Actor, id, note string) (*domain.EscalationTicket, error) {
	if _, err := s.gate.Authorize(ctx, actor, rbac.CapAdministerTickets, ""); err != nil {
		return nil, err
	}

	t, err := s.store.Resolve(ctx, id, note, actor.ID)
	if err != nil {
		return nil, err
	}

	entry := domain.AuditEntry{
		EventType: audit.EventTicketResolved,
		ActorID:   actor.ID,
		Action:    "resolve",
		Details: map[string]any{
			"ticket_id": t.ID,
			"note":      note,
		},
		Success: true,
	}
	if _, err := s.log.Append(ctx, entry); err != nil {
		return nil, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err))
	}

	s.logger.Info("ticket resolved",
		slog.String("ticket_id", t.ID),
		slog.String("resolved_by", actor.ID),
	)
	return t, nil
}

// List returns tickets visible to the actor. Without the administer
// capability, visibility is scoped to tickets the actor created; any
// owner filter they pass is forced to their own id.
func (s *Service) List(ctx context.Context, actor domain.Actor, filter Filter) ([]domain.EscalationTicket, error) {
	if !rbac.HasCapability(actor.Role, rbac.CapAdministerTickets) {
		filter.OwnerID = actor.ID
	}
	return s.store.List(ctx, filter)
}

// Get returns a single ticket, subject to the same visibility scoping as
// List.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.EscalationTicket, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ActorID != actor.ID && !rbac.HasCapability(actor.Role, rbac.CapAdministerTickets) {
		return nil, domain.ErrNotFound("ticket " + id + " not found")
	}
	return t, nil
}
