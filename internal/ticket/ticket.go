// Package ticket implements the escalation-ticket lifecycle: tickets are
// created OPEN by the action dispatcher, transition to RESOLVED exactly
// once through an administrative resolve, and are never deleted.
package ticket

import (
	"context"

	"github.com/primebank/guardrail/internal/domain"
)

// Filter narrows a ticket listing. Zero values mean "no filter".
type Filter struct {
	Status  domain.TicketStatus
	OwnerID string
}

// Store persists escalation tickets. Resolve must be atomic per ticket:
// only the OPEN -> RESOLVED transition is permitted, and concurrent
// resolves of the same ticket leave exactly one winner.
type Store interface {
	Create(ctx context.Context, actorID, originalInput, reasoning string) (*domain.EscalationTicket, error)
	Get(ctx context.Context, id string) (*domain.EscalationTicket, error)
	Resolve(ctx context.Context, id, note, resolvedBy string) (*domain.EscalationTicket, error)
	List(ctx context.Context, filter Filter) ([]domain.EscalationTicket, error)
}
