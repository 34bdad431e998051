package ticket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/primebank/guardrail/internal/domain"
)

// MemoryStore is an in-process Store. A single mutex covers the ticket map
// so the resolve compare-and-swap is race-free.
type MemoryStore struct {
	mu      sync.Mutex
	tickets map[string]*domain.EscalationTicket
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory ticket store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*domain.EscalationTicket)}
}

// Create stores a new OPEN ticket with a generated id.
func (s *MemoryStore) Create(ctx context.Context, actorID, originalInput, reasoning string) (*domain.EscalationTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t := &domain.EscalationTicket{
		ID:            uuid.New().String(),
		ActorID:       actorID,
		OriginalInput: originalInput,
		Reasoning:     reasoning,
		Status:        domain.TicketOpen,
		CreatedAt:     time.Now().UTC(),
	}

	s.mu.Lock()
	s.tickets[t.ID] = t
	s.mu.Unlock()

	out := *t
	return &out, nil
}

// Get returns a copy of the ticket, or NotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.EscalationTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound("ticket " + id + " not found")
	}
	out := *t
	return &out, nil
}

// Resolve transitions the ticket OPEN -> RESOLVED exactly once. A second
// resolve fails with AlreadyResolved and performs no mutation.
func (s *MemoryStore) Resolve(ctx context.Context, id, note, resolvedBy string) (*domain.EscalationTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, domain.ErrNotFound("ticket " + id + " not found")
	}
	if t.Status != domain.TicketOpen {
		return nil, domain.ErrAlreadyResolved("ticket " + id + " is already resolved")
	}

	now := time.Now().UTC()
	t.Status = domain.TicketResolved
	t.ResolutionNote = note
	t.ResolvedBy = resolvedBy
	t.ResolvedAt = &now

	out := *t
	return &out, nil
}

// List returns tickets matching the filter, ordered by creation time.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]domain.EscalationTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.EscalationTicket
	for _, t := range s.tickets {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.OwnerID != "" && t.ActorID != filter.OwnerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	return out, nil
}
