package dispatch

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Grant is an authorization token scoped to one request's effective input.
// Holding a grant lets the caller ask the access-control gate for specific
// tool capabilities tied to that input; it is not itself a tool
// authorization.
type Grant struct {
	Token          string    `json:"token"`
	ActorID        string    `json:"actor_id"`
	RequestID      string    `json:"request_id"`
	EffectiveInput string    `json:"effective_input"`
	IssuedAt       time.Time `json:"issued_at"`
}

// DefaultGrantTTL bounds how long a proceed token stays exchangeable.
// Expired grants are swept on issue, so the registry stays proportional to
// recent traffic rather than process lifetime.
const DefaultGrantTTL = 15 * time.Minute

// Grants is the in-process registry of issued grants.
type Grants struct {
	mu  sync.Mutex
	m   map[string]Grant
	ttl time.Duration
	now func() time.Time
}

// NewGrants creates an empty grant registry with the default TTL.
func NewGrants() *Grants {
	return &Grants{
		m:   make(map[string]Grant),
		ttl: DefaultGrantTTL,
		now: time.Now,
	}
}

func (g *Grants) issue(actorID, requestID, effectiveInput string) Grant {
	grant := Grant{
		Token:          uuid.New().String(),
		ActorID:        actorID,
		RequestID:      requestID,
		EffectiveInput: effectiveInput,
		IssuedAt:       g.now().UTC(),
	}

	g.mu.Lock()
	g.sweepLocked()
	g.m[grant.Token] = grant
	g.mu.Unlock()

	return grant
}

// Lookup returns the grant for a token. Expired grants read as absent.
func (g *Grants) Lookup(token string) (Grant, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	grant, ok := g.m[token]
	if !ok {
		return Grant{}, false
	}
	if g.expired(grant) {
		delete(g.m, token)
		return Grant{}, false
	}
	return grant, true
}

func (g *Grants) expired(grant Grant) bool {
	return g.now().Sub(grant.IssuedAt) > g.ttl
}

func (g *Grants) sweepLocked() {
	for token, grant := range g.m {
		if g.expired(grant) {
			delete(g.m, token)
		}
	}
}
