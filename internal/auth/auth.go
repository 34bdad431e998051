// Package auth maps API keys to actors. Keys are stored as SHA-256 hashes
// in configuration; the identity itself (id, display name, role) comes from
// the same config entry.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/primebank/guardrail/internal/config"
	"github.com/primebank/guardrail/internal/domain"
)

// Authenticator validates API keys and resolves the calling actor.
type Authenticator struct {
	actors map[string]domain.Actor // key hash -> actor
}

// NewAuthenticator builds the key-hash index from configured actors.
func NewAuthenticator(actors []config.ActorConfig) *Authenticator {
	a := &Authenticator{actors: make(map[string]domain.Actor, len(actors))}
	for _, ac := range actors {
		a.actors[ac.KeyHash] = domain.Actor{
			ID:          ac.ID,
			DisplayName: ac.Name,
			Role:        domain.Role(ac.Role),
		}
	}
	return a
}

// ValidateAPIKey resolves an API key to its actor by hash lookup.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*domain.Actor, error) {
	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	actor, ok := a.actors[keyHash]
	if !ok {
		return nil, fmt.Errorf("invalid API key")
	}
	return &actor, nil
}

// ExtractAPIKey pulls the bearer token from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey returns the SHA-256 hex digest used in configuration.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
