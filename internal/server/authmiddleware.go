package server

import (
	"context"
	"net/http"

	"github.com/primebank/guardrail/internal/auth"
	"github.com/primebank/guardrail/internal/domain"
)

type actorKey struct{}

// AuthMiddleware validates API keys and injects the resolved actor into
// the request context. Requests without a valid key are rejected before
// reaching any handler.
func AuthMiddleware(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey, err := auth.ExtractAPIKey(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			actor, err := authenticator.ValidateAPIKey(apiKey)
			if err != nil {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}

			AddLogField(r.Context(), "actor_id", actor.ID)

			ctx := context.WithValue(r.Context(), actorKey{}, *actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetActor retrieves the authenticated actor from context.
func GetActor(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}
