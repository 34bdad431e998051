package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/primebank/guardrail/internal/config"
	"github.com/primebank/guardrail/internal/domain"
)

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	authn := NewAuthenticator([]config.ActorConfig{
		{ID: "u1", Name: "Alice Johnson", Role: "USER", KeyHash: HashAPIKey("alice-key")},
		{ID: "staff1", Name: "Bob Smith", Role: "STAFF", KeyHash: HashAPIKey("bob-key")},
	})

	actor, err := authn.ValidateAPIKey("alice-key")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if actor.ID != "u1" || actor.Role != domain.RoleUser {
		t.Errorf("actor = %+v, want u1/USER", actor)
	}

	// Each key resolves to its own actor, not just any configured one.
	actor, err = authn.ValidateAPIKey("bob-key")
	if err != nil {
		t.Fatalf("ValidateAPIKey() error = %v", err)
	}
	if actor.ID != "staff1" || actor.Role != domain.RoleStaff {
		t.Errorf("actor = %+v, want staff1/STAFF", actor)
	}

	if _, err := authn.ValidateAPIKey("wrong-key"); err == nil {
		t.Error("ValidateAPIKey() accepted an unknown key")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"bearer token", "Bearer abc123", "abc123", false},
		{"lowercase scheme", "bearer abc123", "abc123", false},
		{"missing header", "", "", true},
		{"no scheme", "abc123", "", true},
		{"wrong scheme", "Basic abc123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			got, err := ExtractAPIKey(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractAPIKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractAPIKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHashAPIKey_Stable(t *testing.T) {
	if HashAPIKey("key") != HashAPIKey("key") {
		t.Error("HashAPIKey() not deterministic")
	}
	if HashAPIKey("key") == HashAPIKey("other") {
		t.Error("HashAPIKey() collides on distinct inputs")
	}
}
