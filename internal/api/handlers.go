// Package api exposes the guardrail pipeline over HTTP: request
// evaluation, tool authorization, ticket administration, and the audit
// view.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/catalog"
	"github.com/primebank/guardrail/internal/dispatch"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/engine"
	"github.com/primebank/guardrail/internal/rbac"
	"github.com/primebank/guardrail/internal/server"
	"github.com/primebank/guardrail/internal/ticket"
)

// Handler serves the guardrail HTTP API.
type Handler struct {
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	grants     *dispatch.Grants
	gate       *rbac.Gate
	tickets    *ticket.Service
	log        audit.Log
	catalog    *catalog.Catalog
	logger     *slog.Logger
}

// New creates the API handler.
func New(eng *engine.Engine, disp *dispatch.Dispatcher, grants *dispatch.Grants, gate *rbac.Gate, tickets *ticket.Service, log audit.Log, cat *catalog.Catalog, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:     eng,
		dispatcher: disp,
		grants:     grants,
		gate:       gate,
		tickets:    tickets,
		log:        log,
		catalog:    cat,
		logger:     logger,
	}
}

// Routes registers all endpoints on the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/requests", h.handleSubmit)
	r.Post("/v1/authorize", h.handleAuthorize)
	r.Get("/v1/tools", h.handleTools)
	r.Get("/v1/tickets", h.handleListTickets)
	r.Get("/v1/tickets/{id}", h.handleGetTicket)
	r.Post("/v1/tickets/{id}/resolve", h.handleResolveTicket)
	r.Get("/v1/audit", h.handleAudit)
}

type submitRequest struct {
	Input string `json:"input"`
}

type submitResponse struct {
	RequestID string                 `json:"request_id"`
	Decision  *domain.SafetyDecision `json:"decision"`
	Outcome   *dispatch.Outcome      `json:"outcome"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid JSON body"))
		return
	}
	if body.Input == "" {
		writeError(w, r, domain.ErrInvalidRequest("input is required"))
		return
	}

	req := &domain.SafetyRequest{
		ID:        uuid.New().String(),
		ActorID:   actor.ID,
		RawInput:  body.Input,
		Timestamp: time.Now().UTC(),
	}

	if _, err := h.log.Append(r.Context(), domain.AuditEntry{
		EventType: audit.EventUserQuery,
		ActorID:   actor.ID,
		Action:    "submit",
		Details:   map[string]any{"request_id": req.ID},
		Success:   true,
	}); err != nil {
		writeError(w, r, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err)))
		return
	}

	decision, err := h.engine.Evaluate(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome, err := h.dispatcher.Dispatch(r.Context(), req, decision)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{
		RequestID: req.ID,
		Decision:  decision,
		Outcome:   outcome,
	})
}

type authorizeRequest struct {
	Token  string `json:"token"`
	Tool   string `json:"tool"`
	Target string `json:"target,omitempty"`
}

type authorizeResponse struct {
	Authorization  *rbac.Authorization `json:"authorization"`
	Tool           string              `json:"tool"`
	EffectiveInput string              `json:"effective_input"`
}

func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	var body authorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid JSON body"))
		return
	}
	if body.Token == "" || body.Tool == "" {
		writeError(w, r, domain.ErrInvalidRequest("token and tool are required"))
		return
	}

	grant, ok := h.grants.Lookup(body.Token)
	if !ok {
		h.denyAuthorize(w, r, actor, body,
			domain.ErrNotFound("unknown authorization token"))
		return
	}
	if grant.ActorID != actor.ID {
		h.denyAuthorize(w, r, actor, body,
			domain.ErrAccessDenied(body.Tool, body.Target,
				"authorization token belongs to another actor"))
		return
	}

	tool, found := h.catalog.Lookup(body.Tool)
	if !found {
		writeError(w, r, domain.ErrNotFound("unknown tool "+body.Tool))
		return
	}
	if tool.TargetRequired && body.Target == "" {
		writeError(w, r, domain.ErrInvalidRequest("tool "+tool.Name+" requires a target"))
		return
	}

	authz, err := h.gate.Authorize(r.Context(), actor, tool.Capability, body.Target)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.log.Append(r.Context(), domain.AuditEntry{
		EventType: audit.EventToolAuthorized,
		ActorID:   actor.ID,
		Action:    tool.Name,
		Details: map[string]any{
			"request_id": grant.RequestID,
			"capability": string(tool.Capability),
			"target":     body.Target,
		},
		Success: true,
	}); err != nil {
		writeError(w, r, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err)))
		return
	}

	writeJSON(w, http.StatusOK, authorizeResponse{
		Authorization:  authz,
		Tool:           tool.Name,
		EffectiveInput: grant.EffectiveInput,
	})
}

// denyAuthorize records a token-based refusal in the audit log before the
// denial is returned, mirroring how the gate accounts for its own denials.
func (h *Handler) denyAuthorize(w http.ResponseWriter, r *http.Request, actor domain.Actor, body authorizeRequest, denial *domain.Error) {
	if _, err := h.log.Append(r.Context(), domain.AuditEntry{
		EventType: audit.EventToolAuthorized,
		ActorID:   actor.ID,
		Action:    body.Tool,
		Details:   map[string]any{"target": body.Target},
		Success:   false,
		Error:     denial.Message,
	}); err != nil {
		writeError(w, r, domain.ErrServer(fmt.Sprintf("audit append failed: %v", err)))
		return
	}
	writeError(w, r, denial)
}

func (h *Handler) handleTools(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tools": h.catalog.ToolsFor(actor.Role),
	})
}

func (h *Handler) handleListTickets(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	filter := ticket.Filter{
		Status:  domain.TicketStatus(r.URL.Query().Get("status")),
		OwnerID: r.URL.Query().Get("owner"),
	}

	tickets, err := h.tickets.List(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tickets == nil {
		tickets = []domain.EscalationTicket{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	t, err := h.tickets.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

type resolveRequest struct {
	Note string `json:"note"`
}

func (h *Handler) handleResolveTicket(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	var body resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("invalid JSON body"))
		return
	}

	t, err := h.tickets.Resolve(r.Context(), actor, chi.URLParam(r, "id"), body.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := server.GetActor(r.Context())
	if !ok {
		writeError(w, r, domain.ErrServer("no authenticated actor"))
		return
	}

	// Reading the audit log is itself capability-gated (and audited).
	if _, err := h.gate.Authorize(r.Context(), actor, rbac.CapViewAuditLog, ""); err != nil {
		writeError(w, r, err)
		return
	}

	opts := audit.ListOptions{
		EventType: r.URL.Query().Get("event_type"),
		ActorID:   r.URL.Query().Get("actor"),
	}
	if v := r.URL.Query().Get("since_seq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, domain.ErrInvalidRequest("since_seq must be an integer"))
			return
		}
		opts.SinceSeq = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, domain.ErrInvalidRequest("limit must be an integer"))
			return
		}
		opts.Limit = n
	}

	entries, err := h.log.List(r.Context(), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	server.AddError(r.Context(), err)

	var ge *domain.Error
	if !errors.As(err, &ge) {
		ge = domain.ErrServer(err.Error())
	}

	writeJSON(w, ge.HTTPStatusCode(), map[string]any{"error": ge})
}
