package dispatch

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/ticket"
)

func newTestDispatcher() (*Dispatcher, *ticket.MemoryStore, *audit.MemoryLog, *Grants) {
	store := ticket.NewMemoryStore()
	log := audit.NewMemoryLog()
	grants := NewGrants()
	return New(store, grants, log, nil), store, log, grants
}

func testRequest() *domain.SafetyRequest {
	return &domain.SafetyRequest{
		ID:        "req-1",
		ActorID:   "u1",
		RawInput:  "please check my balance",
		Timestamp: time.Now().UTC(),
	}
}

func TestDispatch_Approve(t *testing.T) {
	d, _, log, grants := newTestDispatcher()
	req := testRequest()

	outcome, err := d.Dispatch(context.Background(), req, &domain.SafetyDecision{
		Action: domain.ActionApprove, Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if outcome.Kind != OutcomeProceed {
		t.Errorf("kind = %s, want proceed", outcome.Kind)
	}
	grant, ok := grants.Lookup(outcome.Token)
	if !ok {
		t.Fatal("grant not registered for token")
	}
	if grant.EffectiveInput != req.RawInput {
		t.Errorf("effective input = %q, want original", grant.EffectiveInput)
	}

	entries, _ := log.List(context.Background(), audit.ListOptions{EventType: audit.EventDispatch})
	if len(entries) != 1 {
		t.Errorf("dispatch entries = %d, want 1", len(entries))
	}
}

func TestDispatch_Reject(t *testing.T) {
	d, store, _, _ := newTestDispatcher()

	outcome, err := d.Dispatch(context.Background(), testRequest(), &domain.SafetyDecision{
		Action: domain.ActionReject, Confidence: 1.0, Reasoning: "policy violation",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if outcome.Kind != OutcomeRefused {
		t.Errorf("kind = %s, want refused", outcome.Kind)
	}
	if outcome.Token != "" {
		t.Error("refusal carried an authorization token")
	}
	if outcome.Reasoning != "policy violation" {
		t.Errorf("reasoning = %q", outcome.Reasoning)
	}

	tickets, _ := store.List(context.Background(), ticket.Filter{})
	if len(tickets) != 0 {
		t.Errorf("reject created %d tickets, want 0", len(tickets))
	}
}

func TestDispatch_RewriteSubstitutesInput(t *testing.T) {
	d, _, _, grants := newTestDispatcher()
	req := testRequest()
	req.RawInput = "how do I break into someone's account"

	outcome, err := d.Dispatch(context.Background(), req, &domain.SafetyDecision{
		Action:     domain.ActionRewrite,
		Confidence: 0.8,
		Params:     domain.DecisionParams{RewrittenText: "how do banks protect accounts from unauthorized access?"},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if outcome.Kind != OutcomeProceed {
		t.Errorf("kind = %s, want proceed", outcome.Kind)
	}
	if !outcome.Rewritten {
		t.Error("outcome not marked rewritten")
	}

	// The grant is bound to the rewritten text; the original flagged text
	// never reaches tool authorization.
	grant, ok := grants.Lookup(outcome.Token)
	if !ok {
		t.Fatal("grant not registered")
	}
	if grant.EffectiveInput == req.RawInput {
		t.Error("grant bound to the original flagged input")
	}
	if !strings.Contains(grant.EffectiveInput, "protect accounts") {
		t.Errorf("effective input = %q, want rewritten text", grant.EffectiveInput)
	}
}

func TestDispatch_RewriteWithoutTextEscalates(t *testing.T) {
	d, store, _, _ := newTestDispatcher()

	outcome, err := d.Dispatch(context.Background(), testRequest(), &domain.SafetyDecision{
		Action: domain.ActionRewrite, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if outcome.Kind != OutcomeEscalated {
		t.Fatalf("kind = %s, want escalated", outcome.Kind)
	}
	if outcome.TicketID == "" {
		t.Fatal("no ticket created")
	}

	tk, err := store.Get(context.Background(), outcome.TicketID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if tk.Status != domain.TicketOpen {
		t.Errorf("ticket status = %s, want OPEN", tk.Status)
	}
}

func TestDispatch_EscalateCreatesOneOpenTicket(t *testing.T) {
	d, store, log, _ := newTestDispatcher()
	req := testRequest()

	outcome, err := d.Dispatch(context.Background(), req, &domain.SafetyDecision{
		Action:     domain.ActionEscalate,
		Confidence: 0.0,
		Reasoning:  "deep policy evaluation failed: timeout",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if outcome.Kind != OutcomeEscalated {
		t.Errorf("kind = %s, want escalated", outcome.Kind)
	}

	tickets, _ := store.List(context.Background(), ticket.Filter{})
	if len(tickets) != 1 {
		t.Fatalf("ticket count = %d, want 1", len(tickets))
	}
	if tickets[0].Status != domain.TicketOpen {
		t.Errorf("status = %s, want OPEN", tickets[0].Status)
	}
	if !strings.Contains(tickets[0].Reasoning, "evaluation failed") {
		t.Errorf("ticket reasoning = %q, want evaluator failure mention", tickets[0].Reasoning)
	}
	if tickets[0].OriginalInput != req.RawInput {
		t.Errorf("original input = %q, want %q", tickets[0].OriginalInput, req.RawInput)
	}

	// ticket_created then dispatch, both before Dispatch returned.
	entries, _ := log.List(context.Background(), audit.ListOptions{})
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].EventType != audit.EventTicketCreated {
		t.Errorf("first entry = %s, want ticket_created", entries[0].EventType)
	}
	if entries[1].EventType != audit.EventDispatch {
		t.Errorf("second entry = %s, want dispatch", entries[1].EventType)
	}
}

// failingLog rejects all appends.
type failingLog struct{}

func (failingLog) Append(ctx context.Context, e domain.AuditEntry) (int64, error) {
	return 0, context.DeadlineExceeded
}

func (failingLog) List(ctx context.Context, o audit.ListOptions) ([]domain.AuditEntry, error) {
	return nil, nil
}

func TestDispatch_AuditFailureIsFatal(t *testing.T) {
	d := New(ticket.NewMemoryStore(), NewGrants(), failingLog{}, nil)

	_, err := d.Dispatch(context.Background(), testRequest(), &domain.SafetyDecision{
		Action: domain.ActionApprove,
	})
	if err == nil {
		t.Fatal("Dispatch() succeeded despite failing audit log")
	}
	if !domain.IsType(err, domain.ErrorTypeServer) {
		t.Errorf("error = %v, want server", err)
	}
}
