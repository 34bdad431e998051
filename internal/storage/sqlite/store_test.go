package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/ticket"
)

func openTestDB(t *testing.T, name string) *DB {
	t.Helper()
	// In-memory SQLite with shared cache so all connections see one DB.
	db, err := Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "guardrail.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent directory was not created: %v", err)
	}
	if _, err := db.AuditLog().Append(context.Background(), domain.AuditEntry{
		EventType: audit.EventUserQuery,
		ActorID:   "u1",
		Action:    "submit",
		Success:   true,
	}); err != nil {
		t.Fatalf("Append() on fresh database error = %v", err)
	}
}

func TestAuditLog_AppendAndList(t *testing.T) {
	log := openTestDB(t, "audit1").AuditLog()
	ctx := context.Background()

	seq1, err := log.Append(ctx, domain.AuditEntry{
		EventType: audit.EventPermissionCheck,
		ActorID:   "u1",
		Action:    "view_own_account",
		Details:   map[string]any{"target": "u1"},
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	seq2, err := log.Append(ctx, domain.AuditEntry{
		EventType: audit.EventDispatch,
		ActorID:   "u1",
		Action:    "approve",
		Success:   true,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if seq2 <= seq1 {
		t.Errorf("sequence not monotonic: %d then %d", seq1, seq2)
	}

	entries, err := log.List(ctx, audit.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() count = %d, want 2", len(entries))
	}
	if entries[0].Details["target"] != "u1" {
		t.Errorf("details round-trip failed: %v", entries[0].Details)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("timestamp not persisted")
	}

	filtered, err := log.List(ctx, audit.ListOptions{EventType: audit.EventDispatch})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].Action != "approve" {
		t.Errorf("filtered list = %+v, want one approve dispatch", filtered)
	}
}

func TestAuditLog_ConcurrentAppendsKeepUniqueSequence(t *testing.T) {
	log := openTestDB(t, "audit2").AuditLog()

	const writers = 8
	const perWriter = 20

	var wg sync.WaitGroup
	seqs := make(chan int64, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				seq, err := log.Append(context.Background(), domain.AuditEntry{
					EventType: audit.EventUserQuery,
					ActorID:   "u1",
					Action:    "submit",
					Success:   true,
				})
				if err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
				seqs <- seq
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for seq := range seqs {
		if seen[seq] {
			t.Fatalf("duplicate sequence number %d", seq)
		}
		seen[seq] = true
	}
	if len(seen) != writers*perWriter {
		t.Errorf("unique sequences = %d, want %d", len(seen), writers*perWriter)
	}
}

func TestTicketStore_CreateResolveLifecycle(t *testing.T) {
	store := openTestDB(t, "tickets1").TicketStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", "odd request", "deep evaluator timed out")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != domain.TicketOpen {
		t.Errorf("status = %s, want OPEN", created.Status)
	}

	resolved, err := store.Resolve(ctx, created.ID, "reviewed, benign", "staff1")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Status != domain.TicketResolved {
		t.Errorf("status = %s, want RESOLVED", resolved.Status)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}
	if resolved.ResolvedBy != "staff1" {
		t.Errorf("resolved_by = %s, want staff1", resolved.ResolvedBy)
	}

	// Exactly-once: the second resolve fails and mutates nothing.
	if _, err := store.Resolve(ctx, created.ID, "again", "admin1"); !domain.IsType(err, domain.ErrorTypeAlreadyResolved) {
		t.Fatalf("second Resolve() error = %v, want already_resolved", err)
	}
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ResolvedBy != "staff1" || got.ResolutionNote != "reviewed, benign" {
		t.Error("failed resolve mutated the ticket")
	}
}

func TestTicketStore_ResolveNotFound(t *testing.T) {
	store := openTestDB(t, "tickets2").TicketStore()

	_, err := store.Resolve(context.Background(), "missing", "note", "staff1")
	if !domain.IsType(err, domain.ErrorTypeNotFound) {
		t.Errorf("Resolve() error = %v, want not_found", err)
	}
}

func TestTicketStore_ConcurrentResolveHasOneWinner(t *testing.T) {
	store := openTestDB(t, "tickets3").TicketStore()
	ctx := context.Background()

	created, err := store.Create(ctx, "u1", "input", "reason")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	const attempts = 10

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Resolve(ctx, created.ID, "race", "staff1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case domain.IsType(err, domain.ErrorTypeAlreadyResolved):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want 1", wins)
	}
}

func TestTicketStore_ListFilters(t *testing.T) {
	store := openTestDB(t, "tickets4").TicketStore()
	ctx := context.Background()

	t1, _ := store.Create(ctx, "u1", "a", "r")
	store.Create(ctx, "u1", "b", "r")
	store.Create(ctx, "u2", "c", "r")
	if _, err := store.Resolve(ctx, t1.ID, "done", "staff1"); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	tests := []struct {
		name   string
		filter ticket.Filter
		want   int
	}{
		{"all", ticket.Filter{}, 3},
		{"open", ticket.Filter{Status: domain.TicketOpen}, 2},
		{"resolved", ticket.Filter{Status: domain.TicketResolved}, 1},
		{"by owner", ticket.Filter{OwnerID: "u2"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() count = %d, want %d", len(got), tt.want)
			}
		})
	}
}
