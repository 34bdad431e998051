// Package sqlite provides the durable backing store for the audit log and
// the escalation-ticket table. Both survive process restarts: the audit log
// is an ordered append-only table keyed by an autoincrement sequence, and
// tickets transition in place under a compare-and-swap update.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/primebank/guardrail/internal/audit"
	"github.com/primebank/guardrail/internal/domain"
	"github.com/primebank/guardrail/internal/ticket"
)

// DB wraps one SQLite database holding both guardrail tables.
type DB struct {
	db *sqlx.DB
}

// Open opens (or creates) the database at path and initializes the schema.
// For plain file paths the parent directory is created if missing, so the
// default ./data location works on first run.
func Open(path string) (*DB, error) {
	if !strings.HasPrefix(path, "file:") && !strings.HasPrefix(path, ":memory:") {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	d := &DB{db: db}
	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return d, nil
}

func (d *DB) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			action TEXT NOT NULL,
			details TEXT,
			success INTEGER NOT NULL,
			error TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			original_input TEXT NOT NULL,
			reasoning TEXT NOT NULL,
			status TEXT NOT NULL,
			resolution_note TEXT,
			resolved_by TEXT,
			created_at TIMESTAMP NOT NULL,
			resolved_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_log(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_actor ON tickets(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status)`,
	}

	for _, stmt := range statements {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// AuditLog returns the audit.Log view of the database.
func (d *DB) AuditLog() *AuditLog {
	return &AuditLog{db: d.db}
}

// TicketStore returns the ticket.Store view of the database.
func (d *DB) TicketStore() *TicketStore {
	return &TicketStore{db: d.db}
}

// AuditLog implements audit.Log over the audit_log table.
type AuditLog struct {
	db *sqlx.DB
}

var _ audit.Log = (*AuditLog)(nil)

// Append writes an audit entry and returns the assigned sequence number.
// The autoincrement column under SQLite's single-writer lock is the
// serialization point for concurrent writers.
func (l *AuditLog) Append(ctx context.Context, entry domain.AuditEntry) (int64, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	details, err := json.Marshal(entry.Details)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal details: %w", err)
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (event_type, actor_id, action, details, success, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.EventType, entry.ActorID, entry.Action, string(details),
		entry.Success, entry.Error, entry.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to append audit entry: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence number: %w", err)
	}
	return seq, nil
}

type auditRow struct {
	Seq       int64     `db:"seq"`
	EventType string    `db:"event_type"`
	ActorID   string    `db:"actor_id"`
	Action    string    `db:"action"`
	Details   string    `db:"details"`
	Success   bool      `db:"success"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}

// List returns audit entries in sequence order, filtered by opts.
func (l *AuditLog) List(ctx context.Context, opts audit.ListOptions) ([]domain.AuditEntry, error) {
	query := `SELECT seq, event_type, actor_id, action, COALESCE(details, '') AS details,
	          success, COALESCE(error, '') AS error, created_at
	          FROM audit_log WHERE seq > ?`
	args := []any{opts.SinceSeq}

	if opts.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, opts.EventType)
	}
	if opts.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, opts.ActorID)
	}
	query += " ORDER BY seq"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var rows []auditRow
	if err := l.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}

	out := make([]domain.AuditEntry, 0, len(rows))
	for _, r := range rows {
		entry := domain.AuditEntry{
			Seq:       r.Seq,
			EventType: r.EventType,
			ActorID:   r.ActorID,
			Action:    r.Action,
			Success:   r.Success,
			Error:     r.Error,
			Timestamp: r.CreatedAt,
		}
		if r.Details != "" && r.Details != "null" {
			if err := json.Unmarshal([]byte(r.Details), &entry.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details for seq %d: %w", r.Seq, err)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// TicketStore implements ticket.Store over the tickets table.
type TicketStore struct {
	db *sqlx.DB
}

var _ ticket.Store = (*TicketStore)(nil)

// Create stores a new OPEN ticket.
func (s *TicketStore) Create(ctx context.Context, actorID, originalInput, reasoning string) (*domain.EscalationTicket, error) {
	t := &domain.EscalationTicket{
		ID:            uuid.New().String(),
		ActorID:       actorID,
		OriginalInput: originalInput,
		Reasoning:     reasoning,
		Status:        domain.TicketOpen,
		CreatedAt:     time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, actor_id, original_input, reasoning, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ActorID, t.OriginalInput, t.Reasoning, string(t.Status), t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	return t, nil
}

type ticketRow struct {
	ID             string       `db:"id"`
	ActorID        string       `db:"actor_id"`
	OriginalInput  string       `db:"original_input"`
	Reasoning      string       `db:"reasoning"`
	Status         string       `db:"status"`
	ResolutionNote string       `db:"resolution_note"`
	ResolvedBy     string       `db:"resolved_by"`
	CreatedAt      time.Time    `db:"created_at"`
	ResolvedAt     sql.NullTime `db:"resolved_at"`
}

func (r ticketRow) toDomain() domain.EscalationTicket {
	t := domain.EscalationTicket{
		ID:             r.ID,
		ActorID:        r.ActorID,
		OriginalInput:  r.OriginalInput,
		Reasoning:      r.Reasoning,
		Status:         domain.TicketStatus(r.Status),
		ResolutionNote: r.ResolutionNote,
		ResolvedBy:     r.ResolvedBy,
		CreatedAt:      r.CreatedAt,
	}
	if r.ResolvedAt.Valid {
		at := r.ResolvedAt.Time
		t.ResolvedAt = &at
	}
	return t
}

const ticketColumns = `id, actor_id, original_input, reasoning, status,
	COALESCE(resolution_note, '') AS resolution_note,
	COALESCE(resolved_by, '') AS resolved_by,
	created_at, resolved_at`

// Get returns a ticket by id, or NotFound.
func (s *TicketStore) Get(ctx context.Context, id string) (*domain.EscalationTicket, error) {
	var row ticketRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound("ticket " + id + " not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	t := row.toDomain()
	return &t, nil
}

// Resolve transitions the ticket OPEN -> RESOLVED. The conditional UPDATE
// is the compare-and-swap: with concurrent resolvers exactly one update
// matches the OPEN row.
func (s *TicketStore) Resolve(ctx context.Context, id, note, resolvedBy string) (*domain.EscalationTicket, error) {
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE tickets SET status = ?, resolution_note = ?, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND status = ?`,
		string(domain.TicketResolved), note, resolvedBy, now, id, string(domain.TicketOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ticket: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing ticket from a lost race.
		existing, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.Status == domain.TicketResolved {
			return nil, domain.ErrAlreadyResolved("ticket " + id + " is already resolved")
		}
		return nil, fmt.Errorf("resolve matched no rows for ticket %s in status %s", id, existing.Status)
	}

	return s.Get(ctx, id)
}

// List returns tickets matching the filter, ordered by creation time.
func (s *TicketStore) List(ctx context.Context, filter ticket.Filter) ([]domain.EscalationTicket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.OwnerID != "" {
		query += " AND actor_id = ?"
		args = append(args, filter.OwnerID)
	}
	query += " ORDER BY created_at, id"

	var rows []ticketRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	out := make([]domain.EscalationTicket, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
