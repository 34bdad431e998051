package audit

import (
	"context"
	"sync"
	"time"

	"github.com/primebank/guardrail/internal/domain"
)

// MemoryLog is an in-process Log. Sequence assignment and the entry slice
// share one mutex, so appends from concurrent requests interleave without
// losing or duplicating a sequence number.
type MemoryLog struct {
	mu      sync.Mutex
	nextSeq int64
	entries []domain.AuditEntry
}

var _ Log = (*MemoryLog)(nil)

// NewMemoryLog creates an empty in-memory audit log. Sequence numbers start
// at 1.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{nextSeq: 1}
}

// Append records the entry and returns its assigned sequence number.
func (l *MemoryLog) Append(ctx context.Context, entry domain.AuditEntry) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry.Seq = l.nextSeq
	l.nextSeq++
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.entries = append(l.entries, entry)

	return entry.Seq, nil
}

// List returns entries in sequence order, filtered by opts.
func (l *MemoryLog) List(ctx context.Context, opts ListOptions) ([]domain.AuditEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []domain.AuditEntry
	for _, e := range l.entries {
		if opts.EventType != "" && e.EventType != opts.EventType {
			continue
		}
		if opts.ActorID != "" && e.ActorID != opts.ActorID {
			continue
		}
		if e.Seq <= opts.SinceSeq {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}

	return out, nil
}
