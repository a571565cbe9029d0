// Package webhook verifies signed billing notifications and deduplicates
// them under replay conditions.
package webhook

import (
	"context"
	"sync"
	"time"
)

// Ledger records processed event identifiers. An identifier present in the
// ledger is never reprocessed.
type Ledger interface {
	// MarkIfNew atomically records the event identifier. It reports false
	// when the identifier was already present; concurrent calls for the
	// same identifier see true exactly once.
	MarkIfNew(ctx context.Context, eventID string) (firstSeen bool, err error)
	// Forget releases an identifier whose business effect failed, so the
	// sender's retry is not treated as a duplicate.
	Forget(ctx context.Context, eventID string) error
}

// MemoryLedger is a bounded, insertion-ordered in-process ledger. When the
// capacity is exceeded the oldest entry is evicted. Size never exceeds the
// configured capacity.
type MemoryLedger struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]time.Time
	order    []string // insertion order, oldest first
}

// NewMemoryLedger creates a ledger holding at most capacity identifiers.
func NewMemoryLedger(capacity int) *MemoryLedger {
	return &MemoryLedger{
		capacity: capacity,
		entries:  make(map[string]time.Time, capacity),
	}
}

// MarkIfNew implements Ledger. Check and insert happen under one lock, so
// concurrent deliveries of the same identifier cannot both claim it.
func (l *MemoryLedger) MarkIfNew(_ context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[eventID]; ok {
		return false, nil
	}

	l.entries[eventID] = time.Now()
	l.order = append(l.order, eventID)

	for len(l.entries) > l.capacity {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
	}
	return true, nil
}

// Forget implements Ledger.
func (l *MemoryLedger) Forget(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[eventID]; !ok {
		return nil
	}
	delete(l.entries, eventID)
	for i, id := range l.order {
		if id == eventID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of recorded identifiers.
func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
