// Package progress keeps the live, process-local view of document ingestion.
//
// Entries are lost on restart; the durable document record stays authoritative.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/timmy/doclens/internal/domain"
)

// Tracker maps document IDs to progress entries. It is safe for concurrent use:
// many status readers run alongside many ingestion workers.
type Tracker struct {
	mu      sync.RWMutex
	entries map[uint]domain.Progress
	now     func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[uint]domain.Progress),
		now:     time.Now,
	}
}

func rank(s domain.DocumentStatus) int {
	switch s {
	case domain.DocumentStatusUploading:
		return 0
	case domain.DocumentStatusProcessing:
		return 1
	case domain.DocumentStatusCompleted, domain.DocumentStatusFailed:
		return 2
	default:
		return -1
	}
}

// Seed creates the entry for a freshly uploaded document, replacing any stale one.
func (t *Tracker) Seed(p domain.Progress) {
	p.UpdatedAt = t.now()
	t.mu.Lock()
	t.entries[p.DocumentID] = p
	t.mu.Unlock()
}

// Advance moves an existing entry forward. Progress never decreases, status never
// regresses and terminal entries are frozen. Returns false when the update was
// dropped because the entry is missing or the move would go backwards.
func (t *Tracker) Advance(id uint, status domain.DocumentStatus, progress float64, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.entries[id]
	if !ok || cur.Status.IsTerminal() || rank(status) < rank(cur.Status) {
		return false
	}

	cur.Status = status
	if progress > cur.Progress {
		cur.Progress = progress
	}
	if message != "" {
		cur.Message = message
	}
	cur.UpdatedAt = t.now()
	t.entries[id] = cur
	return true
}

// Get returns a copy of the entry for id.
func (t *Tracker) Get(id uint) (domain.Progress, bool) {
	t.mu.RLock()
	p, ok := t.entries[id]
	t.mu.RUnlock()
	return p, ok
}

// Forget drops the entry for id.
func (t *Tracker) Forget(id uint) {
	t.mu.Lock()
	delete(t.entries, id)
	t.mu.Unlock()
}

// Len returns the number of tracked documents.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Sweep evicts terminal entries last updated more than retention ago and returns
// how many were removed. In-flight entries are never evicted.
func (t *Tracker) Sweep(retention time.Duration) int {
	cutoff := t.now().Add(-retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, p := range t.entries {
		if p.Status.IsTerminal() && p.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
			removed++
		}
	}
	return removed
}

// RunJanitor sweeps every interval until ctx is done.
func (t *Tracker) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(retention)
		}
	}
}
