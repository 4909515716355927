// Package blacklist keeps the subject-keyed index consulted before every
// evaluation. The review store remains the record of truth; an index is
// warmed from it at start and written synchronously on every rejection.
package blacklist

import (
	"context"
	"sync"
	"time"

	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
)

// Index answers blacklist lookups. Lookup never returns an expired entry.
type Index interface {
	Put(ctx context.Context, e models.BlacklistEntry) error
	Lookup(ctx context.Context, subjectID id.SubjectID) (models.BlacklistEntry, bool, error)
}

// MemoryIndex is the in-process index.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[id.SubjectID]models.BlacklistEntry
	now     func() time.Time
}

type MemoryOption func(*MemoryIndex)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryIndex) {
		if now != nil {
			m.now = now
		}
	}
}

func NewMemory(opts ...MemoryOption) *MemoryIndex {
	m := &MemoryIndex{
		entries: make(map[id.SubjectID]models.BlacklistEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryIndex) Put(_ context.Context, e models.BlacklistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.SubjectID] = e
	return nil
}

func (m *MemoryIndex) Lookup(_ context.Context, subjectID id.SubjectID) (models.BlacklistEntry, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[subjectID]
	m.mu.RUnlock()
	if !ok {
		return models.BlacklistEntry{}, false, nil
	}
	if !e.Active(m.now()) {
		m.mu.Lock()
		if cur, ok := m.entries[subjectID]; ok && !cur.Active(m.now()) {
			delete(m.entries, subjectID)
		}
		m.mu.Unlock()
		return models.BlacklistEntry{}, false, nil
	}
	return e, true, nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
