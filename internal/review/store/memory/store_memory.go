package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/sentinel"
)

// record guards one case. Resolution takes only the record's lock, so
// unrelated cases never contend.
type record struct {
	mu sync.Mutex
	c  models.Case
}

// InMemoryStore implements the review store for tests and single-process
// deployments.
type InMemoryStore struct {
	mu        sync.RWMutex
	cases     map[id.ReviewID]*record
	byKey     map[string]id.ReviewID
	order     []id.ReviewID
	blacklist map[id.SubjectID]models.BlacklistEntry
}

func New() *InMemoryStore {
	return &InMemoryStore{
		cases:     make(map[id.ReviewID]*record),
		byKey:     make(map[string]id.ReviewID),
		blacklist: make(map[id.SubjectID]models.BlacklistEntry),
	}
}

// RunInTx runs fn directly. Each call below is atomic on its own; a failing
// fn does not undo earlier writes.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Insert stores c unless a case with the same idempotency key exists, in
// which case the existing case is returned with created=false.
func (s *InMemoryStore) Insert(_ context.Context, c *models.Case) (*models.Case, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.byKey[c.IdempotencyKey]; ok && c.IdempotencyKey != "" {
		r := s.cases[existing]
		r.mu.Lock()
		defer r.mu.Unlock()
		return cloneCase(r.c), false, nil
	}
	if _, ok := s.cases[c.ID]; ok {
		return nil, false, fmt.Errorf("review %s: %w", c.ID, sentinel.ErrConflict)
	}
	s.cases[c.ID] = &record{c: *cloneCase(*c)}
	if c.IdempotencyKey != "" {
		s.byKey[c.IdempotencyKey] = c.ID
	}
	s.order = append(s.order, c.ID)
	return cloneCase(*c), true, nil
}

func (s *InMemoryStore) Get(_ context.Context, reviewID id.ReviewID) (*models.Case, error) {
	s.mu.RLock()
	r, ok := s.cases[reviewID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneCase(r.c), nil
}

// List returns matching cases oldest first.
func (s *InMemoryStore) List(_ context.Context, f models.Filter) ([]*models.Case, error) {
	s.mu.RLock()
	ids := append([]id.ReviewID(nil), s.order...)
	recs := make([]*record, len(ids))
	for i, rid := range ids {
		recs[i] = s.cases[rid]
	}
	s.mu.RUnlock()

	out := make([]*models.Case, 0, len(recs))
	for _, r := range recs {
		r.mu.Lock()
		c := cloneCase(r.c)
		r.mu.Unlock()
		if !f.Matches(c) {
			continue
		}
		out = append(out, c)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Resolve moves a PENDING case to its decision. A case that is no longer
// PENDING yields sentinel.ErrConflict and is left untouched.
func (s *InMemoryStore) Resolve(_ context.Context, reviewID id.ReviewID, u models.ResolveUpdate) (*models.Case, error) {
	s.mu.RLock()
	r, ok := s.cases[reviewID]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c.Status != models.StatusPending {
		return nil, fmt.Errorf("review %s is %s: %w", reviewID, r.c.Status, sentinel.ErrConflict)
	}
	resolvedAt := u.ResolvedAt
	r.c.Status = u.Decision
	r.c.Decision = u.Decision
	r.c.Notes = u.Notes
	r.c.ReviewerID = u.ReviewerID
	r.c.ResolvedAt = &resolvedAt
	return cloneCase(r.c), nil
}

// PutBlacklist stores e, replacing any entry for the same subject.
func (s *InMemoryStore) PutBlacklist(_ context.Context, e models.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[e.SubjectID] = e
	return nil
}

func (s *InMemoryStore) ListBlacklist(_ context.Context) ([]models.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BlacklistEntry, 0, len(s.blacklist))
	for _, e := range s.blacklist {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

func cloneCase(c models.Case) *models.Case {
	out := c
	if c.Evidence != nil {
		out.Evidence = append([]byte(nil), c.Evidence...)
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		out.ResolvedAt = &t
	}
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	return &out
}
