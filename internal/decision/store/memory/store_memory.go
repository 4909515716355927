package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"skillcred/internal/decision/models"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/sentinel"
)

// InMemoryStore keeps each subject's decision chain in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	chains map[id.SubjectID][]*models.Decision
}

func New() *InMemoryStore {
	return &InMemoryStore{chains: make(map[id.SubjectID][]*models.Decision)}
}

// Append adds d when d.Version directly follows the stored chain.
func (s *InMemoryStore) Append(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	chain := s.chains[d.SubjectID]
	if d.Version != len(chain)+1 {
		return fmt.Errorf("decision version %d for %s, chain has %d: %w", d.Version, d.SubjectID, len(chain), sentinel.ErrConflict)
	}
	s.chains[d.SubjectID] = append(chain, clone(d))
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, subjectID id.SubjectID) (*models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[subjectID]
	if len(chain) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return clone(chain[len(chain)-1]), nil
}

// History returns every version, oldest first.
func (s *InMemoryStore) History(_ context.Context, subjectID id.SubjectID) ([]*models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chain := s.chains[subjectID]
	out := make([]*models.Decision, 0, len(chain))
	for _, d := range chain {
		out = append(out, clone(d))
	}
	return out, nil
}

func clone(d *models.Decision) *models.Decision {
	out := *d
	out.VerifiedSkills = slices.Clone(d.VerifiedSkills)
	return &out
}
