package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillcred/internal/decision/models"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/sentinel"
)

func decision(subject string, version int, status models.Status) *models.Decision {
	return &models.Decision{ID: id.NewDecisionID(), SubjectID: id.SubjectID(subject), Version: version, Status: status}
}

func TestAppendAndLatest(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.Latest(ctx, "cand-1")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	require.NoError(t, s.Append(ctx, decision("cand-1", 1, models.StatusPendingTest)))
	require.NoError(t, s.Append(ctx, decision("cand-1", 2, models.StatusVerified)))

	latest, err := s.Latest(ctx, "cand-1")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Equal(t, models.StatusVerified, latest.Status)

	history, err := s.History(ctx, "cand-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAppendRejectsStaleOrSkippedVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, decision("cand-1", 1, models.StatusPendingTest)))

	assert.ErrorIs(t, s.Append(ctx, decision("cand-1", 1, models.StatusVerified)), sentinel.ErrConflict)
	assert.ErrorIs(t, s.Append(ctx, decision("cand-1", 3, models.StatusVerified)), sentinel.ErrConflict)
}

func TestConcurrentAppendSameVersionOneWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Append(ctx, decision("cand-1", 1, models.StatusVerified)) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestReturnedDecisionsAreCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	d := decision("cand-1", 1, models.StatusVerified)
	d.VerifiedSkills = []string{"go"}
	require.NoError(t, s.Append(ctx, d))

	got, _ := s.Latest(ctx, "cand-1")
	got.VerifiedSkills[0] = "tampered"

	again, _ := s.Latest(ctx, "cand-1")
	assert.Equal(t, []string{"go"}, again.VerifiedSkills)
}
