//go:build integration

package sql

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"skillcred/internal/platform/database"
	"skillcred/internal/review/models"
	"skillcred/pkg/platform/sentinel"
	"skillcred/pkg/testutil/containers"
)

// PostgresStoreSuite exercises the review store against a real Postgres.
//
// Justification: row-level locking under concurrent UPDATE differs from
// SQLite's single-writer model, so the compare-and-set is verified on both.
type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *Store
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = New(s.postgres.DB, database.DialectPostgres)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "review_cases", "blacklist"))
}

func (s *PostgresStoreSuite) TestConcurrentResolveExactlyOneWins() {
	ctx := context.Background()
	c, _, err := s.store.Insert(ctx, newCase("cand-1", "race"))
	s.Require().NoError(err)

	const goroutines = 20
	var wins, conflicts atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			decision := models.StatusApproved
			if i%2 == 0 {
				decision = models.StatusRejected
			}
			_, err := s.store.Resolve(ctx, c.ID, models.ResolveUpdate{Decision: decision, ResolvedAt: time.Now()})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestInsertIdempotentUnderRace() {
	ctx := context.Background()
	var wg sync.WaitGroup
	var created atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := s.store.Insert(ctx, newCase("cand-2", "same-condition"))
			if err == nil && ok {
				created.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), created.Load())

	all, err := s.store.List(ctx, models.Filter{SubjectID: "cand-2"})
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *PostgresStoreSuite) TestResolveAndBlacklistShareTransaction() {
	ctx := context.Background()
	c, _, err := s.store.Insert(ctx, newCase("cand-3", "tx"))
	s.Require().NoError(err)

	boom := errors.New("publish failed")
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.Resolve(ctx, c.ID, models.ResolveUpdate{Decision: models.StatusRejected, ResolvedAt: time.Now()}); err != nil {
			return err
		}
		if err := s.store.PutBlacklist(ctx, models.BlacklistEntry{SubjectID: "cand-3", ReviewID: c.ID, Reason: "r", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	entries, err := s.store.ListBlacklist(ctx)
	s.Require().NoError(err)
	s.Empty(entries)
}
