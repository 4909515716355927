// Package sql persists review cases and blacklist entries in Postgres or
// SQLite. Resolution is a single conditional UPDATE on the case row, so
// concurrent resolvers of one case race on the database and exactly one
// wins.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"skillcred/internal/integrity"
	"skillcred/internal/platform/database"
	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/sentinel"
	"skillcred/pkg/platform/tx"
)

const caseColumns = `id, idempotency_key, subject_id, job_id, triggered_by, severity, reason,
	evidence, evidence_hash, action_taken, status, decision, notes, reviewer_id, parent_id,
	created_at, resolved_at`

type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

func New(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) q(query string) string {
	return database.Rebind(s.dialect, query)
}

// EnsureSchema creates the tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if s.dialect == database.DialectSQLite {
		ts = "TIMESTAMP"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS review_cases (
			id TEXT PRIMARY KEY,
			idempotency_key TEXT NOT NULL UNIQUE,
			subject_id TEXT NOT NULL,
			job_id TEXT NOT NULL DEFAULT '',
			triggered_by TEXT NOT NULL,
			severity TEXT NOT NULL,
			reason TEXT NOT NULL,
			evidence TEXT NOT NULL,
			evidence_hash TEXT NOT NULL,
			action_taken TEXT NOT NULL,
			status TEXT NOT NULL,
			decision TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			reviewer_id TEXT NOT NULL DEFAULT '',
			parent_id TEXT,
			created_at ` + ts + ` NOT NULL,
			resolved_at ` + ts + `
		)`,
		`CREATE INDEX IF NOT EXISTS review_cases_status_idx ON review_cases (status, created_at)`,
		`CREATE INDEX IF NOT EXISTS review_cases_subject_idx ON review_cases (subject_id)`,
		`CREATE TABLE IF NOT EXISTS blacklist (
			subject_id TEXT PRIMARY KEY,
			review_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			created_at ` + ts + ` NOT NULL,
			expires_at ` + ts + `
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure review schema: %w", err)
		}
	}
	return nil
}

// RunInTx runs fn in one transaction; stores called with the passed context
// join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

// Insert writes c unless its idempotency key already exists, in which case
// the stored case is returned with created=false.
func (s *Store) Insert(ctx context.Context, c *models.Case) (*models.Case, bool, error) {
	var parent any
	if c.ParentID != nil {
		parent = c.ParentID.String()
	}
	query := s.q(`
		INSERT INTO review_cases (` + caseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING
	`)
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		c.ID.String(),
		c.IdempotencyKey,
		string(c.SubjectID),
		c.JobID,
		string(c.TriggeredBy),
		c.Severity.String(),
		c.Reason,
		string(c.Evidence),
		c.EvidenceHash,
		string(c.ActionTaken),
		string(c.Status),
		string(c.Decision),
		c.Notes,
		c.ReviewerID,
		parent,
		c.CreatedAt.UTC(),
		nullTime(c.ResolvedAt),
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert review case: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert review case rows affected: %w", err)
	}
	if rows == 0 {
		existing, err := s.getBy(ctx, "idempotency_key", c.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	out := *c
	return &out, true, nil
}

func (s *Store) Get(ctx context.Context, reviewID id.ReviewID) (*models.Case, error) {
	return s.getBy(ctx, "id", reviewID.String())
}

func (s *Store) getBy(ctx context.Context, column, value string) (*models.Case, error) {
	query := s.q(`SELECT ` + caseColumns + ` FROM review_cases WHERE ` + column + ` = ?`)
	c, err := scanCase(tx.Conn(ctx, s.db).QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get review case: %w", err)
	}
	return c, nil
}

// List returns matching cases oldest first.
func (s *Store) List(ctx context.Context, f models.Filter) ([]*models.Case, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.SubjectID != "" {
		where = append(where, "subject_id = ?")
		args = append(args, string(f.SubjectID))
	}
	query := `SELECT ` + caseColumns + ` FROM review_cases`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	defer rows.Close()

	var out []*models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	return out, nil
}

// Resolve applies u only while the case is PENDING.
func (s *Store) Resolve(ctx context.Context, reviewID id.ReviewID, u models.ResolveUpdate) (*models.Case, error) {
	query := s.q(`
		UPDATE review_cases
		SET status = ?, decision = ?, notes = ?, reviewer_id = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`)
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		string(u.Decision),
		string(u.Decision),
		u.Notes,
		u.ReviewerID,
		u.ResolvedAt.UTC(),
		reviewID.String(),
		string(models.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve review case: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("resolve review case rows affected: %w", err)
	}
	current, err := s.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("review %s is %s: %w", reviewID, current.Status, sentinel.ErrConflict)
	}
	return current, nil
}

// PutBlacklist upserts the entry for e.SubjectID.
func (s *Store) PutBlacklist(ctx context.Context, e models.BlacklistEntry) error {
	query := s.q(`
		INSERT INTO blacklist (subject_id, review_id, reason, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject_id) DO UPDATE SET
			review_id = EXCLUDED.review_id,
			reason = EXCLUDED.reason,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`)
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		string(e.SubjectID),
		e.ReviewID.String(),
		e.Reason,
		e.CreatedAt.UTC(),
		nullTime(e.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put blacklist entry: %w", err)
	}
	return nil
}

func (s *Store) ListBlacklist(ctx context.Context) ([]models.BlacklistEntry, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT subject_id, review_id, reason, created_at, expires_at FROM blacklist ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var out []models.BlacklistEntry
	for rows.Next() {
		var (
			e        models.BlacklistEntry
			subject  string
			reviewID string
			expires  sql.NullTime
		)
		if err := rows.Scan(&subject, &reviewID, &e.Reason, &e.CreatedAt, &expires); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		e.SubjectID = id.SubjectID(subject)
		if rid, err := id.ParseReviewID(reviewID); err == nil {
			e.ReviewID = rid
		}
		if expires.Valid {
			t := expires.Time
			e.ExpiresAt = &t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*models.Case, error) {
	var (
		c        models.Case
		rid      string
		subject  string
		trigger  string
		severity string
		evidence string
		action   string
		status   string
		decision string
		parent   sql.NullString
		resolved sql.NullTime
	)
	err := row.Scan(
		&rid, &c.IdempotencyKey, &subject, &c.JobID, &trigger, &severity, &c.Reason,
		&evidence, &c.EvidenceHash, &action, &status, &decision, &c.Notes, &c.ReviewerID, &parent,
		&c.CreatedAt, &resolved,
	)
	if err != nil {
		return nil, err
	}
	if c.ID, err = id.ParseReviewID(rid); err != nil {
		return nil, fmt.Errorf("stored review id: %w", err)
	}
	if c.Severity, err = integrity.ParseSeverity(severity); err != nil {
		return nil, fmt.Errorf("stored severity: %w", err)
	}
	c.SubjectID = id.SubjectID(subject)
	c.TriggeredBy = models.Trigger(trigger)
	c.Evidence = json.RawMessage(evidence)
	c.ActionTaken = integrity.Action(action)
	c.Status = models.Status(status)
	c.Decision = models.Status(decision)
	if parent.Valid {
		p, err := id.ParseReviewID(parent.String)
		if err != nil {
			return nil, fmt.Errorf("stored parent id: %w", err)
		}
		c.ParentID = &p
	}
	if resolved.Valid {
		t := resolved.Time
		c.ResolvedAt = &t
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
