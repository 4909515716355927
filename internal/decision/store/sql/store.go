// Package sql persists decision chains. Each version is one row; the
// (subject_id, version) key makes a stale append lose instead of overwrite.
package sql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"skillcred/internal/decision/models"
	"skillcred/internal/platform/database"
	id "skillcred/pkg/domain"
	"skillcred/pkg/platform/sentinel"
	"skillcred/pkg/platform/tx"
)

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

// EnsureSchema creates the table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ts := "TIMESTAMPTZ"
	if s.dialect == database.DialectSQLite {
		ts = "TIMESTAMP"
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		previous_id TEXT,
		status TEXT NOT NULL,
		bundle_ref TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at `+ts+` NOT NULL,
		UNIQUE (subject_id, version)
	)`)
	if err != nil {
		return fmt.Errorf("ensure decision schema: %w", err)
	}
	return nil
}

// Append inserts d when d.Version directly follows the stored chain.
func (s *Store) Append(ctx context.Context, d *models.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	var previous any
	if d.PreviousID != nil {
		previous = d.PreviousID.String()
	}

	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		conn := tx.Conn(ctx, s.db)
		var latest sql.NullInt64
		err := conn.QueryRowContext(ctx,
			s.q(`SELECT MAX(version) FROM decisions WHERE subject_id = ?`),
			d.SubjectID.String(),
		).Scan(&latest)
		if err != nil {
			return fmt.Errorf("read decision version: %w", err)
		}
		if int64(d.Version) != latest.Int64+1 {
			return fmt.Errorf("decision version %d for %s, chain has %d: %w", d.Version, d.SubjectID, latest.Int64, sentinel.ErrConflict)
		}

		res, err := conn.ExecContext(ctx, s.q(`
			INSERT INTO decisions (id, subject_id, version, previous_id, status, bundle_ref, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (subject_id, version) DO NOTHING
		`),
			d.ID.String(),
			d.SubjectID.String(),
			d.Version,
			previous,
			string(d.Status),
			d.BundleRef,
			string(payload),
			d.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert decision rows affected: %w", err)
		}
		if rows == 0 {
			return fmt.Errorf("decision version %d for %s already exists: %w", d.Version, d.SubjectID, sentinel.ErrConflict)
		}
		return nil
	})
}

func (s *Store) Latest(ctx context.Context, subjectID id.SubjectID) (*models.Decision, error) {
	var payload string
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		s.q(`SELECT payload FROM decisions WHERE subject_id = ? ORDER BY version DESC LIMIT 1`),
		subjectID.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest decision: %w", err)
	}
	return decode(payload)
}

// History returns every version, oldest first.
func (s *Store) History(ctx context.Context, subjectID id.SubjectID) ([]*models.Decision, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		s.q(`SELECT payload FROM decisions WHERE subject_id = ? ORDER BY version`),
		subjectID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("decision history: %w", err)
	}
	defer rows.Close()

	var out []*models.Decision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		d, err := decode(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("decision history: %w", err)
	}
	return out, nil
}

func decode(payload string) (*models.Decision, error) {
	var d models.Decision
	if err := json.Unmarshal([]byte(payload), &d); err != nil {
		return nil, fmt.Errorf("decode stored decision: %w", err)
	}
	return &d, nil
}
