// Package database opens the SQL backends used by the review store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect distinguishes placeholder and upsert syntax between backends.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Open connects to store ("postgres" or "sqlite") and verifies the
// connection. SQLite connections are limited to one writer.
func Open(ctx context.Context, store, dsn string) (*sql.DB, Dialect, error) {
	var (
		driver  string
		dialect Dialect
	)
	switch store {
	case "postgres":
		driver, dialect = "postgres", DialectPostgres
	case "sqlite":
		driver, dialect = "sqlite", DialectSQLite
	default:
		return nil, "", fmt.Errorf("unsupported store %q", store)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", store, err)
	}
	if dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, "", fmt.Errorf("ping %s: %w", store, err)
	}
	return db, dialect, nil
}

// Rebind rewrites "?" placeholders to "$n" for Postgres. Queries must not
// contain literal question marks.
func Rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
