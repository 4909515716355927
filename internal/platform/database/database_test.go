package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", Rebind(DialectPostgres, q))
	assert.Equal(t, q, Rebind(DialectSQLite, q))
}

func TestOpen_SQLiteInMemory(t *testing.T) {
	db, dialect, err := Open(context.Background(), "sqlite", "file:open_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DialectSQLite, dialect)
}

func TestOpen_UnknownStore(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
