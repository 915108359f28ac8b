// Package storetest opens throwaway databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trustledger/trustledger/internal/store"
)

// Open returns a migrated database file in a temp dir, closed on cleanup.
func Open(t testing.TB) *store.DB {
	t.Helper()
	return OpenPool(t, 1)
}

// OpenPool is Open with a pool of conns connections, so concurrent units of
// work contend on the SQLite write lock instead of queueing for a connection.
func OpenPool(t testing.TB, conns int) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trust.db")
	db, err := store.Open(context.Background(), store.DSN(path, 10000), conns)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
