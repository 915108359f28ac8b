// Package store persists trust accounting state in SQLite.
//
// All money columns are TEXT holding fixed two-place decimals; arithmetic
// happens in decimal.Decimal, never in SQL. Every write that touches a
// balance runs inside WithTx, and the DSN built by DSN opens transactions
// with BEGIN IMMEDIATE so concurrent read-modify-write cycles serialize on
// the database write lock instead of losing updates.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DB owns the database handle.
type DB struct {
	db *sql.DB
}

// DSN returns a modernc sqlite DSN for a database file.
func DSN(path string, busyTimeoutMS int) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open opens the database and applies the schema.
func Open(ctx context.Context, dsn string, maxOpenConns int) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Queries returns queries bound to the pool, for reads outside a unit of work.
func (d *DB) Queries() *Queries {
	return &Queries{q: d.db}
}

// WithTx runs fn inside one database transaction. The transaction commits
// when fn returns nil and rolls back on error or panic.
// fn must use only the Queries it is given.
func (d *DB) WithTx(ctx context.Context, fn func(q *Queries) error) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries exposes typed statements over either the pool or a transaction.
type Queries struct {
	q querier
}
