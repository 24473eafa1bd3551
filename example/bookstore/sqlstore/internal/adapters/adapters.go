// Package adapters lets the book store run on pgxpool.Pool, sql.DB or sqlx.DB through one
// small interface. Statements are rendered by goqu beforehand, so adapters take plain SQL.
package adapters

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// DBAdapter is what the book store needs from a database connection.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
}

// DBRows iterates a query result.
type DBRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// DBResult reports the outcome of a statement.
type DBResult interface {
	RowsAffected() (int64, error)
}

// SQLAdapter implements DBAdapter for sql.DB, which covers lib/pq and modernc sqlite.
type SQLAdapter struct {
	db *sql.DB
}

// NewSQLAdapter creates a SQLAdapter.
func NewSQLAdapter(db *sql.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

// Query implements DBAdapter.
func (a *SQLAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Exec implements DBAdapter.
func (a *SQLAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	return a.db.ExecContext(ctx, query)
}

// SQLXAdapter implements DBAdapter for sqlx.DB.
type SQLXAdapter struct {
	db *sqlx.DB
}

// NewSQLXAdapter creates a SQLXAdapter.
func NewSQLXAdapter(db *sqlx.DB) *SQLXAdapter {
	return &SQLXAdapter{db: db}
}

// Query implements DBAdapter. The rows are sqlx rows, so callers scanning by position work
// the same as with sql.DB.
func (a *SQLXAdapter) Query(ctx context.Context, query string) (DBRows, error) {
	rows, err := a.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	return rows, nil
}

// Exec implements DBAdapter.
func (a *SQLXAdapter) Exec(ctx context.Context, query string) (DBResult, error) {
	return a.db.ExecContext(ctx, query)
}
