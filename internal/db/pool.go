// Package db defines the minimal PostgreSQL pool surface the store layer
// depends on, so tests can substitute pgxmock for a live pgxpool.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of pgxpool.Pool used by the PostgresStore. Satisfied by
// both *pgxpool.Pool and pgxmock.PgxPoolIface.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}
