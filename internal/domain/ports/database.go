package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the common query interface satisfied by both pgxpool.Pool and pgx.Tx.
// Repositories take it explicitly so callers decide whether a call joins an
// open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPort defines database access for services
type DBPort interface {
	GetDB() *pgxpool.Pool

	// WithTransaction executes fn within a database transaction; any error
	// rolls the whole transaction back
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}
