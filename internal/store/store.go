// Package store persists generation records, generation jobs and provider
// usage in PostgreSQL.
//
// Every mutation is a single statement. Callers do all external I/O first
// and commit the outcome with one write.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors.
var (
	// ErrNotFound indicates no row matched.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique or foreign key constraint rejected the write.
	ErrConflict = errors.New("conflict")

	// ErrInvalidData indicates a not-null or check constraint rejected the write.
	ErrInvalidData = errors.New("invalid data")

	// ErrJobFinished indicates a transition was attempted on a terminal or missing job.
	ErrJobFinished = errors.New("job already finished")
)

// Pool is the subset of *pgxpool.Pool used by the repositories.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Compile-time interface compliance check.
var _ Pool = (*pgxpool.Pool)(nil)

// Open parses databaseURL, connects a pool and pings it.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// mapError wraps err with op and classifies PostgreSQL failures.
func mapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch pgErr.Code {
	case "23505", "23503": // unique_violation, foreign_key_violation
		return fmt.Errorf("%s: %s: %w", op, pgErr.ConstraintName, ErrConflict)
	case "23502", "23514": // not_null_violation, check_violation
		return fmt.Errorf("%s: %s: %w", op, pgErr.Message, ErrInvalidData)
	default:
		return fmt.Errorf("%s: database error (PostgreSQL code %s): %w", op, pgErr.Code, err)
	}
}
