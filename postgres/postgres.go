package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mderk/daglinks"
)

// querier is the subset of pgx shared by pgxpool.Pool and pgx.Tx, so the
// same repo methods serve auto-commit reads and transactional mutations.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements daglinks.Store using PostgreSQL via pgx.
type Store struct {
	pool *pgxpool.Pool
	repo
}

// New creates a new Store backed by the given pgx connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, repo: repo{q: pool}}
}

// InTx runs fn in a single transaction, rolling back on error.
func (s *Store) InTx(ctx context.Context, fn func(daglinks.Repo) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("daglinks: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(repo{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("daglinks: commit: %w", err)
	}
	return nil
}

// repo implements daglinks.Repo on top of a querier.
type repo struct {
	q querier
}
