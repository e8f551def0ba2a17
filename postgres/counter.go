package postgres

import (
	"context"
	"fmt"
)

// NextPathID increments and returns the path-id counter for a namespace.
// The counter row is created at zero on first use, then read with a row
// lock so concurrent allocators in different transactions serialize instead
// of racing. Outside a transaction the lock is released immediately, so
// callers needing uniqueness guarantees must run this inside InTx.
func (r repo) NextPathID(ctx context.Context, ns string) (int64, error) {
	if _, err := r.q.Exec(ctx,
		`INSERT INTO dag_path_ids (namespace, value) VALUES ($1, 0) ON CONFLICT (namespace) DO NOTHING`,
		ns,
	); err != nil {
		return 0, fmt.Errorf("daglinks: ensure counter: %w", err)
	}

	var current int64
	if err := r.q.QueryRow(ctx,
		`SELECT value FROM dag_path_ids WHERE namespace = $1 FOR UPDATE`, ns,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("daglinks: lock counter: %w", err)
	}

	var next int64
	if err := r.q.QueryRow(ctx,
		`UPDATE dag_path_ids SET value = value + 1 WHERE namespace = $1 RETURNING value`, ns,
	).Scan(&next); err != nil {
		return 0, fmt.Errorf("daglinks: increment counter: %w", err)
	}
	return next, nil
}
