package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mderk/daglinks"
)

const linkColumns = `id, entity_id, parent_id, path_id, depth, props`

// LinksByEntity returns all links where entity is the child endpoint.
func (r repo) LinksByEntity(ctx context.Context, ns string, entity int64) ([]daglinks.Link, error) {
	return r.queryLinks(ctx, "by entity",
		`SELECT `+linkColumns+` FROM dag_links WHERE namespace = $1 AND entity_id = $2 ORDER BY path_id, depth`,
		ns, entity)
}

// LinksByParent returns all links where parent is the parent endpoint.
func (r repo) LinksByParent(ctx context.Context, ns string, parent int64) ([]daglinks.Link, error) {
	return r.queryLinks(ctx, "by parent",
		`SELECT `+linkColumns+` FROM dag_links WHERE namespace = $1 AND parent_id = $2 ORDER BY path_id, depth`,
		ns, parent)
}

// LinksByEdge returns all links for the exact (entity, parent) pair, one per
// path id the edge participates in.
func (r repo) LinksByEdge(ctx context.Context, ns string, entity, parent int64) ([]daglinks.Link, error) {
	return r.queryLinks(ctx, "by edge",
		`SELECT `+linkColumns+` FROM dag_links WHERE namespace = $1 AND entity_id = $2 AND parent_id = $3 ORDER BY path_id`,
		ns, entity, parent)
}

// LinksByPathIDs returns all links in the given path ids ordered by
// (path_id, depth). An empty id set short-circuits without querying.
func (r repo) LinksByPathIDs(ctx context.Context, ns string, pathIDs []int64) ([]daglinks.Link, error) {
	if len(pathIDs) == 0 {
		return []daglinks.Link{}, nil
	}
	return r.queryLinks(ctx, "by path ids",
		`SELECT `+linkColumns+` FROM dag_links WHERE namespace = $1 AND path_id = ANY($2) ORDER BY path_id, depth`,
		ns, pathIDs)
}

// InsertLinks bulk-inserts links. Links without IDs get auto-generated UUIDs.
func (r repo) InsertLinks(ctx context.Context, ns string, links []daglinks.Link) error {
	for _, l := range links {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		props := l.Props
		if len(props) == 0 {
			props = []byte(`{}`)
		}
		if _, err := r.q.Exec(ctx,
			`INSERT INTO dag_links (id, namespace, entity_id, parent_id, path_id, depth, props) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			l.ID, ns, l.Entity, l.Parent, l.PathID, l.Depth, props,
		); err != nil {
			return fmt.Errorf("daglinks: insert link %s: %w", l.ID, err)
		}
	}
	return nil
}

// DeleteLinks removes links by row id. Unknown ids are ignored.
func (r repo) DeleteLinks(ctx context.Context, ns string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := r.q.Exec(ctx,
		`DELETE FROM dag_links WHERE namespace = $1 AND id = ANY($2)`, ns, ids,
	); err != nil {
		return fmt.Errorf("daglinks: delete links: %w", err)
	}
	return nil
}

// DeletePathPrefix removes every link of pathID at or above the given depth
// position, i.e. depth <= depth.
func (r repo) DeletePathPrefix(ctx context.Context, ns string, pathID int64, depth int) (int64, error) {
	ct, err := r.q.Exec(ctx,
		`DELETE FROM dag_links WHERE namespace = $1 AND path_id = $2 AND depth <= $3`,
		ns, pathID, depth)
	if err != nil {
		return 0, fmt.Errorf("daglinks: delete path prefix: %w", err)
	}
	return ct.RowsAffected(), nil
}

// RebaseTail moves the links of pathID below fromDepth under newPathID,
// renormalizing their depths to start at 1.
func (r repo) RebaseTail(ctx context.Context, ns string, pathID, newPathID int64, fromDepth int) (int64, error) {
	ct, err := r.q.Exec(ctx,
		`UPDATE dag_links SET path_id = $3, depth = depth - $4 WHERE namespace = $1 AND path_id = $2 AND depth > $4`,
		ns, pathID, newPathID, fromDepth)
	if err != nil {
		return 0, fmt.Errorf("daglinks: rebase tail: %w", err)
	}
	return ct.RowsAffected(), nil
}

func (r repo) queryLinks(ctx context.Context, op, sql string, args ...any) ([]daglinks.Link, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("daglinks: query links %s: %w", op, err)
	}
	defer rows.Close()

	links := []daglinks.Link{}
	for rows.Next() {
		var l daglinks.Link
		if err := rows.Scan(&l.ID, &l.Entity, &l.Parent, &l.PathID, &l.Depth, &l.Props); err != nil {
			return nil, fmt.Errorf("daglinks: scan link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("daglinks: rows links %s: %w", op, err)
	}

	return links, nil
}
