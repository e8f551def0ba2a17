package postgres

import "context"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dag_links (
    id         TEXT PRIMARY KEY,
    namespace  TEXT NOT NULL,
    entity_id  BIGINT NOT NULL,
    parent_id  BIGINT NOT NULL,
    path_id    BIGINT NOT NULL,
    depth      INT NOT NULL CHECK (depth >= 1),
    props      JSONB NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT dag_links_unique_path_link UNIQUE (namespace, entity_id, parent_id, path_id)
);

CREATE TABLE IF NOT EXISTS dag_path_ids (
    namespace TEXT PRIMARY KEY,
    value     BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_dag_links_entity ON dag_links(namespace, entity_id);
CREATE INDEX IF NOT EXISTS idx_dag_links_parent ON dag_links(namespace, parent_id);
CREATE INDEX IF NOT EXISTS idx_dag_links_path   ON dag_links(namespace, path_id, depth);
`

// CreateSchema creates the dag_links and dag_path_ids tables if they don't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// DropSchema drops the dag_links and dag_path_ids tables.
func (s *Store) DropSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS dag_links, dag_path_ids CASCADE;`)
	return err
}
