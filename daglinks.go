package daglinks

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	ErrSelfReference = errors.New("daglinks: cannot link an entity to itself")
	ErrInvalidEntity = errors.New("daglinks: entity has no valid persisted identifier")
)

// Link is one edge instance belonging to exactly one materialized path.
// The same (Entity, Parent) edge may appear under several path ids when
// multiple distinct routes include it, but at most once per path id.
// Props is an opaque caller-defined payload; the engine never inspects it,
// only copies it verbatim when a path is extended to a child.
type Link struct {
	ID     string          `json:"id,omitempty"`
	Entity int64           `json:"entity_id"`
	Parent int64           `json:"parent_id"`
	PathID int64           `json:"path_id"`
	Depth  int             `json:"depth"`
	Props  json.RawMessage `json:"props,omitempty"`
}

// PathInfo is one reconstructed root-to-node sequence.
// IsFinal reports whether Path ends where the stored path ends; a path
// truncated short of its natural end carries IsFinal=false unless the
// truncation point was explicitly requested.
type PathInfo struct {
	Path    []int64 `json:"path"`
	IsFinal bool    `json:"is_final"`
	PathID  int64   `json:"path_id"`
}

// TreeNode is one node of the hierarchy view produced by GetFullHierarchy.
// A node reachable through several parents appears as a separate subtree
// under each of them; this is a tree rendering, not a DAG rendering.
type TreeNode struct {
	Entity   int64       `json:"entity"`
	Children []*TreeNode `json:"children"`
}

// EntitySource is the engine's view of the external entity store.
// Entities themselves live elsewhere; the engine only needs to know
// whether an identifier refers to a persisted entity.
type EntitySource interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
