package daglinks

import "context"

// Repo is the link repository contract: filtered reads and bulk writes over
// the link table plus the locked path-id counter. Every method takes the
// namespace the links belong to. Implementations must not cache; each call
// reflects committed state as seen by its transaction.
type Repo interface {
	// LinksByEntity returns all links where entity is the child endpoint.
	LinksByEntity(ctx context.Context, ns string, entity int64) ([]Link, error)

	// LinksByParent returns all links where parent is the parent endpoint.
	LinksByParent(ctx context.Context, ns string, parent int64) ([]Link, error)

	// LinksByEdge returns all links matching the (entity, parent) pair,
	// one per path id the edge participates in.
	LinksByEdge(ctx context.Context, ns string, entity, parent int64) ([]Link, error)

	// LinksByPathIDs returns all links whose path id is in pathIDs,
	// ordered by (path_id, depth). An empty set returns no links and
	// must not touch storage.
	LinksByPathIDs(ctx context.Context, ns string, pathIDs []int64) ([]Link, error)

	// InsertLinks bulk-inserts links. Links without an ID get one assigned.
	InsertLinks(ctx context.Context, ns string, links []Link) error

	// DeleteLinks bulk-deletes links by row id. Unknown ids are ignored.
	DeleteLinks(ctx context.Context, ns string, ids []string) error

	// DeletePathPrefix deletes every link of pathID with depth <= depth
	// and returns the number of rows removed.
	DeletePathPrefix(ctx context.Context, ns string, pathID int64, depth int) (int64, error)

	// RebaseTail moves the links of pathID with depth > fromDepth under
	// newPathID, shifting each depth down by fromDepth so the tail starts
	// at depth 1 again. Returns the number of rows updated.
	RebaseTail(ctx context.Context, ns string, pathID, newPathID int64, fromDepth int) (int64, error)

	// NextPathID locks the namespace's counter row (creating it at zero on
	// first use), increments it and returns the new value. Serialization
	// comes from the row lock, so callers needing cross-process uniqueness
	// must invoke it inside a transaction.
	NextPathID(ctx context.Context, ns string) (int64, error)
}

// Store is the persistence contract for the engine. Reads through the
// embedded Repo run auto-commit; InTx scopes a mutation sequence to one
// transaction whose partial effects are never observable.
type Store interface {
	Repo

	// InTx runs fn in a single transaction. If fn returns an error the
	// transaction is rolled back and the error is returned unchanged.
	InTx(ctx context.Context, fn func(Repo) error) error
}
