package daglinks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Manager maintains materialized root-to-node paths for one namespace.
// Every mutation runs in a single transaction against the Store; reads run
// auto-commit and may not be linearized with concurrent writers.
type Manager struct {
	store    Store
	ns       string
	entities EntitySource
}

// New returns a Manager bound to the given namespace. The namespace scopes
// both the link rows and the path-id counter, one counter per graph type.
func New(store Store, namespace string) *Manager {
	return &Manager{store: store, ns: namespace}
}

// WithEntitySource enables existence validation of link endpoints against
// the external entity store. Without it only the identifier itself is
// validated. Returns m for chaining.
func (m *Manager) WithEntitySource(src EntitySource) *Manager {
	m.entities = src
	return m
}

// Namespace returns the namespace this manager operates on.
func (m *Manager) Namespace() string {
	return m.ns
}

// AddLink creates the edge parent → entity and extends every path reaching
// parent down to entity. If parent is not reached by any path, a fresh path
// is started. The entity's existing direct children are then requalified
// under each extended path, carrying their Props forward; their old rows are
// superseded. Only direct children are rewired: deeper descendants keep
// their current path assignments.
//
// Returns the direct parent → entity links created, one per distinct path
// reaching parent. Adding an edge that already exists is a no-op returning
// an empty slice. Only direct self-loops are rejected; a longer cycle
// introduced through an existing descendant is not detected.
func (m *Manager) AddLink(ctx context.Context, entity, parent int64, props json.RawMessage) ([]Link, error) {
	if entity == parent {
		return nil, ErrSelfReference
	}
	if entity <= 0 || parent <= 0 {
		return nil, ErrInvalidEntity
	}
	if m.entities != nil {
		for _, id := range [2]int64{entity, parent} {
			ok, err := m.entities.Exists(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("daglinks: check entity %d: %w", id, err)
			}
			if !ok {
				return nil, ErrInvalidEntity
			}
		}
	}

	created := []Link{}
	err := m.store.InTx(ctx, func(r Repo) error {
		existing, err := r.LinksByEdge(ctx, m.ns, entity, parent)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			// Edge already materialized under some path: idempotent no-op.
			return nil
		}

		// Links terminating at parent tell us every path that reaches it.
		parentLinks, err := r.LinksByEntity(ctx, m.ns, parent)
		if err != nil {
			return err
		}

		// Extended segments (route to entity, per path id) drive the
		// child fan-out below.
		type extension struct {
			pathID int64
			path   []int64
		}
		var extensions []extension

		if len(parentLinks) > 0 {
			pathIDs := make([]int64, 0, len(parentLinks))
			for _, l := range parentLinks {
				pathIDs = append(pathIDs, l.PathID)
			}
			segments, err := getPaths(ctx, r, m.ns, pathIDs, parent, false)
			if err != nil {
				return err
			}

			processed := make(map[int64]bool, len(segments))
			for _, seg := range segments {
				if processed[seg.PathID] {
					continue
				}
				processed[seg.PathID] = true

				// The segment ends at parent, so its length is the
				// position the new edge occupies within the path.
				created = append(created, Link{
					ID:     uuid.NewString(),
					Entity: entity,
					Parent: parent,
					PathID: seg.PathID,
					Depth:  len(seg.Path),
					Props:  props,
				})

				ext := make([]int64, 0, len(seg.Path)+1)
				ext = append(ext, seg.Path...)
				ext = append(ext, entity)
				extensions = append(extensions, extension{pathID: seg.PathID, path: ext})
			}
		} else {
			// Parent is unreached by any path: start a fresh one.
			pathID, err := r.NextPathID(ctx, m.ns)
			if err != nil {
				return err
			}
			created = append(created, Link{
				ID:     uuid.NewString(),
				Entity: entity,
				Parent: parent,
				PathID: pathID,
				Depth:  1,
				Props:  props,
			})
			extensions = append(extensions, extension{pathID: pathID, path: []int64{parent, entity}})
		}

		if err := r.InsertLinks(ctx, m.ns, created); err != nil {
			return err
		}

		// One-level descendant fan-out: requalify the entity's direct
		// children under every path that now reaches entity, preserving
		// each child's Props. The children's old rows are superseded.
		children, err := r.LinksByParent(ctx, m.ns, entity)
		if err != nil {
			return err
		}
		if len(children) == 0 {
			return nil
		}

		oldIDs := make([]string, 0, len(children))
		childProps := make(map[int64]json.RawMessage, len(children))
		childOrder := make([]int64, 0, len(children))
		for _, c := range children {
			oldIDs = append(oldIDs, c.ID)
			if _, seen := childProps[c.Entity]; !seen {
				childOrder = append(childOrder, c.Entity)
			}
			childProps[c.Entity] = c.Props
		}

		fanned := make([]Link, 0, len(extensions)*len(childOrder))
		for _, ext := range extensions {
			for _, child := range childOrder {
				fanned = append(fanned, Link{
					ID:     uuid.NewString(),
					Entity: child,
					Parent: entity,
					PathID: ext.pathID,
					Depth:  len(ext.path),
					Props:  childProps[child],
				})
			}
		}
		if err := r.InsertLinks(ctx, m.ns, fanned); err != nil {
			return err
		}
		return r.DeleteLinks(ctx, m.ns, oldIDs)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RemoveLink removes the edge parent → entity from every path it
// participates in. For each affected path the edge and its entire ancestor
// prefix are deleted; a surviving tail beyond the edge is preserved as a new
// root path under a fresh path id, renormalized to start at depth 1 from
// entity.
//
// Returns the affected paths as they were before the mutation, and all
// links of the newly rooted tails as stored after the rewrite. Removing an
// edge that does not exist returns two empty slices and mutates nothing.
func (m *Manager) RemoveLink(ctx context.Context, entity, parent int64) ([]PathInfo, []Link, error) {
	original := []PathInfo{}
	tails := []Link{}
	err := m.store.InTx(ctx, func(r Repo) error {
		matches, err := r.LinksByEdge(ctx, m.ns, entity, parent)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}

		removedDepth := make(map[int64]int, len(matches))
		pathIDs := make([]int64, 0, len(matches))
		for _, l := range matches {
			if _, ok := removedDepth[l.PathID]; !ok {
				pathIDs = append(pathIDs, l.PathID)
			}
			removedDepth[l.PathID] = l.Depth
		}

		// Pre-mutation state, returned for the caller's audit needs.
		original, err = getPaths(ctx, r, m.ns, pathIDs, 0, false)
		if err != nil {
			return err
		}

		for _, pathID := range pathIDs {
			depth := removedDepth[pathID]

			deleted, err := r.DeletePathPrefix(ctx, m.ns, pathID, depth)
			if err != nil {
				return err
			}
			if deleted == 0 {
				continue
			}

			// Whatever is left of the path is the tail beyond the
			// removed edge.
			remaining, err := r.LinksByPathIDs(ctx, m.ns, []int64{pathID})
			if err != nil {
				return err
			}
			if len(remaining) == 0 {
				continue
			}

			newPathID, err := r.NextPathID(ctx, m.ns)
			if err != nil {
				return err
			}
			if _, err := r.RebaseTail(ctx, m.ns, pathID, newPathID, depth); err != nil {
				return err
			}

			updated, err := r.LinksByPathIDs(ctx, m.ns, []int64{newPathID})
			if err != nil {
				return err
			}
			tails = append(tails, updated...)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return original, tails, nil
}

// NewPathID allocates the next path id for this namespace in its own
// transaction. Allocation is serialized by the counter's row lock; values
// are monotonically increasing and never reused. Failures propagate
// unchanged and are never retried here.
func (m *Manager) NewPathID(ctx context.Context) (int64, error) {
	var id int64
	err := m.store.InTx(ctx, func(r Repo) error {
		var err error
		id, err = r.NextPathID(ctx, m.ns)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
