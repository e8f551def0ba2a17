package daglinks

import (
	"context"
	"encoding/json"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// GetPaths reconstructs the paths for the given path ids.
//
// A finalMember other than zero truncates each path at the first occurrence
// of that entity; paths not containing it are dropped, and IsFinal reports
// whether the occurrence was the natural end of the full path. With
// finalMember zero every path is returned whole with IsFinal=true. When
// unique is set, paths producing the same node sequence are collapsed to the
// first one seen. An empty pathIDs set returns an empty result without
// touching storage.
func (m *Manager) GetPaths(ctx context.Context, pathIDs []int64, finalMember int64, unique bool) ([]PathInfo, error) {
	return getPaths(ctx, m.store, m.ns, pathIDs, finalMember, unique)
}

// getPaths is the reconstruction core, usable both inside a transaction and
// against the auto-commit store.
func getPaths(ctx context.Context, r Repo, ns string, pathIDs []int64, finalMember int64, unique bool) ([]PathInfo, error) {
	if len(pathIDs) == 0 {
		return []PathInfo{}, nil
	}

	links, err := r.LinksByPathIDs(ctx, ns, pathIDs)
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []PathInfo{}, nil
	}

	// Group by path id; links arrive ordered by (path_id, depth), so each
	// group is already a contiguous depth run starting at 1.
	order := make([]int64, 0, len(pathIDs))
	byPath := make(map[int64][]Link, len(pathIDs))
	for _, l := range links {
		if _, ok := byPath[l.PathID]; !ok {
			order = append(order, l.PathID)
		}
		byPath[l.PathID] = append(byPath[l.PathID], l)
	}

	complete := make([]PathInfo, 0, len(order))
	for _, pid := range order {
		group := byPath[pid]
		path := make([]int64, 0, len(group)+1)
		path = append(path, group[0].Parent)
		for _, l := range group {
			path = append(path, l.Entity)
		}
		complete = append(complete, PathInfo{Path: path, IsFinal: true, PathID: pid})
	}

	result := complete
	if finalMember != 0 {
		result = make([]PathInfo, 0, len(complete))
		for _, p := range complete {
			idx := slices.Index(p.Path, finalMember)
			if idx < 0 {
				continue
			}
			result = append(result, PathInfo{
				Path:    p.Path[:idx+1],
				IsFinal: idx == len(p.Path)-1,
				PathID:  p.PathID,
			})
		}
	}

	if !unique {
		return result, nil
	}

	seen := make(map[string]bool, len(result))
	uniq := make([]PathInfo, 0, len(result))
	for _, p := range result {
		key := pathKey(p.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, p)
	}
	return uniq, nil
}

// GetEntityPaths returns every unique path containing the entity, as either
// endpoint of any of its links. With upToEntity set each path is truncated
// at the first occurrence of the entity and marked final, since the
// truncation point is the request target rather than the path's natural
// end; otherwise full paths keep their true IsFinal flag. Either way the
// resulting node sequences are deduplicated.
func (m *Manager) GetEntityPaths(ctx context.Context, entity int64, upToEntity bool) ([]PathInfo, error) {
	childLinks, err := m.store.LinksByEntity(ctx, m.ns, entity)
	if err != nil {
		return nil, err
	}
	parentLinks, err := m.store.LinksByParent(ctx, m.ns, entity)
	if err != nil {
		return nil, err
	}

	seenID := make(map[int64]bool, len(childLinks)+len(parentLinks))
	pathIDs := make([]int64, 0, len(childLinks)+len(parentLinks))
	for _, l := range append(childLinks, parentLinks...) {
		if seenID[l.PathID] {
			continue
		}
		seenID[l.PathID] = true
		pathIDs = append(pathIDs, l.PathID)
	}
	if len(pathIDs) == 0 {
		return []PathInfo{}, nil
	}

	// Non-unique fetch first: truncation below can collapse distinct full
	// paths into the same sequence, so deduplication happens last.
	all, err := getPaths(ctx, m.store, m.ns, pathIDs, 0, false)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(all))
	result := []PathInfo{}
	for _, p := range all {
		idx := slices.Index(p.Path, entity)
		if idx < 0 {
			continue
		}
		if upToEntity {
			p = PathInfo{Path: p.Path[:idx+1], IsFinal: true, PathID: p.PathID}
		}
		key := pathKey(p.Path)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, p)
	}
	return result, nil
}

// GetParents returns the distinct immediate parents of entity, sorted by
// identifier.
func (m *Manager) GetParents(ctx context.Context, entity int64) ([]int64, error) {
	links, err := m.store.LinksByEntity(ctx, m.ns, entity)
	if err != nil {
		return nil, err
	}
	return distinctEndpoints(links, func(l Link) int64 { return l.Parent }), nil
}

// GetChildren returns the distinct immediate children of entity, sorted by
// identifier.
func (m *Manager) GetChildren(ctx context.Context, entity int64) ([]int64, error) {
	links, err := m.store.LinksByParent(ctx, m.ns, entity)
	if err != nil {
		return nil, err
	}
	return distinctEndpoints(links, func(l Link) int64 { return l.Entity }), nil
}

// PopulatePath creates a straight chain of links for an explicit node
// sequence under the given path id, one link per consecutive pair, starting
// at depth and incrementing by one per link. propsByIndex optionally
// attaches a payload to the link at each zero-based pair index. Used for
// bulk path seeding outside the add/remove protocol; it does not consult or
// rewrite any existing paths.
func (m *Manager) PopulatePath(ctx context.Context, path []int64, pathID int64, depth int, propsByIndex map[int]json.RawMessage) ([]Link, error) {
	if len(path) < 2 {
		return []Link{}, nil
	}

	links := make([]Link, 0, len(path)-1)
	parent := path[0]
	for i, entity := range path[1:] {
		links = append(links, Link{
			ID:     uuid.NewString(),
			Entity: entity,
			Parent: parent,
			PathID: pathID,
			Depth:  depth + i,
			Props:  propsByIndex[i],
		})
		parent = entity
	}

	err := m.store.InTx(ctx, func(r Repo) error {
		return r.InsertLinks(ctx, m.ns, links)
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func distinctEndpoints(links []Link, pick func(Link) int64) []int64 {
	seen := make(map[int64]bool, len(links))
	out := make([]int64, 0, len(links))
	for _, l := range links {
		id := pick(l)
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// pathKey renders a node sequence as a comparable dedup key.
func pathKey(path []int64) string {
	var b strings.Builder
	for i, id := range path {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
