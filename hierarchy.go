package daglinks

import (
	"context"
	"slices"
)

// GetFullHierarchy builds the complete descendant tree under root from a
// single bulk fetch of every path leaving it, with no recursive queries.
// Children are deduplicated per parent across paths and sorted by
// identifier for deterministic output. A node reached through several
// parents gets an independently computed subtree under each of them. A root
// with no children returns a leaf node.
func (m *Manager) GetFullHierarchy(ctx context.Context, root int64) (*TreeNode, error) {
	rootLinks, err := m.store.LinksByParent(ctx, m.ns, root)
	if err != nil {
		return nil, err
	}
	if len(rootLinks) == 0 {
		return &TreeNode{Entity: root, Children: []*TreeNode{}}, nil
	}

	seen := make(map[int64]bool, len(rootLinks))
	pathIDs := make([]int64, 0, len(rootLinks))
	for _, l := range rootLinks {
		if seen[l.PathID] {
			continue
		}
		seen[l.PathID] = true
		pathIDs = append(pathIDs, l.PathID)
	}

	all, err := m.store.LinksByPathIDs(ctx, m.ns, pathIDs)
	if err != nil {
		return nil, err
	}

	childSets := make(map[int64]map[int64]struct{})
	for _, l := range all {
		set := childSets[l.Parent]
		if set == nil {
			set = make(map[int64]struct{})
			childSets[l.Parent] = set
		}
		set[l.Entity] = struct{}{}
	}

	return buildSubtree(root, childSets), nil
}

func buildSubtree(entity int64, childSets map[int64]map[int64]struct{}) *TreeNode {
	node := &TreeNode{Entity: entity, Children: []*TreeNode{}}

	children := make([]int64, 0, len(childSets[entity]))
	for child := range childSets[entity] {
		children = append(children, child)
	}
	slices.Sort(children)

	for _, child := range children {
		node.Children = append(node.Children, buildSubtree(child, childSets))
	}
	return node
}
