// Package memory provides an in-memory daglinks.Store with snapshot-rollback
// transactions. It backs the engine tests and the example; it has no
// durability and the whole store is serialized behind one mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mderk/daglinks"
)

// Store implements daglinks.Store in memory. Mutations inside InTx are
// atomic: a failing transaction restores the pre-transaction snapshot.
type Store struct {
	mu       sync.Mutex
	links    map[string][]daglinks.Link
	counters map[string]int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		links:    make(map[string][]daglinks.Link),
		counters: make(map[string]int64),
	}
}

// InTx runs fn against the store under the lock. On error the links and
// counters are restored to their state at entry, so partial effects of a
// failed mutation are never observable.
func (s *Store) InTx(ctx context.Context, fn func(daglinks.Repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapLinks := make(map[string][]daglinks.Link, len(s.links))
	for ns, ls := range s.links {
		snapLinks[ns] = append([]daglinks.Link(nil), ls...)
	}
	snapCounters := make(map[string]int64, len(s.counters))
	for ns, v := range s.counters {
		snapCounters[ns] = v
	}

	if err := fn(txRepo{s: s}); err != nil {
		s.links = snapLinks
		s.counters = snapCounters
		return err
	}
	return nil
}

// Auto-commit reads and writes take the lock per call.

func (s *Store) LinksByEntity(ctx context.Context, ns string, entity int64) ([]daglinks.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linksByEntity(ns, entity)
}

func (s *Store) LinksByParent(ctx context.Context, ns string, parent int64) ([]daglinks.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linksByParent(ns, parent)
}

func (s *Store) LinksByEdge(ctx context.Context, ns string, entity, parent int64) ([]daglinks.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linksByEdge(ns, entity, parent)
}

func (s *Store) LinksByPathIDs(ctx context.Context, ns string, pathIDs []int64) ([]daglinks.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.linksByPathIDs(ns, pathIDs)
}

func (s *Store) InsertLinks(ctx context.Context, ns string, links []daglinks.Link) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLinks(ns, links)
}

func (s *Store) DeleteLinks(ctx context.Context, ns string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLinks(ns, ids)
}

func (s *Store) DeletePathPrefix(ctx context.Context, ns string, pathID int64, depth int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletePathPrefix(ns, pathID, depth)
}

func (s *Store) RebaseTail(ctx context.Context, ns string, pathID, newPathID int64, fromDepth int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebaseTail(ns, pathID, newPathID, fromDepth)
}

func (s *Store) NextPathID(ctx context.Context, ns string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPathID(ns)
}

// txRepo exposes the unlocked implementations to InTx callbacks, which
// already hold the store lock.
type txRepo struct {
	s *Store
}

func (t txRepo) LinksByEntity(ctx context.Context, ns string, entity int64) ([]daglinks.Link, error) {
	return t.s.linksByEntity(ns, entity)
}

func (t txRepo) LinksByParent(ctx context.Context, ns string, parent int64) ([]daglinks.Link, error) {
	return t.s.linksByParent(ns, parent)
}

func (t txRepo) LinksByEdge(ctx context.Context, ns string, entity, parent int64) ([]daglinks.Link, error) {
	return t.s.linksByEdge(ns, entity, parent)
}

func (t txRepo) LinksByPathIDs(ctx context.Context, ns string, pathIDs []int64) ([]daglinks.Link, error) {
	return t.s.linksByPathIDs(ns, pathIDs)
}

func (t txRepo) InsertLinks(ctx context.Context, ns string, links []daglinks.Link) error {
	return t.s.insertLinks(ns, links)
}

func (t txRepo) DeleteLinks(ctx context.Context, ns string, ids []string) error {
	return t.s.deleteLinks(ns, ids)
}

func (t txRepo) DeletePathPrefix(ctx context.Context, ns string, pathID int64, depth int) (int64, error) {
	return t.s.deletePathPrefix(ns, pathID, depth)
}

func (t txRepo) RebaseTail(ctx context.Context, ns string, pathID, newPathID int64, fromDepth int) (int64, error) {
	return t.s.rebaseTail(ns, pathID, newPathID, fromDepth)
}

func (t txRepo) NextPathID(ctx context.Context, ns string) (int64, error) {
	return t.s.nextPathID(ns)
}

// Unlocked implementations. Callers hold s.mu.

func (s *Store) linksByEntity(ns string, entity int64) ([]daglinks.Link, error) {
	return s.filterLinks(ns, func(l daglinks.Link) bool { return l.Entity == entity }), nil
}

func (s *Store) linksByParent(ns string, parent int64) ([]daglinks.Link, error) {
	return s.filterLinks(ns, func(l daglinks.Link) bool { return l.Parent == parent }), nil
}

func (s *Store) linksByEdge(ns string, entity, parent int64) ([]daglinks.Link, error) {
	return s.filterLinks(ns, func(l daglinks.Link) bool {
		return l.Entity == entity && l.Parent == parent
	}), nil
}

func (s *Store) linksByPathIDs(ns string, pathIDs []int64) ([]daglinks.Link, error) {
	if len(pathIDs) == 0 {
		return []daglinks.Link{}, nil
	}
	wanted := make(map[int64]bool, len(pathIDs))
	for _, id := range pathIDs {
		wanted[id] = true
	}
	out := s.filterLinks(ns, func(l daglinks.Link) bool { return wanted[l.PathID] })
	sort.Slice(out, func(i, j int) bool {
		if out[i].PathID != out[j].PathID {
			return out[i].PathID < out[j].PathID
		}
		return out[i].Depth < out[j].Depth
	})
	return out, nil
}

func (s *Store) insertLinks(ns string, links []daglinks.Link) error {
	for _, l := range links {
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		// Enforce the same uniqueness the SQL schema does.
		for _, existing := range s.links[ns] {
			if existing.Entity == l.Entity && existing.Parent == l.Parent && existing.PathID == l.PathID {
				return fmt.Errorf("daglinks: insert link %s: duplicate (entity, parent, path_id)", l.ID)
			}
		}
		s.links[ns] = append(s.links[ns], l)
	}
	return nil
}

func (s *Store) deleteLinks(ns string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := s.links[ns][:0]
	for _, l := range s.links[ns] {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	s.links[ns] = kept
	return nil
}

func (s *Store) deletePathPrefix(ns string, pathID int64, depth int) (int64, error) {
	var deleted int64
	kept := s.links[ns][:0]
	for _, l := range s.links[ns] {
		if l.PathID == pathID && l.Depth <= depth {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	s.links[ns] = kept
	return deleted, nil
}

func (s *Store) rebaseTail(ns string, pathID, newPathID int64, fromDepth int) (int64, error) {
	var updated int64
	ls := s.links[ns]
	for i := range ls {
		if ls[i].PathID == pathID && ls[i].Depth > fromDepth {
			ls[i].PathID = newPathID
			ls[i].Depth -= fromDepth
			updated++
		}
	}
	return updated, nil
}

func (s *Store) nextPathID(ns string) (int64, error) {
	s.counters[ns]++
	return s.counters[ns], nil
}

func (s *Store) filterLinks(ns string, keep func(daglinks.Link) bool) []daglinks.Link {
	out := []daglinks.Link{}
	for _, l := range s.links[ns] {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}
