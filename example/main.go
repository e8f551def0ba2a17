package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/mderk/daglinks"
	"github.com/mderk/daglinks/memory"
)

// Entity identifiers; entities themselves live in an external store, the
// engine only needs their ids.
const (
	design   = 1
	frontend = 2
	backend  = 3
	release  = 4
)

func main() {
	ctx := context.Background()

	// The memory store keeps everything in process. Swap in postgres.New
	// with a pgx pool for persistent storage.
	links := daglinks.New(memory.New(), "tasks")

	// ── Build a diamond: design → {frontend, backend} → release ───────
	mustAdd(ctx, links, frontend, design, json.RawMessage(`{"kind": "ui"}`))
	mustAdd(ctx, links, backend, design, json.RawMessage(`{"kind": "api"}`))
	mustAdd(ctx, links, release, frontend, nil)
	mustAdd(ctx, links, release, backend, nil)

	paths, err := links.GetEntityPaths(ctx, release, false)
	if err != nil {
		log.Fatalf("entity paths: %v", err)
	}
	fmt.Println("paths reaching release:")
	printJSON(paths)

	tree, err := links.GetFullHierarchy(ctx, design)
	if err != nil {
		log.Fatalf("hierarchy: %v", err)
	}
	fmt.Println("\nhierarchy under design:")
	printJSON(tree)

	// ── Remove backend from under design ──────────────────────────────
	// The backend → release tail survives as a new root path.
	original, tails, err := links.RemoveLink(ctx, backend, design)
	if err != nil {
		log.Fatalf("remove link: %v", err)
	}
	fmt.Println("\npaths affected by removal:")
	printJSON(original)
	fmt.Println("re-rooted tail links:")
	printJSON(tails)

	paths, err = links.GetEntityPaths(ctx, backend, false)
	if err != nil {
		log.Fatalf("entity paths: %v", err)
	}
	fmt.Println("\npaths through backend after removal:")
	printJSON(paths)
}

func mustAdd(ctx context.Context, links *daglinks.Manager, entity, parent int64, props json.RawMessage) {
	if _, err := links.AddLink(ctx, entity, parent, props); err != nil {
		log.Fatalf("add link %d -> %d: %v", parent, entity, err)
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
