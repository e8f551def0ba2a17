package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mderk/daglinks"
	"github.com/mderk/daglinks/postgres"
)

type linkRequest struct {
	Entity int64           `json:"entity_id"`
	Parent int64           `json:"parent_id"`
	Props  json.RawMessage `json:"props"`
}

type populateRequest struct {
	Path         []int64                 `json:"path"`
	PathID       int64                   `json:"path_id"`
	Depth        int                     `json:"depth"`
	PropsByIndex map[int]json.RawMessage `json:"props_by_index"`
}

func main() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	namespace := os.Getenv("DAG_NAMESPACE")
	if namespace == "" {
		namespace = "default"
	}
	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":3000"
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	store := postgres.New(pool)
	links := daglinks.New(store, namespace)

	app := fiber.New()

	// ── Schema ────────────────────────────────────────────────────────
	app.Post("/schema", func(c fiber.Ctx) error {
		if err := store.CreateSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema created"})
	})

	app.Delete("/schema", func(c fiber.Ctx) error {
		if err := store.DropSchema(c.Context()); err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"message": "schema dropped"})
	})

	// ── Links ─────────────────────────────────────────────────────────
	app.Post("/links", func(c fiber.Ctx) error {
		var req linkRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		created, err := links.AddLink(c.Context(), req.Entity, req.Parent, req.Props)
		if errors.Is(err, daglinks.ErrSelfReference) {
			return c.Status(422).JSON(fiber.Map{"error": "self-referential link"})
		}
		if errors.Is(err, daglinks.ErrInvalidEntity) {
			return c.Status(400).JSON(fiber.Map{"error": "invalid entity"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(created)
	})

	app.Delete("/links", func(c fiber.Ctx) error {
		var req linkRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		original, tails, err := links.RemoveLink(c.Context(), req.Entity, req.Parent)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"original_paths": original, "tail_links": tails})
	})

	// ── Entities ──────────────────────────────────────────────────────
	app.Get("/entities/:id/parents", func(c fiber.Ctx) error {
		entity, err := parseEntityID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid entity id"})
		}
		parents, err := links.GetParents(c.Context(), entity)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(parents)
	})

	app.Get("/entities/:id/children", func(c fiber.Ctx) error {
		entity, err := parseEntityID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid entity id"})
		}
		children, err := links.GetChildren(c.Context(), entity)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(children)
	})

	app.Get("/entities/:id/paths", func(c fiber.Ctx) error {
		entity, err := parseEntityID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid entity id"})
		}
		upTo := c.Query("up_to") == "true"
		paths, err := links.GetEntityPaths(c.Context(), entity, upTo)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(paths)
	})

	app.Get("/entities/:id/hierarchy", func(c fiber.Ctx) error {
		entity, err := parseEntityID(c.Params("id"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid entity id"})
		}
		tree, err := links.GetFullHierarchy(c.Context(), entity)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(tree)
	})

	// ── Paths ─────────────────────────────────────────────────────────
	app.Get("/paths", func(c fiber.Ctx) error {
		pathIDs, err := parsePathIDs(c.Query("ids"))
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid ids"})
		}
		var finalMember int64
		if raw := c.Query("final_member"); raw != "" {
			finalMember, err = parseEntityID(raw)
			if err != nil {
				return c.Status(400).JSON(fiber.Map{"error": "invalid final_member"})
			}
		}
		unique := c.Query("unique", "true") != "false"
		paths, err := links.GetPaths(c.Context(), pathIDs, finalMember, unique)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(paths)
	})

	app.Post("/paths", func(c fiber.Ctx) error {
		var req populateRequest
		if err := c.Bind().JSON(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
		}
		created, err := links.PopulatePath(c.Context(), req.Path, req.PathID, req.Depth, req.PropsByIndex)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(created)
	})

	app.Post("/path-ids", func(c fiber.Ctx) error {
		id, err := links.NewPathID(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(201).JSON(fiber.Map{"path_id": id})
	})

	log.Fatal(app.Listen(addr))
}

func parseEntityID(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

func parsePathIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
