package postgres

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mderk/daglinks"
)

// testStore connects to the database named by DATABASE_URL and ensures the
// schema exists. Tests are skipped when no database is configured. Each test
// uses a random namespace so runs don't interfere.
func testStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	s := New(pool)
	require.NoError(t, s.CreateSchema(context.Background()))
	return s
}

func testNamespace() string {
	return "test-" + uuid.NewString()
}

func TestEngineRoundtrip(t *testing.T) {
	s := testStore(t)
	m := daglinks.New(s, testNamespace())
	ctx := context.Background()

	// A → B → C, then remove A → B and expect B → C re-rooted.
	_, err := m.AddLink(ctx, 2, 1, nil)
	require.NoError(t, err)
	_, err = m.AddLink(ctx, 3, 2, nil)
	require.NoError(t, err)

	paths, err := m.GetEntityPaths(ctx, 3, false)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []int64{1, 2, 3}, paths[0].Path)

	original, tails, err := m.RemoveLink(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, original, 1)
	assert.Equal(t, []int64{1, 2, 3}, original[0].Path)
	require.Len(t, tails, 1)
	assert.Equal(t, int64(3), tails[0].Entity)
	assert.Equal(t, 1, tails[0].Depth)

	paths, err = m.GetEntityPaths(ctx, 3, false)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []int64{2, 3}, paths[0].Path)
}

func TestUniquePathLinkConstraint(t *testing.T) {
	s := testStore(t)
	ns := testNamespace()
	ctx := context.Background()

	link := daglinks.Link{ID: uuid.NewString(), Entity: 2, Parent: 1, PathID: 1, Depth: 1}
	require.NoError(t, s.InsertLinks(ctx, ns, []daglinks.Link{link}))

	link.ID = uuid.NewString()
	err := s.InsertLinks(ctx, ns, []daglinks.Link{link})
	assert.Error(t, err, "(entity, parent, path_id) must stay unique")
}

func TestNextPathIDConcurrent(t *testing.T) {
	s := testStore(t)
	m := daglinks.New(s, testNamespace())
	ctx := context.Background()

	const n = 16
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := m.NewPathID(ctx)
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "path id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestInTxRollsBack(t *testing.T) {
	s := testStore(t)
	ns := testNamespace()
	ctx := context.Background()

	boom := assert.AnError
	err := s.InTx(ctx, func(r daglinks.Repo) error {
		if err := r.InsertLinks(ctx, ns, []daglinks.Link{
			{ID: uuid.NewString(), Entity: 2, Parent: 1, PathID: 1, Depth: 1},
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	links, err := s.LinksByEdge(ctx, ns, 2, 1)
	require.NoError(t, err)
	assert.Empty(t, links)
}
