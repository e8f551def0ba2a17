package daglinks_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mderk/daglinks"
	"github.com/mderk/daglinks/memory"
)

// probeStore counts path fetches so tests can assert storage was not touched.
type probeStore struct {
	daglinks.Store
	pathQueries int
}

func (p *probeStore) LinksByPathIDs(ctx context.Context, ns string, pathIDs []int64) ([]daglinks.Link, error) {
	p.pathQueries++
	return p.Store.LinksByPathIDs(ctx, ns, pathIDs)
}

func TestGetPathsEmptyInput(t *testing.T) {
	probe := &probeStore{Store: memory.New()}
	m := daglinks.New(probe, "test")

	paths, err := m.GetPaths(context.Background(), nil, 0, true)
	require.NoError(t, err)
	assert.Empty(t, paths)
	assert.Zero(t, probe.pathQueries, "empty path id set must not query storage")
}

func TestGetPathsFinalMember(t *testing.T) {
	m := newManager(t)
	buildChain(t, m)
	ctx := context.Background()

	full, err := m.GetEntityPaths(ctx, entD, false)
	require.NoError(t, err)
	require.Len(t, full, 1)
	pathID := full[0].PathID

	tests := []struct {
		name        string
		finalMember int64
		wantPath    []int64
		wantFinal   bool
	}{
		{"mid-path member truncates", entB, []int64{entA, entB}, false},
		{"root member truncates to itself", entA, []int64{entA}, false},
		{"last member keeps full path", entD, []int64{entA, entB, entC, entD}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			paths, err := m.GetPaths(ctx, []int64{pathID}, tc.finalMember, true)
			require.NoError(t, err)
			require.Len(t, paths, 1)
			assert.Equal(t, tc.wantPath, paths[0].Path)
			assert.Equal(t, tc.wantFinal, paths[0].IsFinal)
			assert.Equal(t, pathID, paths[0].PathID)
		})
	}

	t.Run("absent member drops the path", func(t *testing.T) {
		paths, err := m.GetPaths(ctx, []int64{pathID}, 99, true)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("no member returns whole path", func(t *testing.T) {
		paths, err := m.GetPaths(ctx, []int64{pathID}, 0, true)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, []int64{entA, entB, entC, entD}, paths[0].Path)
		assert.True(t, paths[0].IsFinal)
	})
}

func TestGetPathsUnique(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	// Two path ids carrying the identical node sequence.
	_, err := m.PopulatePath(ctx, []int64{entA, entB, entC}, 10, 1, nil)
	require.NoError(t, err)
	_, err = m.PopulatePath(ctx, []int64{entA, entB, entC}, 11, 1, nil)
	require.NoError(t, err)

	unique, err := m.GetPaths(ctx, []int64{10, 11}, 0, true)
	require.NoError(t, err)
	require.Len(t, unique, 1)
	assert.Equal(t, int64(10), unique[0].PathID, "first occurrence wins")

	all, err := m.GetPaths(ctx, []int64{10, 11}, 0, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestGetEntityPathsUpTo(t *testing.T) {
	m := newManager(t)
	buildDiamond(t, m)
	ctx := context.Background()

	// Both diamond paths truncate to [A] and collapse into one.
	paths, err := m.GetEntityPaths(ctx, entA, true)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []int64{entA}, paths[0].Path)
	assert.True(t, paths[0].IsFinal)

	// Truncating at D keeps both routes apart.
	paths, err = m.GetEntityPaths(ctx, entD, true)
	require.NoError(t, err)
	require.Len(t, paths, 2)
}

func TestGetEntityPathsUnknownEntity(t *testing.T) {
	m := newManager(t)
	buildChain(t, m)

	paths, err := m.GetEntityPaths(context.Background(), 42, false)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestPopulatePath(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	props := map[int]json.RawMessage{0: json.RawMessage(`{"w": 1}`)}
	links, err := m.PopulatePath(ctx, []int64{entA, entB, entC}, 7, 1, props)
	require.NoError(t, err)
	require.Len(t, links, 2)

	assert.Equal(t, entB, links[0].Entity)
	assert.Equal(t, entA, links[0].Parent)
	assert.Equal(t, 1, links[0].Depth)
	assert.JSONEq(t, `{"w": 1}`, string(links[0].Props))

	assert.Equal(t, entC, links[1].Entity)
	assert.Equal(t, entB, links[1].Parent)
	assert.Equal(t, 2, links[1].Depth)
	assert.Empty(t, links[1].Props)

	paths, err := m.GetPaths(ctx, []int64{7}, 0, true)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, []int64{entA, entB, entC}, paths[0].Path)
}

func TestPopulatePathTooShort(t *testing.T) {
	m := newManager(t)

	links, err := m.PopulatePath(context.Background(), []int64{entA}, 7, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, links)
}
