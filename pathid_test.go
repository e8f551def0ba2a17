package daglinks_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mderk/daglinks"
	"github.com/mderk/daglinks/memory"
)

func TestNewPathIDSerial(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	// Serial allocation is gapless from the prior maximum.
	for want := int64(1); want <= 5; want++ {
		id, err := m.NewPathID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
}

func TestNewPathIDNamespaceScoped(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	first := daglinks.New(store, "alpha")
	second := daglinks.New(store, "beta")

	for want := int64(1); want <= 3; want++ {
		id, err := first.NewPathID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	// A different namespace starts from its own counter.
	id, err := second.NewPathID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestNewPathIDConcurrent(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	const n = 64
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
	var max int64
	for id := range ids {
		assert.False(t, seen[id], "path id %d allocated twice", id)
		seen[id] = true
		if id > max {
			max = id
		}
	}
	assert.Len(t, seen, n)
	assert.Equal(t, int64(n), max, "allocation leaves no gaps")
}
