package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// TestConcurrentIngestAndQuery drives writers and searchers against
// one space at once: every save must land exactly once, internal ids
// must stay unique, and every search result must refer to an item
// that is live when the search completes.
func TestConcurrentIngestAndQuery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Busy")

	const writers = 8
	const perWriter = 25

	e.embedder.Set("probe", axis(0))

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				text := fmt.Sprintf("writer %d note %d", w, i)
				_, err := e.content.SaveMessage(ctx, space.ID, text, "")
				assert.NoError(t, err)
			}
		}(w)
	}

	done := make(chan struct{})
	var searchers sync.WaitGroup
	for r := 0; r < 4; r++ {
		searchers.Add(1)
		go func() {
			defer searchers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				hits, err := e.content.SearchInSpace(ctx, space.ID, "probe", 5)
				if !assert.NoError(t, err) {
					return
				}
				for _, hit := range hits {
					assert.Equal(t, space.ID, hit.Item.SpaceID)
					// A hit may briefly be pending between index add
					// and the ready flip, but never failed.
					assert.NotEqual(t, domain.StatusFailed, hit.Item.Status)
				}
			}
		}()
	}

	wg.Wait()
	close(done)
	searchers.Wait()

	// Exactly writers*perWriter ready items.
	count, err := e.meta.CountReadyItems(ctx, space.ID)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, count)
	assert.Equal(t, writers*perWriter, e.index.Stats().Live)

	// Every vector ref is unique.
	items, err := e.meta.ListItems(ctx, space.ID, writers*perWriter+10, 0)
	require.NoError(t, err)
	require.Len(t, items, writers*perWriter)
	seen := make(map[uint64]string, len(items))
	for _, item := range items {
		require.NotNil(t, item.VectorRef)
		prev, dup := seen[*item.VectorRef]
		assert.False(t, dup, "vector ref %d shared by %s and %s", *item.VectorRef, prev, item.ID)
		seen[*item.VectorRef] = item.ID
	}
}
