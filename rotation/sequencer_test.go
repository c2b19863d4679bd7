package rotation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beatframe/cache"
	"beatframe/models"
)

type stubFetcher struct {
	mu      sync.Mutex
	batches [][]models.MediaItem
	calls   int
	blockOn chan struct{}
}

func (f *stubFetcher) FetchMedia(ctx context.Context, settings models.PlayerSettings, limit int) []models.MediaItem {
	f.mu.Lock()
	call := f.calls
	f.calls++
	block := f.blockOn
	batches := f.batches
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	if len(batches) == 0 {
		return nil
	}
	if call >= len(batches) {
		return batches[len(batches)-1]
	}
	return batches[call]
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func settingsWithTags(tags ...string) models.PlayerSettings {
	return models.PlayerSettings{Tags: tags}
}

func TestGetNextItem_ServesBatchInOrder(t *testing.T) {
	fetcher := &stubFetcher{batches: [][]models.MediaItem{items("a", "b", "c")}}
	sequencer := NewSequencer(fetcher, cache.NewStore(), WithLowWater(0))

	settings := settingsWithTags("nature")
	for _, want := range []string{"a", "b", "c"} {
		item := sequencer.GetNextItem(context.Background(), settings)
		require.NotNil(t, item)
		assert.Equal(t, want, item.ID)
	}
}

func TestGetNextItem_EmptyStateReturnsNilOnTotalFailure(t *testing.T) {
	fetcher := &stubFetcher{}
	sequencer := NewSequencer(fetcher, cache.NewStore(), WithLowWater(0))

	item := sequencer.GetNextItem(context.Background(), settingsWithTags("nature"))

	assert.Nil(t, item)
	assert.Equal(t, 1, fetcher.callCount())
}

func TestGetNextItem_FirstCallPrefersCachedBatch(t *testing.T) {
	fetcher := &stubFetcher{batches: [][]models.MediaItem{items("fresh")}}
	store := cache.NewStore()
	settings := settingsWithTags("nature")
	store.Put(cache.Fingerprint(settings.Tags, settings.AllowNsfw), items("cached"))

	sequencer := NewSequencer(fetcher, store, WithLowWater(0))

	item := sequencer.GetNextItem(context.Background(), settings)

	require.NotNil(t, item)
	assert.Equal(t, "cached", item.ID)
	assert.Equal(t, 0, fetcher.callCount())
}

func TestGetNextItem_ExhaustionTriggersExactlyOneFetch(t *testing.T) {
	first := items("a1", "a2", "a3")
	fetcher := &stubFetcher{batches: [][]models.MediaItem{first, items("b1", "b2")}}
	sequencer := NewSequencer(fetcher, cache.NewStore(), WithLowWater(0))

	settings := settingsWithTags("nature")
	for range first {
		require.NotNil(t, sequencer.GetNextItem(context.Background(), settings))
	}
	assert.Equal(t, 1, fetcher.callCount())

	item := sequencer.GetNextItem(context.Background(), settings)

	require.NotNil(t, item)
	assert.Equal(t, "b1", item.ID)
	assert.Equal(t, 2, fetcher.callCount(), "exhaustion must trigger exactly one new fetch")
}

func TestGetNextItem_SixthCallOnBatchOfFiveAwaitsFreshFetch(t *testing.T) {
	batch := items("a1", "a2", "a3", "a4", "a5")
	// Refill calls reproduce the same batch so merging adds nothing and
	// the sixth call is forced into the Exhausted path.
	fetcher := &stubFetcher{batches: [][]models.MediaItem{batch, batch}}
	sequencer := NewSequencer(fetcher, cache.NewStore())

	settings := settingsWithTags("nature")
	for i := 0; i < 5; i++ {
		item := sequencer.GetNextItem(context.Background(), settings)
		require.NotNil(t, item)
		assert.Equal(t, batch[i].ID, item.ID)
	}

	// Let any in-flight background refills settle before counting
	assert.Eventually(t, func() bool { return !sequencer.refilling.Load() }, time.Second, time.Millisecond)
	before := fetcher.callCount()

	item := sequencer.GetNextItem(context.Background(), settings)

	require.NotNil(t, item, "the sixth call must await a fresh fetch, not fail")
	assert.Equal(t, "a1", item.ID)
	assert.Equal(t, before+1, fetcher.callCount())
}

func TestGetNextItem_LowWaterRefillDoesNotBlockCurrentItem(t *testing.T) {
	release := make(chan struct{})
	first := items("a1", "a2", "a3", "a4", "a5", "a6")
	fetcher := &stubFetcher{batches: [][]models.MediaItem{first}}
	sequencer := NewSequencer(fetcher, cache.NewStore())

	settings := settingsWithTags("nature")

	// First call leaves five remaining, which is not yet below the mark
	item := sequencer.GetNextItem(context.Background(), settings)
	require.NotNil(t, item)
	assert.Equal(t, 1, fetcher.callCount())

	// Block any further fetches, then cross the low-water mark
	fetcher.mu.Lock()
	fetcher.blockOn = release
	fetcher.batches = append(fetcher.batches, items("b1", "b2"))
	fetcher.mu.Unlock()

	start := time.Now()
	item = sequencer.GetNextItem(context.Background(), settings)
	require.NotNil(t, item)
	assert.Equal(t, "a2", item.ID)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "refill must not delay the current item")

	// The refill was scheduled in the background
	assert.Eventually(t, func() bool { return fetcher.callCount() == 2 }, time.Second, time.Millisecond)

	fetcher.mu.Lock()
	fetcher.blockOn = nil
	fetcher.mu.Unlock()
	close(release)

	// Once the refill lands, the merged items extend the current batch
	assert.Eventually(t, func() bool {
		sequencer.mu.Lock()
		defer sequencer.mu.Unlock()
		return len(sequencer.items) == 8
	}, time.Second, time.Millisecond)
}

func TestGetNextItem_SettingsChangeDropsOldBatch(t *testing.T) {
	fetcher := &stubFetcher{batches: [][]models.MediaItem{items("old1", "old2"), items("new1")}}
	sequencer := NewSequencer(fetcher, cache.NewStore(), WithLowWater(0))

	first := sequencer.GetNextItem(context.Background(), settingsWithTags("nature"))
	require.NotNil(t, first)
	assert.Equal(t, "old1", first.ID)

	second := sequencer.GetNextItem(context.Background(), settingsWithTags("city"))
	require.NotNil(t, second)
	assert.Equal(t, "new1", second.ID, "an item from the previous tag set must never be served")
}

func TestClearCache_NeverServesPreClearBatch(t *testing.T) {
	fetcher := &stubFetcher{batches: [][]models.MediaItem{items("old1", "old2"), items("new1")}}
	store := cache.NewStore()
	sequencer := NewSequencer(fetcher, store, WithLowWater(0))

	settings := settingsWithTags("nature")
	first := sequencer.GetNextItem(context.Background(), settings)
	require.NotNil(t, first)
	assert.Equal(t, "old1", first.ID)

	sequencer.ClearCache()

	next := sequencer.GetNextItem(context.Background(), settings)
	require.NotNil(t, next)
	assert.Equal(t, "new1", next.ID)
	_, ok := store.Get(cache.Fingerprint(settings.Tags, settings.AllowNsfw))
	assert.False(t, ok, "cleared cache must not retain the old batch")
}
