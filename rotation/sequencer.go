package rotation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"beatframe/cache"
	"beatframe/models"
)

const (
	// LowWaterMark is the remaining-item threshold below which a
	// background top-up is scheduled.
	LowWaterMark = 5

	DefaultBatchSize = 40
)

type fetcher interface {
	FetchMedia(ctx context.Context, settings models.PlayerSettings, limit int) []models.MediaItem
}

// Sequencer is the pull-based cursor the rotation timer drives. One
// instance per player session; calls are expected to arrive sequentially
// from a single timer.
type Sequencer struct {
	fetcher   fetcher
	store     *cache.Store
	batchSize int
	lowWater  int

	mu    sync.Mutex
	key   string
	items []models.MediaItem
	index int

	refilling atomic.Bool
}

type SequencerOption func(*Sequencer)

func WithLowWater(lowWater int) SequencerOption {
	return func(s *Sequencer) {
		s.lowWater = lowWater
	}
}

func WithBatchSize(batchSize int) SequencerOption {
	return func(s *Sequencer) {
		s.batchSize = batchSize
	}
}

func NewSequencer(fetcher fetcher, store *cache.Store, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		fetcher:   fetcher,
		store:     store,
		batchSize: DefaultBatchSize,
		lowWater:  LowWaterMark,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNextItem serves the next item in the current batch, loading a fresh
// batch when none has been served yet or the cursor is exhausted. It
// returns nil when nothing is currently available.
func (s *Sequencer) GetNextItem(ctx context.Context, settings models.PlayerSettings) *models.MediaItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cache.Fingerprint(settings.Tags, settings.AllowNsfw)
	if key != s.key {
		// Settings changed under us. Drop the cursor so an item from the
		// previous tag set is never served.
		s.key = key
		s.items = nil
		s.index = 0
	}

	if s.index >= len(s.items) {
		var batch []models.MediaItem
		if len(s.items) == 0 {
			// First call for these settings: a cached batch is as good as
			// a fresh one
			if cached, ok := s.store.Get(key); ok && len(cached) > 0 {
				batch = cached
			}
		}
		if batch == nil {
			// Exhausted: a fresh fetch has to land before anything more
			// can be served
			batch = s.fetcher.FetchMedia(ctx, settings, s.batchSize)
		}
		if len(batch) == 0 {
			return nil
		}
		s.items = batch
		s.index = 0
	}

	item := s.items[s.index]
	s.index++

	if s.lowWater > 0 && len(s.items)-s.index < s.lowWater {
		s.topUp(settings)
	}

	return &item
}

// ClearCache resets the sequencer to its initial state and purges every
// cached batch. Called whenever settings change or before a manual retry.
func (s *Sequencer) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.key = ""
	s.items = nil
	s.index = 0
	s.store.Clear()
}

// topUp schedules a background refill. It must never delay the item
// currently being returned, and its failures are logged, not surfaced.
func (s *Sequencer) topUp(settings models.PlayerSettings) {
	if !s.refilling.CompareAndSwap(false, true) {
		return
	}

	key := s.key
	go func() {
		defer s.refilling.Store(false)

		batch := s.fetcher.FetchMedia(context.Background(), settings, s.batchSize)
		if len(batch) == 0 {
			slog.Debug("Background refill produced no items")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if key != s.key {
			// Settings changed while the refill was in flight. Its result
			// belongs to a previous session shape, so discard it.
			return
		}

		merged := mergeBatches(s.items, batch)
		if len(merged) == len(s.items) {
			return
		}
		s.items = merged
		s.store.Put(key, merged)
	}()
}

// mergeBatches appends items from the refill that the current batch
// doesn't already contain, preserving serving order.
func mergeBatches(current, refill []models.MediaItem) []models.MediaItem {
	seen := make(map[string]struct{}, len(current))
	for _, item := range current {
		seen[item.ID] = struct{}{}
	}
	merged := current
	for _, item := range refill {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		merged = append(merged, item)
	}
	return merged
}
