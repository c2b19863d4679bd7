package rotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"beatframe/cache"
	"beatframe/models"
	"beatframe/notify"
)

const (
	// MaxRetries bounds how many full passes over the source chain are
	// made when every source fails at the transport level.
	MaxRetries = 3

	DefaultBackoff = time.Second
	DefaultLimit   = 40
)

// Orchestrator walks the ordered source chain, retries transport failures
// with a fixed backoff and falls back to the static set once the budget is
// spent. It never returns an error: callers always get items, the static
// set, or nil as the distinguishable "no content" answer.
type Orchestrator struct {
	sources  []Source
	store    *cache.Store
	notifier notify.Notifier
	fallback []models.MediaItem
	backoff  time.Duration

	// The orchestrator is not re-entrant. A caller arriving while a fetch
	// is in flight gets whatever is cached rather than a duplicate fetch.
	inFlight atomic.Bool
}

type OrchestratorOption func(*Orchestrator)

// WithBackoff overrides the delay between retry cycles. Tests use this to
// avoid sleeping through real backoff windows.
func WithBackoff(backoff time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.backoff = backoff
	}
}

// WithFallback overrides the built-in static set.
func WithFallback(items []models.MediaItem) OrchestratorOption {
	return func(o *Orchestrator) {
		o.fallback = items
	}
}

func NewOrchestrator(sources []Source, store *cache.Store, notifier notify.Notifier, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		sources:  sources,
		store:    store,
		notifier: notifier,
		fallback: StaticFallback(),
		backoff:  DefaultBackoff,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) FetchMedia(ctx context.Context, settings models.PlayerSettings, limit int) []models.MediaItem {
	key := cache.Fingerprint(settings.Tags, settings.AllowNsfw)

	if !o.inFlight.CompareAndSwap(false, true) {
		if items, ok := o.store.Get(key); ok && len(items) > 0 {
			return items
		}
		return o.fallback
	}
	defer o.inFlight.Store(false)

	if limit <= 0 {
		limit = DefaultLimit
	}

	var batch []models.MediaItem
	attempt := 0
	err := retry.Do(ctx, retry.WithMaxRetries(MaxRetries-1, retry.NewConstant(o.backoff)), func(ctx context.Context) error {
		attempt++
		items, err := o.tryChain(ctx, settings, limit)
		if err != nil {
			if attempt < MaxRetries {
				o.notifier.Notify(notify.Event{
					Status:      notify.StatusRetrying,
					Attempt:     attempt,
					MaxAttempts: MaxRetries,
					Message:     err.Error(),
				})
			}
			return retry.RetryableError(err)
		}
		batch = items
		return nil
	})
	if err != nil {
		o.notifier.Notify(notify.Event{Status: notify.StatusFailed, Message: err.Error()})
		return o.fallback
	}

	if len(batch) == 0 {
		// Every source answered but nothing was usable. Retrying the same
		// queries won't conjure up content, so signal "no content" instead
		// of serving the fallback set.
		o.notifier.Notify(notify.Event{Status: notify.StatusEmpty})
		return nil
	}

	o.store.Put(key, batch)
	o.notifier.Notify(notify.Event{Status: notify.StatusLoaded, Items: len(batch)})
	return batch
}

// tryChain runs one pass over the source chain. A zero-result success
// advances to the next source immediately and never consumes retry budget;
// only a pass where every source failed outright is reported as an error.
func (o *Orchestrator) tryChain(ctx context.Context, settings models.PlayerSettings, limit int) ([]models.MediaItem, error) {
	var errs []error
	for _, source := range o.sources {
		items, err := source.Fetch(ctx, settings, limit)
		if err != nil {
			slog.Warn("Source fetch failed",
				slog.String("source", source.Name()),
				slog.String("stack", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
			continue
		}

		items = filterItems(items, settings)
		if len(items) == 0 {
			slog.Debug("Source returned no usable items", slog.String("source", source.Name()))
			continue
		}
		return items, nil
	}

	if len(o.sources) > 0 && len(errs) == len(o.sources) {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

// filterItems enforces the session's media kind and NSFW policy after
// mapping, regardless of what the provider query already excluded.
func filterItems(items []models.MediaItem, settings models.PlayerSettings) []models.MediaItem {
	filtered := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if item.Nsfw && !settings.AllowNsfw {
			continue
		}
		if !settings.MediaTypes.Allows(item.Kind) {
			continue
		}
		filtered = append(filtered, item)
	}
	return filtered
}
