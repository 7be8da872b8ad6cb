// internal/stats/stats.go
//
// Cached average-attempts-remaining statistic.
//
// The cache holds a single advisory string recomputed out of band: one
// writer (the Refresher goroutine), any number of readers. Game creation
// fires Trigger(), which never blocks and never fails the caller; the
// worker also recomputes on a fixed interval.

package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Averager is the slice of the store the refresher needs.
type Averager interface {
	AverageAttemptsRemaining(ctx context.Context) (avg float64, n int, err error)
}

// Cache holds the last computed statistic message.
// Empty until the first computation over at least one active game.
type Cache struct {
	mu  sync.RWMutex
	msg string
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Message returns the cached statistic, or "" if never computed.
func (c *Cache) Message() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.msg
}

func (c *Cache) set(msg string) {
	c.mu.Lock()
	c.msg = msg
	c.mu.Unlock()
}

// Refresher recomputes the cache from the store, on demand and on a timer.
type Refresher struct {
	store   Averager
	cache   *Cache
	trigger chan struct{}
}

// NewRefresher wires a refresher to a store and cache.
func NewRefresher(store Averager, cache *Cache) *Refresher {
	return &Refresher{
		store:   store,
		cache:   cache,
		trigger: make(chan struct{}, 1),
	}
}

// Trigger requests an asynchronous recompute. Never blocks: if a refresh
// is already pending the request is dropped.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Start runs the background worker until ctx is done or the returned stop
// function is called.
func (r *Refresher) Start(ctx context.Context, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stopChan := make(chan struct{})

	go func() {
		log.Info().Dur("interval", interval).Msg("stats refresher started")
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				log.Info().Msg("stats refresher shutting down (context cancelled)")
				return
			case <-stopChan:
				ticker.Stop()
				log.Info().Msg("stats refresher shutting down (stop requested)")
				return
			case <-ticker.C:
				r.refresh(ctx)
			case <-r.trigger:
				r.refresh(ctx)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(stopChan) }) }
}

// refresh recomputes and logs failures without propagating them.
func (r *Refresher) refresh(ctx context.Context) {
	if err := r.Recompute(ctx); err != nil {
		log.Error().Err(err).Msg("recompute average attempts")
	}
}

// Recompute updates the cache from the store. With zero active games the
// previous value is left in place.
func (r *Refresher) Recompute(ctx context.Context) error {
	avg, n, err := r.store.AverageAttemptsRemaining(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	r.cache.set(fmt.Sprintf("The average moves remaining is %.2f", avg))
	return nil
}
