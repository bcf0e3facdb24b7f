// Package weather provides the outdoor weather signal: a fetcher for the
// remote feed and a freshness-tracked cache of the last good observation.
package weather

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// ErrNoData is returned when the feed answers without a usable observation.
var ErrNoData = errors.New("weather: no data")

// DefaultStaleAfter is the age beyond which a cached observation is stale.
const DefaultStaleAfter = 1800 * time.Second

// Source fetches outdoor observations and caches the last good one.
type Source interface {
	// Fetch retrieves a fresh observation, updating the cache on success.
	Fetch(ctx context.Context) (logic.Weather, error)

	// Cached returns the last good observation, Valid=false if none.
	Cached() logic.Weather

	// IsCacheStale reports whether the cache is empty or older than its
	// staleness threshold at now.
	IsCacheStale(now time.Time) bool
}

// Cache holds the last good observation.
type Cache struct {
	mu         sync.RWMutex
	w          logic.Weather
	staleAfter time.Duration
}

// NewCache creates an empty cache.
func NewCache(staleAfter time.Duration) *Cache {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Cache{staleAfter: staleAfter}
}

// Store replaces the cached observation. Invalid observations are ignored.
func (c *Cache) Store(w logic.Weather) {
	if !w.Valid {
		return
	}
	c.mu.Lock()
	c.w = w
	c.mu.Unlock()
}

// Get returns the cached observation.
func (c *Cache) Get() logic.Weather {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.w
}

// IsStale reports whether the cache is empty or older than staleAfter.
func (c *Cache) IsStale(now time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.w.Valid {
		return true
	}
	return now.Sub(c.w.CapturedAt) > c.staleAfter
}
