package weather

import (
	"context"
	"sync"
	"time"

	"github.com/sweeney/vent-controller/internal/logic"
)

// FakeSource is a test double returning a scripted observation.
type FakeSource struct {
	mu sync.Mutex

	// Next is returned by Fetch and stored in the cache.
	Next logic.Weather

	// FetchError, if set, will be returned by Fetch.
	FetchError error

	// Fetches counts calls to Fetch.
	Fetches int

	cache *Cache
}

// NewFakeSource creates a fake with an empty cache.
func NewFakeSource(staleAfter time.Duration) *FakeSource {
	return &FakeSource{cache: NewCache(staleAfter)}
}

// Fetch returns Next or FetchError.
func (f *FakeSource) Fetch(ctx context.Context) (logic.Weather, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fetches++
	if f.FetchError != nil {
		return logic.Weather{}, f.FetchError
	}
	f.cache.Store(f.Next)
	return f.Next, nil
}

// SetNext scripts the next observation.
func (f *FakeSource) SetNext(w logic.Weather) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Next = w
}

// FetchCount returns the number of Fetch calls.
func (f *FakeSource) FetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Fetches
}

// Cached returns the cached observation.
func (f *FakeSource) Cached() logic.Weather {
	return f.cache.Get()
}

// IsCacheStale reports cache staleness.
func (f *FakeSource) IsCacheStale(now time.Time) bool {
	return f.cache.IsStale(now)
}
