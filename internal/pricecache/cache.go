// Package pricecache holds the latest observation per symbol for one
// price source.
package pricecache

import (
	"sync"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Cache is a concurrent latest-value map scoped to a single source.
// Writes are last-write-wins and entries never expire.
type Cache struct {
	source string

	mu     sync.RWMutex
	latest map[string]domain.PriceObservation
}

// New creates an empty cache for source.
func New(source string) *Cache {
	return &Cache{
		source: source,
		latest: make(map[string]domain.PriceObservation),
	}
}

// Source returns the name of the owning price source.
func (c *Cache) Source() string { return c.source }

// Put replaces the latest observation for symbol.
func (c *Cache) Put(symbol string, obs domain.PriceObservation) {
	c.mu.Lock()
	c.latest[symbol] = obs
	c.mu.Unlock()
}

// Get returns the latest observation for symbol.
func (c *Cache) Get(symbol string) (domain.PriceObservation, bool) {
	c.mu.RLock()
	obs, ok := c.latest[symbol]
	c.mu.RUnlock()
	return obs, ok
}

// AllLatest returns a copy of every cached observation keyed by symbol.
func (c *Cache) AllLatest() map[string]domain.PriceObservation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.PriceObservation, len(c.latest))
	for k, v := range c.latest {
		out[k] = v
	}
	return out
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.latest)
}

// Publish stores obs under its own symbol, so a Cache can be used
// directly as a feed publisher.
func (c *Cache) Publish(obs domain.PriceObservation) {
	c.Put(obs.Symbol, obs)
}
