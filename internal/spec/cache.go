package spec

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is a bounded, concurrency-safe cache of normalized specs keyed by
// resolved absolute path. It is injected into the loader rather than held as
// package state so the engine stays reentrant and testable. Rebuilding the
// same entry twice is idempotent, so readers need no coordination beyond the
// cache's own locking.
type Cache struct {
	entries *lru.Cache[string, *NormalizedSpec]
}

// DefaultCacheSize bounds the number of retained specs when the caller does
// not choose a size.
const DefaultCacheSize = 32

// NewCache returns a Cache retaining at most size entries. A size <= 0 falls
// back to DefaultCacheSize.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes, which are rewritten above.
	entries, _ := lru.New[string, *NormalizedSpec](size)
	return &Cache{entries: entries}
}

// Get returns the cached spec for the resolved path, if present.
func (c *Cache) Get(path string) (*NormalizedSpec, bool) {
	if c == nil || c.entries == nil {
		return nil, false
	}
	return c.entries.Get(path)
}

// Put stores the spec under the resolved path, evicting the least recently
// used entry when full.
func (c *Cache) Put(path string, ns *NormalizedSpec) {
	if c == nil || c.entries == nil || ns == nil {
		return
	}
	c.entries.Add(path, ns)
}

// Len reports the number of retained entries.
func (c *Cache) Len() int {
	if c == nil || c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops all entries.
func (c *Cache) Purge() {
	if c == nil || c.entries == nil {
		return
	}
	c.entries.Purge()
}
