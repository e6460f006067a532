package store

import (
	"context"
	"sync"
	"time"
)

// Cache adds a short-lived read cache over a TableStore. All sessions share
// it, so readers may observe up to TTL of staleness. Successful writes are
// stored back, keeping the cache coherent with this process's own mutations.
type Cache struct {
	next TableStore
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	rows    [][]string
	fetched time.Time
}

// NewCache wraps next with a TTL read cache.
func NewCache(next TableStore, ttl time.Duration) *Cache {
	return &Cache{next: next, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

// ReadTable serves from cache when fresh, otherwise reads through.
func (c *Cache) ReadTable(ctx context.Context, name string) ([][]string, error) {
	c.mu.Lock()
	if entry, ok := c.entries[name]; ok && c.now().Sub(entry.fetched) < c.ttl {
		rows := copyRows(entry.rows)
		c.mu.Unlock()
		return rows, nil
	}
	c.mu.Unlock()

	rows, err := c.next.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[name] = cacheEntry{rows: copyRows(rows), fetched: c.now()}
	c.mu.Unlock()
	return rows, nil
}

// WriteTable writes through and refreshes the cached copy on success.
func (c *Cache) WriteTable(ctx context.Context, name string, rows [][]string) error {
	if err := c.next.WriteTable(ctx, name, rows); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[name] = cacheEntry{rows: copyRows(rows), fetched: c.now()}
	c.mu.Unlock()
	return nil
}

// Reset drops all cached tables.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
