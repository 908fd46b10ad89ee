// Package cache is a process-wide response cache with stale-while-revalidate
// semantics: within the staleness window callers get the last-known-good
// value immediately while at most one background refresh per key runs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// FetchFunc produces a fresh value for a key.
type FetchFunc func(ctx context.Context) (any, error)

type entry struct {
	value        any
	storedAt     time.Time
	revalidating bool
}

// Cache holds values for ttl, serves them stale for another staleWindow
// while refreshing in the background, and drops them outright after
// ttl+staleWindow.
type Cache struct {
	ttl         time.Duration
	staleWindow time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	// now is swappable for tests.
	now func() time.Time
}

func New(ttl, staleWindow time.Duration) *Cache {
	return &Cache{
		ttl:         ttl,
		staleWindow: staleWindow,
		entries:     make(map[string]*entry),
		now:         time.Now,
	}
}

// Key builds the canonical cache key: a deterministic hash of the inputs.
func Key(parts ...any) string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, p := range parts {
		_ = enc.Encode(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key, fetching when missing or expired.
// A stale hit is returned immediately; the refresh happens in the
// background, at most once concurrently per key.
func (c *Cache) Get(ctx context.Context, key string, fetch FetchFunc) (any, error) {
	now := c.now()

	c.mu.Lock()
	e, ok := c.entries[key]
	if ok {
		age := now.Sub(e.storedAt)
		switch {
		case age < c.ttl:
			v := e.value
			c.mu.Unlock()
			return v, nil
		case age < c.ttl+c.staleWindow:
			v := e.value
			if !e.revalidating {
				e.revalidating = true
				go c.revalidate(key, fetch)
			}
			c.mu.Unlock()
			return v, nil
		default:
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	// Cold miss: fetch synchronously, deduplicating concurrent callers.
	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.store(key, v)
		return v, nil
	})
	return v, err
}

// revalidate refreshes one key in the background. A failed refresh keeps the
// stale value; it will be retried on the next stale hit.
func (c *Cache) revalidate(key string, fetch FetchFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if e, ok := c.entries[key]; ok {
			e.revalidating = false
		}
		return
	}
	c.entries[key] = &entry{value: v, storedAt: c.now()}
}

func (c *Cache) store(key string, v any) {
	c.mu.Lock()
	c.entries[key] = &entry{value: v, storedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops one key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
