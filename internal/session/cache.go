// Package session holds per-session UI state in memory with sliding expiry.
package session

import (
	"strings"
	"sync"
	"time"
)

// Key joins a user and session id into a cache key.
func Key(userID, sessionID string) string {
	return userID + ":" + sessionID
}

// Cache is an in-memory map whose entries expire after ttl without access.
type Cache[V any] struct {
	data    map[string]*cacheEntry[V]
	ttl     time.Duration
	mu      sync.Mutex
	now     func() time.Time
	cleanup *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type cacheEntry[V any] struct {
	value      V
	expiration time.Time
}

// NewCache creates a cache and starts its sweeper. Call Stop to release it.
func NewCache[V any](ttl, sweepInterval time.Duration) *Cache[V] {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	c := &Cache[V]{
		data:    make(map[string]*cacheEntry[V]),
		ttl:     ttl,
		now:     time.Now,
		cleanup: time.NewTicker(sweepInterval),
		done:    make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

// Get returns the live value for key and extends its expiry.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[key]
	if !ok || c.now().After(entry.expiration) {
		var zero V
		return zero, false
	}
	entry.expiration = c.now().Add(c.ttl)
	return entry.value, true
}

// GetOrCreate returns the live value for key, storing create() when there is none.
func (c *Cache[V]) GetOrCreate(key string, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.data[key]; ok && !now.After(entry.expiration) {
		entry.expiration = now.Add(c.ttl)
		return entry.value
	}
	v := create()
	c.data[key] = &cacheEntry[V]{value: v, expiration: now.Add(c.ttl)}
	return v
}

// Set stores value under key.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = &cacheEntry[V]{value: value, expiration: c.now().Add(c.ttl)}
}

// Delete removes key.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
}

// DeleteByPrefix removes all entries with keys starting with the given prefix
func (c *Cache[V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
}

// Stop ends the sweeper. The cache stays usable.
func (c *Cache[V]) Stop() {
	c.once.Do(func() {
		c.cleanup.Stop()
		close(c.done)
	})
}

func (c *Cache[V]) cleanupLoop() {
	for {
		select {
		case <-c.cleanup.C:
			c.removeExpired()
		case <-c.done:
			return
		}
	}
}

func (c *Cache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if now.After(entry.expiration) {
			delete(c.data, key)
		}
	}
}
