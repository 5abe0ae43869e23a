package collab

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type cacheEntry struct {
	value  any
	stored time.Time
}

// Cache is a time-bounded memo. Expired entries are never evicted; they
// stay until overwritten, deleted or cleared.
type Cache struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	timeout time.Duration
	entries map[string]cacheEntry
}

func NewCache(clock clockwork.Clock, timeout time.Duration) *Cache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if timeout <= 0 {
		timeout = DefaultCacheTimeout
	}
	return &Cache{clock: clock, timeout: timeout, entries: map[string]cacheEntry{}}
}

// Get returns the value stored under key when it is no older than the timeout.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.stored) > c.timeout {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, stored: c.clock.Now()}
	c.mu.Unlock()
}

func (c *Cache) Delete(keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	c.mu.Unlock()
}

func (c *Cache) DeletePrefix(prefix string) {
	c.mu.Lock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[string]cacheEntry{}
	c.mu.Unlock()
}

// Len counts stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
