package auth

import (
	"sync"
	"time"
)

type cacheEntry struct {
	identity Identity
	cachedAt time.Time
}

// Cache maps a credential to a previously validated identity for a fixed
// TTL. Expiry is enforced lazily on lookup and by a periodic sweep that
// bounds growth from credentials seen once and never reused.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration

	sweepOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}

	// onEvict, when set, receives the number of entries each sweep or
	// lazy expiry removed
	onEvict func(count int)
}

// NewCache creates a cache whose entries expire after ttl
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
}

// OnEvict registers a callback invoked with eviction counts
func (c *Cache) OnEvict(fn func(count int)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

// Get returns the identity for credential if a fresh entry exists.
// An expired entry is evicted on the spot and reported as a miss.
func (c *Cache) Get(credential string) (Identity, bool) {
	c.mu.RLock()
	entry, exists := c.entries[credential]
	c.mu.RUnlock()

	if !exists {
		return Identity{}, false
	}
	if time.Since(entry.cachedAt) >= c.ttl {
		c.mu.Lock()
		// Re-check: a writer may have refreshed the entry meanwhile.
		if current, ok := c.entries[credential]; ok && current.cachedAt.Equal(entry.cachedAt) {
			delete(c.entries, credential)
			if c.onEvict != nil {
				c.onEvict(1)
			}
		}
		c.mu.Unlock()
		return Identity{}, false
	}
	return entry.identity, true
}

// GetExpired returns an expired entry that is still within the grace
// period past its TTL. Used only for stale fallback during an outage;
// fresh entries are not returned here.
func (c *Cache) GetExpired(credential string, grace time.Duration) (Identity, bool) {
	c.mu.RLock()
	entry, exists := c.entries[credential]
	c.mu.RUnlock()

	if !exists {
		return Identity{}, false
	}
	age := time.Since(entry.cachedAt)
	if age < c.ttl || age >= c.ttl+grace {
		return Identity{}, false
	}
	return entry.identity, true
}

// Set stores the identity for credential, stamping CachedAt, and returns
// the stored copy; last writer wins
func (c *Cache) Set(credential string, identity Identity) Identity {
	now := time.Now()
	identity.CachedAt = now
	c.mu.Lock()
	c.entries[credential] = cacheEntry{identity: identity, cachedAt: now}
	c.mu.Unlock()
	return identity
}

// Delete removes the entry for credential
func (c *Cache) Delete(credential string) {
	c.mu.Lock()
	delete(c.entries, credential)
	c.mu.Unlock()
}

// Len returns the current number of entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes every entry past its TTL and returns how many it removed.
// Entries inside the stale grace window are removed too once the TTL has
// elapsed plus the given retain duration; pass 0 to drop all expired.
func (c *Cache) Sweep(retain time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for credential, entry := range c.entries {
		if now.Sub(entry.cachedAt) >= c.ttl+retain {
			delete(c.entries, credential)
			removed++
		}
	}
	if removed > 0 && c.onEvict != nil {
		c.onEvict(removed)
	}
	return removed
}

// StartSweeper launches the periodic sweep goroutine. Entries are
// retained for the extra grace duration so stale fallback can still find
// them. Stop terminates it.
func (c *Cache) StartSweeper(interval, grace time.Duration) {
	c.sweepOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.Sweep(grace)
				case <-c.done:
					return
				}
			}
		}()
	})
}

// Stop terminates the sweep goroutine
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}
