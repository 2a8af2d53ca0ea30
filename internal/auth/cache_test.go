package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheHitWithinTTL(t *testing.T) {
	c := NewCache(100 * time.Millisecond)
	defer c.Stop()

	stored := c.Set("cred-1", Identity{ID: "u-1"})
	assert.False(t, stored.CachedAt.IsZero(), "Set stamps CachedAt")

	identity, ok := c.Get("cred-1")
	require.True(t, ok)
	assert.Equal(t, "u-1", identity.ID)
	assert.Equal(t, stored.CachedAt, identity.CachedAt)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(30 * time.Millisecond)
	defer c.Stop()

	c.Set("cred-1", Identity{ID: "u-1"})
	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get("cred-1")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "expired entry evicted lazily on lookup")
}

func TestCacheLastWriterWins(t *testing.T) {
	c := NewCache(time.Minute)
	defer c.Stop()

	c.Set("cred-1", Identity{ID: "u-1"})
	c.Set("cred-1", Identity{ID: "u-2"})

	identity, ok := c.Get("cred-1")
	require.True(t, ok)
	assert.Equal(t, "u-2", identity.ID)
	assert.Equal(t, 1, c.Len())
}

func TestCacheGetExpired(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	defer c.Stop()

	c.Set("cred-1", Identity{ID: "u-1"})

	// Fresh entries are not eligible for the stale path.
	_, ok := c.GetExpired("cred-1", time.Minute)
	assert.False(t, ok)

	time.Sleep(30 * time.Millisecond)

	identity, ok := c.GetExpired("cred-1", time.Minute)
	require.True(t, ok)
	assert.Equal(t, "u-1", identity.ID)
	assert.False(t, identity.CachedAt.IsZero())

	// Past the grace period the entry is gone for good.
	_, ok = c.GetExpired("cred-1", time.Millisecond)
	assert.False(t, ok)
}

func TestCacheSweep(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	defer c.Stop()

	c.Set("old-1", Identity{ID: "u-1"})
	c.Set("old-2", Identity{ID: "u-2"})
	time.Sleep(30 * time.Millisecond)
	c.Set("fresh", Identity{ID: "u-3"})

	removed := c.Sweep(0)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get("fresh")
	assert.True(t, ok)
}

func TestCacheSweepRetainsGraceWindow(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	defer c.Stop()

	c.Set("cred-1", Identity{ID: "u-1"})
	time.Sleep(30 * time.Millisecond)

	// Expired but inside the retain window: kept for stale fallback.
	removed := c.Sweep(time.Minute)
	assert.Equal(t, 0, removed)

	_, ok := c.GetExpired("cred-1", time.Minute)
	assert.True(t, ok)
}

func TestCacheSweeperRuns(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Stop()

	c.Set("cred-1", Identity{ID: "u-1"})
	c.StartSweeper(20*time.Millisecond, 0)

	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestCacheEvictionCallback(t *testing.T) {
	c := NewCache(10 * time.Millisecond)
	defer c.Stop()

	evicted := 0
	c.OnEvict(func(count int) { evicted += count })

	c.Set("cred-1", Identity{ID: "u-1"})
	c.Set("cred-2", Identity{ID: "u-2"})
	time.Sleep(20 * time.Millisecond)

	c.Sweep(0)
	assert.Equal(t, 2, evicted)
}
