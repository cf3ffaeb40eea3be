package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// GoCache implements Cache on top of patrickmn/go-cache, which handles
// expiry and background eviction.
type GoCache struct {
	inner *gocache.Cache
}

// New creates a cache with the given janitor cleanup interval.
func New(cleanupInterval time.Duration) *GoCache {
	return &GoCache{
		inner: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Get returns the cached value and whether a live entry exists.
func (c *GoCache) Get(key string) (string, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Write stores value until expiresAt. Values already past their expiry
// are dropped immediately.
func (c *GoCache) Write(key, value string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		c.inner.Delete(key)
		return
	}
	c.inner.Set(key, value, ttl)
}

// IsExpired reports whether the entry is absent or past its expiry.
func (c *GoCache) IsExpired(key string) bool {
	_, ok := c.inner.Get(key)
	return !ok
}

// Delete removes the entry if present.
func (c *GoCache) Delete(key string) {
	c.inner.Delete(key)
}

// Clear drops all entries.
func (c *GoCache) Clear() {
	c.inner.Flush()
}
