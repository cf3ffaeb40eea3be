// Package cache provides the TTL cache collaborator consumed by the
// license engine for pull-state and OCSP-state bookkeeping. Entries
// carry an absolute expiry; an expired or absent entry reads the same.
package cache

import (
	"time"
)

// Cache is the narrow contract the license engine consumes for
// best-effort expiring state. It is a cooperative rate-limiter, not a
// correctness mechanism; implementations may drop entries at any time.
type Cache interface {
	// Get returns the cached value and whether a live entry exists.
	Get(key string) (string, bool)
	// Write stores value until expiresAt.
	Write(key, value string, expiresAt time.Time)
	// IsExpired reports whether the entry is absent or past its expiry.
	IsExpired(key string) bool
	// Delete removes the entry if present.
	Delete(key string)
	// Clear drops all entries.
	Clear()
}
