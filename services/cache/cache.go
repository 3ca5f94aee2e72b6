package cache

import (
	"time"
)

// Service is a generic byte cache. The fetch layer uses it to remember
// per-host cooldowns after rate-limit responses, so repeated runs do not
// hammer a host that already told us to back off.
type Service interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
