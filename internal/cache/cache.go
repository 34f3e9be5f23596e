// internal/cache/cache.go
package cache

import "context"

// ScratchCache is the ephemeral, device-local key/value tier. It is a
// fast-path hint and a pre-authentication fallback only; once a durable
// record exists for an owner the cache is never authoritative.
type ScratchCache interface {
	// Get returns the value for key. ok is false when the key is absent;
	// absence is not an error.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is a no-op.
	Remove(ctx context.Context, key string) error
}
