// Package cache implements §4.5's result cache: fingerprint-based keying,
// the five CacheMode read/write behaviors, and single-flight coalescing of
// concurrent identical fetches.
package cache

import "time"

// Store is the persistent KV store external collaborator (spec §1). A
// production deployment backs this with Redis, BoltDB, or similar; this
// module ships only the in-memory reference implementation in memory.go.
type Store interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
}
