// Package cache stores rendered outputs keyed by a hash of everything that
// produced them.
//
// The render pipeline uses it to skip layout and export when a file and its
// options have not changed since the last run. Three backends are provided:
// [FileCache] persists across CLI invocations, [MemoryCache] lives for one
// process (watch mode), and [NullCache] disables caching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Cache is a byte store with per-entry expiry. A miss is reported as
// (nil, false, nil); errors are reserved for backend failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data. A ttl of zero means the entry does not expire.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives a cache key from a namespace and any JSON-encodable parts.
// The format is namespace:sha256(parts).
func Key(namespace string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return namespace + ":" + Hash(data)
}

// Hash returns the hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
