package chartcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCacheMiss is returned when the requested key is not cached.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheKeyEmpty is returned when an empty key is provided.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")

	// ErrCacheInvalidTTL is returned for a negative TTL.
	ErrCacheInvalidTTL = errors.New("cache: invalid TTL")
)

// KeyPrefix namespaces every key this package writes.
const KeyPrefix = "markscope:chart:"

// Store caches rendered chart bytes.
type Store interface {
	// Get returns the cached bytes or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores data under key for ttl. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Key builds the cache key for one rendered artefact. digest identifies the
// snapshot, so a reload never serves images of old data.
func Key(digest, page, format string, width, height int) string {
	return fmt.Sprintf("%s%s:%s:%s:%dx%d", KeyPrefix, digest, strings.ToLower(page), strings.ToLower(format), width, height)
}

func checkSet(key string, ttl time.Duration) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if ttl < 0 {
		return ErrCacheInvalidTTL
	}
	return nil
}
