// Package chartcache caches rendered chart images.
//
// Keys embed the snapshot digest (see Key), so entries never need explicit
// invalidation: a reload changes the digest and old entries age out by TTL or
// eviction. RedisStore is used when a cache server is configured; otherwise
// MemoryStore keeps a bounded set of entries in process.
package chartcache
