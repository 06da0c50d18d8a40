package cache

import (
	"context"
	"time"
)

// Backend kind names accepted by Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendNull   = "null"
)

// Backend is the contract every concrete store implements. Backends deal in
// opaque bytes only; value serialization happens above them in Service.
//
// An entry whose TTL has elapsed is logically absent: Get and Exists must
// never return it, and implementations purge expired entries lazily when
// they encounter them (on access, or while scanning for Stats and Keys).
//
// Implementations return ordinary errors; Service catches them at the
// operation boundary and maps them to soft-failure values so that cache
// faults never escape to application code.
type Backend interface {
	// Get returns the stored bytes for key, with found=false for a missing
	// or expired entry.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key, replacing any existing entry. A ttl <= 0
	// means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes the given keys, silently skipping missing ones, and
	// returns the number actually removed.
	Delete(ctx context.Context, keys ...string) (int, error)

	// Exists reports whether a non-expired entry is present for key.
	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all entries unconditionally.
	Clear(ctx context.Context) error

	// Stats returns a snapshot of the backend. Expired entries found during
	// the scan are purged as a side effect.
	Stats(ctx context.Context) (Stats, error)

	// Keys returns all non-expired keys matching pattern ("*" and "?" glob
	// wildcards; empty means "*"). Expired entries found during the scan are
	// purged.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Name returns the backend kind name.
	Name() string

	// Close releases any resources held by the backend.
	Close() error
}

// Stats is a point-in-time snapshot of a backend.
type Stats struct {
	// Backend is the kind name of the backend that produced the snapshot.
	Backend string `msgpack:"backend" yaml:"backend"`
	// TotalKeys is the number of live entries after the snapshot's sweep.
	TotalKeys int `msgpack:"total_keys" yaml:"total_keys"`
	// ExpiredKeys is the number of expired entries found (and purged)
	// during the snapshot.
	ExpiredKeys int `msgpack:"expired_keys" yaml:"expired_keys"`
	// Extra holds backend-specific counters, such as the redis INFO fields.
	Extra map[string]string `msgpack:"extra,omitempty" yaml:"extra,omitempty"`
}
