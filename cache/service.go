package cache

import (
	"context"
	"time"

	"github.com/shelfdb/cachekit/codec"
	"github.com/shelfdb/cachekit/logger"
)

// Service is the front door applications use. It owns the codec round-trip
// (backends only ever see bytes) and the soft-failure policy: every
// backend fault is caught here, logged, and mapped to the operation's
// "nothing happened" value. From the caller's point of view cache
// operations are infallible — the worst case is a guaranteed miss, which is
// slower but never wrong.
//
// Construct one Service at process start and pass it to whatever needs
// caching. There is no package-level singleton; tests build their own
// instances with whatever backend they want.
type Service struct {
	backend Backend
	log     logger.Logger
}

// New builds a Service with the backend selected by cfg. An unknown backend
// kind or a backend that fails to bootstrap (bad cache dir, unreachable
// redis) is returned as an error.
func New(cfg Config, log logger.Logger) (*Service, error) {
	backend, err := NewBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(backend, log), nil
}

// NewWithBackend wraps an already-constructed backend. Useful in tests and
// for callers supplying their own Backend implementation.
func NewWithBackend(backend Backend, log logger.Logger) *Service {
	return &Service{
		backend: backend,
		log:     log.With(map[string]interface{}{"backend": backend.Name()}),
	}
}

// Backend returns the active backend.
func (s *Service) Backend() Backend { return s.backend }

// Close releases the backend's resources.
func (s *Service) Close() error { return s.backend.Close() }

// getBytes is the raw read path shared by Get and Fetch.
func (s *Service) getBytes(ctx context.Context, key string) ([]byte, bool) {
	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache: get %s failed: %s", key, err)
		return nil, false
	}
	return data, found
}

// dropCorrupt removes an entry whose stored bytes no longer decode. The
// entry would miss forever otherwise; deleting it lets the next write heal
// the slot.
func (s *Service) dropCorrupt(ctx context.Context, key string, err error) {
	s.log.Warn("cache: dropping corrupt entry %s: %s", key, err)
	if _, derr := s.backend.Delete(ctx, key); derr != nil {
		s.log.Warn("cache: delete corrupt entry %s failed: %s", key, derr)
	}
}

// Get returns the decoded value for key, or found=false on a miss, an
// expired entry, a decode failure, or any backend fault.
func (s *Service) Get(ctx context.Context, key string) (any, bool) {
	data, found := s.getBytes(ctx, key)
	if !found {
		return nil, false
	}
	val, err := codec.DecodeValue(data)
	if err != nil {
		s.dropCorrupt(ctx, key, err)
		return nil, false
	}
	return val, true
}

// Set encodes val and stores it under key. A ttl <= 0 means the entry never
// expires. Returns false on any fault.
func (s *Service) Set(ctx context.Context, key string, val any, ttl time.Duration) bool {
	data, err := codec.Encode(val)
	if err != nil {
		s.log.Warn("cache: encode for %s failed: %s", key, err)
		return false
	}
	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn("cache: set %s failed: %s", key, err)
		return false
	}
	return true
}

// Delete removes the given keys and returns how many were actually removed.
// Missing keys are skipped silently.
func (s *Service) Delete(ctx context.Context, keys ...string) int {
	if len(keys) == 0 {
		return 0
	}
	removed, err := s.backend.Delete(ctx, keys...)
	if err != nil {
		s.log.Warn("cache: delete failed: %s", err)
		return removed
	}
	return removed
}

// Exists reports whether a non-expired entry is present for key.
func (s *Service) Exists(ctx context.Context, key string) bool {
	found, err := s.backend.Exists(ctx, key)
	if err != nil {
		s.log.Warn("cache: exists %s failed: %s", key, err)
		return false
	}
	return found
}

// Clear wipes every entry.
func (s *Service) Clear(ctx context.Context) bool {
	if err := s.backend.Clear(ctx); err != nil {
		s.log.Warn("cache: clear failed: %s", err)
		return false
	}
	return true
}

// Stats returns a snapshot of the backend, or a zero-valued record naming
// the backend if the snapshot itself fails.
func (s *Service) Stats(ctx context.Context) Stats {
	stats, err := s.backend.Stats(ctx)
	if err != nil {
		s.log.Warn("cache: stats failed: %s", err)
		return Stats{Backend: s.backend.Name(), Extra: map[string]string{}}
	}
	return stats
}

// Keys returns all non-expired keys matching pattern.
func (s *Service) Keys(ctx context.Context, pattern string) []string {
	keys, err := s.backend.Keys(ctx, pattern)
	if err != nil {
		s.log.Warn("cache: keys %q failed: %s", pattern, err)
		return []string{}
	}
	return keys
}

// ClearPattern deletes every key matching pattern and returns how many were
// removed. When nothing matches it returns 0 without a delete round-trip.
func (s *Service) ClearPattern(ctx context.Context, pattern string) int {
	keys := s.Keys(ctx, pattern)
	if len(keys) == 0 {
		return 0
	}
	removed := s.Delete(ctx, keys...)
	s.log.Debug("cache: cleared %d keys matching %q", removed, pattern)
	return removed
}

// Compute produces a value for Fetch on a cache miss. Return found=false to
// signal "nothing to show" — the result is handed back to the caller but
// never cached, so the next Fetch computes again. This is how "not found"
// records avoid being pinned in the cache as stale emptiness.
type Compute[T any] func(ctx context.Context) (T, bool, error)

// Fetch is the cache-aside read path. On a hit the cached value is decoded
// and returned and compute never runs. On a miss compute runs exactly once;
// if it reports found=true the result is stored under key with ttl
// (ttl <= 0 means no expiry) and returned.
//
// Only compute's own error is ever returned — backend faults degrade to a
// miss, and a failed store after a successful compute is logged and
// swallowed since the caller already has their value.
//
// There is no cross-caller deduplication: two goroutines fetching the same
// cold key both compute. See the package documentation.
func Fetch[T any](ctx context.Context, s *Service, key string, ttl time.Duration, compute Compute[T]) (T, bool, error) {
	if data, found := s.getBytes(ctx, key); found {
		var out T
		if err := codec.Decode(data, &out); err != nil {
			s.dropCorrupt(ctx, key, err)
		} else {
			return out, true, nil
		}
	}

	val, ok, err := compute(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if !ok {
		var zero T
		return zero, false, nil
	}

	if data, err := codec.Encode(val); err != nil {
		s.log.Warn("cache: encode for %s failed: %s", key, err)
	} else if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		s.log.Warn("cache: set %s failed: %s", key, err)
	}
	return val, true, nil
}
