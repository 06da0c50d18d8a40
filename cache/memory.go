package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shelfdb/cachekit/logger"
)

// memoryBackend keeps entries in two parallel maps: store holds the bytes,
// expiry holds the deadline for entries that have one. A single mutex covers
// every operation for its full duration; this backend targets development
// and test workloads where simplicity beats throughput.
type memoryBackend struct {
	mutex  sync.Mutex
	store  map[string][]byte
	expiry map[string]time.Time
	log    logger.Logger
}

var _ Backend = (*memoryBackend)(nil)

func newMemoryBackend(log logger.Logger) *memoryBackend {
	return &memoryBackend{
		store:  make(map[string][]byte),
		expiry: make(map[string]time.Time),
		log:    log,
	}
}

func (b *memoryBackend) Name() string { return BackendMemory }

// expired reports whether key has a deadline in the past. Caller holds the
// mutex.
func (b *memoryBackend) expired(key string, now time.Time) bool {
	deadline, ok := b.expiry[key]
	return ok && deadline.Before(now)
}

// purge removes key from both maps. Caller holds the mutex.
func (b *memoryBackend) purge(key string) {
	delete(b.store, key)
	delete(b.expiry, key)
}

func (b *memoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	data, ok := b.store[key]
	if !ok {
		return nil, false, nil
	}
	if b.expired(key, time.Now()) {
		b.purge(key)
		return nil, false, nil
	}
	return data, true, nil
}

func (b *memoryBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.store[key] = data
	if ttl > 0 {
		b.expiry[key] = time.Now().Add(ttl)
	} else {
		delete(b.expiry, key)
	}
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, keys ...string) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var removed int
	for _, key := range keys {
		if _, ok := b.store[key]; ok {
			b.purge(key)
			removed++
		}
	}
	return removed, nil
}

func (b *memoryBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if _, ok := b.store[key]; !ok {
		return false, nil
	}
	if b.expired(key, time.Now()) {
		b.purge(key)
		return false, nil
	}
	return true, nil
}

func (b *memoryBackend) Clear(_ context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.store = make(map[string][]byte)
	b.expiry = make(map[string]time.Time)
	return nil
}

// sweep purges every expired entry and returns how many were removed.
// Caller holds the mutex.
func (b *memoryBackend) sweep(now time.Time) int {
	var purged int
	for key, deadline := range b.expiry {
		if deadline.Before(now) {
			b.purge(key)
			purged++
		}
	}
	return purged
}

func (b *memoryBackend) Stats(_ context.Context) (Stats, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	purged := b.sweep(time.Now())
	return Stats{
		Backend:     BackendMemory,
		TotalKeys:   len(b.store),
		ExpiredKeys: purged,
		Extra:       map[string]string{},
	}, nil
}

func (b *memoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.sweep(time.Now())
	keys := make([]string, 0, len(b.store))
	for key := range b.store {
		if re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (b *memoryBackend) Close() error { return nil }
