package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfdb/cachekit/logger"
)

func newTestMemory() *memoryBackend {
	return newMemoryBackend(logger.NewTestLogger())
}

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()

	_, found, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, b.Set(ctx, "key", []byte("value"), 0))
	data, found, err := b.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("value"), data)

	// Overwrite replaces value and expiry unconditionally.
	require.NoError(t, b.Set(ctx, "key", []byte("second"), time.Minute))
	data, found, _ = b.Get(ctx, "key")
	assert.True(t, found)
	assert.Equal(t, []byte("second"), data)
}

func TestMemoryTTLExpiry(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()

	require.NoError(t, b.Set(ctx, "key", []byte("value"), 20*time.Millisecond))
	_, found, _ := b.Get(ctx, "key")
	assert.True(t, found)
	ok, _ := b.Exists(ctx, "key")
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, found, err := b.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, found)
	ok, err = b.Exists(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	// The expired entry was purged from both maps, not just hidden.
	b.mutex.Lock()
	assert.Empty(t, b.store)
	assert.Empty(t, b.expiry)
	b.mutex.Unlock()
}

func TestMemoryNoExpiry(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "key", []byte("forever"), 0))
	time.Sleep(30 * time.Millisecond)
	_, found, _ := b.Get(ctx, "key")
	assert.True(t, found)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "present", []byte("v"), 0))

	removed, err := b.Delete(ctx, "present", "missing")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, _ := b.Get(ctx, "present")
	assert.False(t, found)
}

func TestMemoryClear(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, b.Clear(ctx))
	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalKeys)
}

func TestMemoryKeysPattern(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "ns:a:x=1", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "ns:a:x=2", []byte("2"), 0))
	require.NoError(t, b.Set(ctx, "ns:b:y=1", []byte("3"), 0))

	keys, err := b.Keys(ctx, "ns:a:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ns:a:x=1", "ns:a:x=2"}, keys)

	all, err := b.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryKeysPurgesExpired(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "live", []byte("1"), 0))
	require.NoError(t, b.Set(ctx, "dead", []byte("2"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	keys, err := b.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, keys)
	b.mutex.Lock()
	_, ok := b.store["dead"]
	b.mutex.Unlock()
	assert.False(t, ok)
}

func TestMemoryStatsSweep(t *testing.T) {
	ctx := context.Background()
	b := newTestMemory()
	require.NoError(t, b.Set(ctx, "live", []byte("1"), time.Minute))
	require.NoError(t, b.Set(ctx, "dead1", []byte("2"), 5*time.Millisecond))
	require.NoError(t, b.Set(ctx, "dead2", []byte("3"), 5*time.Millisecond))
	time.Sleep(15 * time.Millisecond)

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, stats.Backend)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Equal(t, 2, stats.ExpiredKeys)

	// Second snapshot finds nothing left to purge.
	stats, _ = b.Stats(ctx)
	assert.Equal(t, 1, stats.TotalKeys)
	assert.Zero(t, stats.ExpiredKeys)
}
