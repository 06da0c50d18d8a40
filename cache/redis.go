package cache

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/shelfdb/cachekit/logger"
)

const (
	// scanBatch is the COUNT hint passed to each SCAN round-trip.
	scanBatch = 100
	// maxScanIterations caps the number of SCAN round-trips in one Keys
	// call. A full keyspace listing can stall a shared store, so the loop
	// aborts past this and returns whatever it accumulated.
	maxScanIterations = 1000
)

// redisBackend is a TTL-aware networked store. The connection is replaced
// transparently: an operation that fails with a connection-class error
// discards the stale client, redials, and retries exactly once.
type redisBackend struct {
	opts    *redis.Options
	timeout time.Duration
	log     logger.Logger

	mu     sync.Mutex // serializes client replacement
	client *redis.Client
}

var _ Backend = (*redisBackend)(nil)

// newRedisBackend connects to the store at cfg.RedisURL. Unlike every other
// operation, bootstrap failure is returned to the caller: a cache that
// cannot even connect should fail fast, not silently behave as a null cache.
func newRedisBackend(cfg Config, log logger.Logger) (*redisBackend, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "cache: parse redis url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	b := &redisBackend{
		opts:    opts,
		timeout: timeout,
		log:     log,
		client:  redis.NewClient(opts),
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := b.client.Ping(ctx).Err(); err != nil {
		_ = b.client.Close()
		log.Error("cache: redis bootstrap failed for %s: %s", opts.Addr, err)
		return nil, errors.Wrapf(err, "cache: connect to redis at %s", opts.Addr)
	}
	return b, nil
}

func (b *redisBackend) Name() string { return BackendRedis }

func (b *redisBackend) conn() *redis.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client
}

// reconnect replaces stale with a fresh client. If another goroutine
// already swapped the client out, the current one is reused.
func (b *redisBackend) reconnect(stale *redis.Client) *redis.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != stale {
		return b.client
	}
	_ = stale.Close()
	b.client = redis.NewClient(b.opts)
	return b.client
}

// isConnError distinguishes connection-level failures (worth a reconnect)
// from application-level results like redis.Nil or a cancelled context.
func isConnError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// do runs op against the current client, reconnecting and retrying exactly
// once on a connection-class error.
func (b *redisBackend) do(ctx context.Context, op func(ctx context.Context, c *redis.Client) error) error {
	client := b.conn()
	octx, cancel := context.WithTimeout(ctx, b.timeout)
	err := op(octx, client)
	cancel()
	if err == nil || !isConnError(err) {
		return err
	}
	b.log.Warn("cache: redis connection error, reconnecting: %s", err)
	client = b.reconnect(client)
	rctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	return op(rctx, client)
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		res, err := c.Get(ctx, key).Bytes()
		if err != nil {
			return err
		}
		data = res
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "cache: redis get")
	}
	return data, true, nil
}

func (b *redisBackend) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		// ttl == 0 is a plain SET with no expiry; otherwise the native
		// expiring write.
		return c.Set(ctx, key, data, ttl).Err()
	})
	if err != nil {
		return errors.Wrap(err, "cache: redis set")
	}
	return nil
}

func (b *redisBackend) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var removed int64
	err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		res, err := c.Del(ctx, keys...).Result()
		if err != nil {
			return err
		}
		removed = res
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "cache: redis delete")
	}
	return int(removed), nil
}

func (b *redisBackend) Exists(ctx context.Context, key string) (bool, error) {
	var n int64
	err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		res, err := c.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		n = res
		return nil
	})
	if err != nil {
		return false, errors.Wrap(err, "cache: redis exists")
	}
	return n > 0, nil
}

func (b *redisBackend) Clear(ctx context.Context) error {
	err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		return c.FlushDB(ctx).Err()
	})
	if err != nil {
		return errors.Wrap(err, "cache: redis clear")
	}
	return nil
}

// infoFields maps redis INFO field names to the Stats.Extra keys they
// surface under.
var infoFields = map[string]string{
	"used_memory_human":        "memory_used",
	"connected_clients":        "connected_clients",
	"total_commands_processed": "total_commands",
	"keyspace_hits":            "hits",
	"keyspace_misses":          "misses",
	"redis_version":            "version",
	"uptime_in_seconds":        "uptime_seconds",
}

func zeroRedisExtra() map[string]string {
	extra := make(map[string]string, len(infoFields))
	for _, name := range infoFields {
		extra[name] = "0"
	}
	extra["version"] = "unknown"
	extra["memory_used"] = "unknown"
	return extra
}

// Stats surfaces store-level counters from INFO plus DBSIZE. If the store
// is unreachable it returns a zero-valued placeholder instead of failing:
// stats are informational and must never take the caller down.
func (b *redisBackend) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Backend: BackendRedis, Extra: zeroRedisExtra()}

	var size int64
	if err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		res, err := c.DBSize(ctx).Result()
		if err != nil {
			return err
		}
		size = res
		return nil
	}); err != nil {
		b.log.Warn("cache: redis stats unavailable: %s", err)
		return stats, nil
	}
	stats.TotalKeys = int(size)

	var info string
	if err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
		res, err := c.Info(ctx).Result()
		if err != nil {
			return err
		}
		info = res
		return nil
	}); err != nil {
		b.log.Warn("cache: redis INFO unavailable: %s", err)
		return stats, nil
	}
	for _, line := range strings.Split(info, "\n") {
		name, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		if out, ok := infoFields[name]; ok {
			stats.Extra[out] = value
		}
	}
	return stats, nil
}

// scanFunc is one SCAN round-trip: it returns a batch of keys and the next
// cursor. Factored out so the loop's pathology handling is testable without
// a misbehaving server.
type scanFunc func(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)

// scanKeys drives a cursor-based SCAN to completion, defending against two
// independent pathologies: a runaway keyspace (hard iteration cap) and a
// server that repeats a cursor without ever reaching the terminal 0 (abort
// immediately — a well-behaved scan never revisits a cursor). In both cases
// it logs a warning and returns what it accumulated. Results are deduped
// since SCAN may return a key more than once.
func scanKeys(ctx context.Context, pattern string, log logger.Logger, scan scanFunc) ([]string, error) {
	seen := make(map[string]struct{})
	keys := make([]string, 0)
	cursors := make(map[uint64]struct{})
	var cursor uint64
	for i := 0; ; i++ {
		if i >= maxScanIterations {
			log.Warn("cache: redis scan hit safety limit after %d iterations, returning partial results", maxScanIterations)
			break
		}
		batch, next, err := scan(ctx, cursor, pattern, scanBatch)
		if err != nil {
			return nil, err
		}
		for _, key := range batch {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				keys = append(keys, key)
			}
		}
		if next == 0 {
			break
		}
		if _, dup := cursors[next]; dup {
			log.Warn("cache: redis scan infinite loop detected (cursor %d repeated), returning partial results", next)
			break
		}
		cursors[next] = struct{}{}
		cursor = next
	}
	return keys, nil
}

// Keys iterates the keyspace incrementally with SCAN rather than the
// blocking KEYS command. Expired entries never show up — redis reaps them
// natively.
func (b *redisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, err := scanKeys(ctx, pattern, b.log, func(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error) {
		var (
			batch []string
			next  uint64
		)
		err := b.do(ctx, func(ctx context.Context, c *redis.Client) error {
			res, cur, err := c.Scan(ctx, cursor, pattern, count).Result()
			if err != nil {
				return err
			}
			batch, next = res, cur
			return nil
		})
		return batch, next, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "cache: redis keys")
	}
	return keys, nil
}

func (b *redisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.client.Close()
}
