// Package cache provides a pluggable cache with four backend
// implementations behind one interface, a fetch-or-compute facade, and
// glob-pattern key enumeration for bulk invalidation.
//
// # Backend Interface
//
// The [Backend] interface defines seven operations: [Backend.Get],
// [Backend.Set], [Backend.Delete], [Backend.Exists], [Backend.Clear],
// [Backend.Stats], and [Backend.Keys]. Backends store opaque bytes;
// serialization happens once, above them, in [Service]. An entry whose TTL
// has elapsed is treated as absent everywhere and purged lazily the next
// time it is touched or enumerated — there is no background reaper.
//
// # Implementations
//
//   - memory — two parallel maps (bytes and deadlines) behind one mutex.
//     Every operation holds the lock for its full duration; correctness
//     over throughput, aimed at development and tests.
//
//   - file — one file per key under md5-sharded subdirectories, with an
//     8-byte big-endian expiry header followed by the payload. Unreadable
//     or truncated files are deleted on sight, so a corrupt entry costs one
//     miss and then heals. Filenames replace characters outside
//     [A-Za-z0-9-_:] with "_", and Keys reconstructs key names from
//     filenames, so the reconstruction is lossy: a pattern embedding a
//     replaced character such as "=" never matches on this backend (use a
//     broader segment pattern or avoid "=" in keys destined for file
//     storage). No cross-process locking: concurrent writers from different
//     processes can interleave (known limitation).
//
//   - redis — networked store using [github.com/redis/go-redis/v9]. Expiry
//     uses native redis TTL. A connection-level failure mid-operation
//     triggers one reconnect-and-retry; construction pings the server and
//     fails fast if it cannot. Key enumeration uses cursor-based SCAN with
//     a hard iteration cap and repeated-cursor detection so a misbehaving
//     server cannot hang the caller.
//
//   - null — always misses and retains nothing. Configure it to turn
//     caching off without touching call sites; every fetch computes.
//
// # Service
//
// [Service] is what applications hold. It encodes values to msgpack via the
// codec package, delegates to the configured backend, and converts every
// backend fault into the operation's soft value (miss, false, 0, empty) —
// errors are logged and never escape routine cache operations. A cache
// outage degrades to a slower application, not a broken one.
//
// [Fetch] is the cache-aside helper:
//
//	book, found, err := cache.Fetch(ctx, svc, keys.Book(42), time.Minute,
//	    func(ctx context.Context) (Book, bool, error) {
//	        return loadBook(ctx, 42)
//	    },
//	)
//
// The compute function's found result distinguishes "nothing there" from a
// legitimate zero value: found=false results are returned but never cached.
// Fetch runs compute at most once per call; it does not deduplicate
// concurrent callers computing the same cold key (no single-flight).
//
// # Configuration
//
// [Config] selects the backend once at startup, from CACHE_* environment
// variables ([FromEnv]) or a YAML file ([LoadFile]). There is no global
// cache: construct a [Service] and inject it.
package cache
