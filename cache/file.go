package cache

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/shelfdb/cachekit/logger"
)

// headerSize is the fixed on-disk header: an 8-byte big-endian expiry as
// Unix epoch seconds, 0 meaning "no expiry". The serialized payload follows
// for the rest of the file.
const headerSize = 8

const fileExt = ".cache"

// unsafeChars matches every byte not allowed in a cache filename.
var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9\-_:]`)

// fileBackend stores one file per key under <dir>/<shard>/<key>.cache,
// where shard is the first two hex characters of the md5 of the sanitized
// key. The mutex serializes writers within this process only; there is no
// cross-process file locking (documented limitation — concurrent writers
// from different processes can interleave).
type fileBackend struct {
	dir   string
	mutex sync.Mutex
	log   logger.Logger
}

var _ Backend = (*fileBackend)(nil)

func newFileBackend(dir string, log logger.Logger) (*fileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cache: create cache dir %s", dir)
	}
	return &fileBackend{dir: dir, log: log}, nil
}

func (b *fileBackend) Name() string { return BackendFile }

func sanitizeKey(key string) string {
	return unsafeChars.ReplaceAllString(key, "_")
}

// path returns the sharded file path for key.
func (b *fileBackend) path(key string) string {
	name := sanitizeKey(key)
	sum := md5.Sum([]byte(name))
	shard := hex.EncodeToString(sum[:])[:2]
	return filepath.Join(b.dir, shard, name+fileExt)
}

// removeCorrupt deletes a file that failed to read or parse. The cache
// heals itself rather than serving the same broken entry forever.
func (b *fileBackend) removeCorrupt(path string, err error) {
	b.log.Warn("cache: removing unreadable cache file %s: %s", path, err)
	_ = os.Remove(path)
}

// fileExpired reports whether the header marks a deadline strictly in the
// past. Second precision; 0 means no expiry.
func fileExpired(expiresAt uint64, now time.Time) bool {
	return expiresAt > 0 && uint64(now.Unix()) > expiresAt
}

func (b *fileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	path := b.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		b.removeCorrupt(path, err)
		return nil, false, nil
	}
	if len(data) < headerSize {
		b.removeCorrupt(path, errors.Newf("short file (%d bytes)", len(data)))
		return nil, false, nil
	}
	expiresAt := binary.BigEndian.Uint64(data[:headerSize])
	if fileExpired(expiresAt, time.Now()) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data[headerSize:], true, nil
}

func (b *fileBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	path := b.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "cache: create shard dir")
	}
	var expiresAt uint64
	if ttl > 0 {
		expiresAt = uint64(time.Now().Add(ttl).Unix())
	}
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint64(header, expiresAt)

	// Write to a temp file then rename so a reader never sees a half-written
	// entry. Atomic for writers within this process only.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "cache: create temp file")
	}
	if _, err = tmp.Write(header); err == nil {
		_, err = tmp.Write(data)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "cache: write cache file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "cache: rename cache file")
	}
	return nil
}

func (b *fileBackend) Delete(_ context.Context, keys ...string) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var removed int
	for _, key := range keys {
		err := os.Remove(b.path(key))
		if err == nil {
			removed++
		} else if !os.IsNotExist(err) {
			return removed, errors.Wrapf(err, "cache: delete %s", key)
		}
	}
	return removed, nil
}

func (b *fileBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	path := b.path(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		b.removeCorrupt(path, err)
		return false, nil
	}
	header := make([]byte, headerSize)
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil {
		b.removeCorrupt(path, err)
		return false, nil
	}
	if fileExpired(binary.BigEndian.Uint64(header), time.Now()) {
		_ = os.Remove(path)
		return false, nil
	}
	return true, nil
}

func (b *fileBackend) Clear(_ context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	err := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		return os.Remove(path)
	})
	if err != nil {
		return errors.Wrap(err, "cache: clear")
	}
	b.pruneEmptyShards()
	return nil
}

// pruneEmptyShards removes shard directories left empty after deletions.
// Caller holds the mutex.
func (b *fileBackend) pruneEmptyShards() {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			// Fails for non-empty directories, which is the point.
			_ = os.Remove(filepath.Join(b.dir, entry.Name()))
		}
	}
}

// walkEntries visits every cache file under the root, handing each one's
// path, reconstructed key, and header expiry to fn. Expired files are
// removed and not visited. The key is the filename minus the extension;
// sanitization is not reversible, so a key that originally contained
// disallowed characters comes back with them replaced by "_".
func (b *fileBackend) walkEntries(fn func(path, key string)) (expired int, err error) {
	now := time.Now()
	err = filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			b.removeCorrupt(path, err)
			return nil
		}
		header := make([]byte, headerSize)
		_, err = io.ReadFull(f, header)
		f.Close()
		if err != nil {
			b.removeCorrupt(path, err)
			return nil
		}
		if fileExpired(binary.BigEndian.Uint64(header), now) {
			_ = os.Remove(path)
			expired++
			return nil
		}
		fn(path, strings.TrimSuffix(d.Name(), fileExt))
		return nil
	})
	return expired, err
}

func (b *fileBackend) Stats(_ context.Context) (Stats, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var total int
	expired, err := b.walkEntries(func(string, string) { total++ })
	if err != nil {
		return Stats{}, errors.Wrap(err, "cache: stats")
	}
	return Stats{
		Backend:     BackendFile,
		TotalKeys:   total,
		ExpiredKeys: expired,
		Extra:       map[string]string{"cache_dir": b.dir},
	}, nil
}

func (b *fileBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}
	re, err := compilePattern(pattern)
	if err != nil {
		return nil, err
	}
	b.mutex.Lock()
	defer b.mutex.Unlock()
	keys := make([]string, 0)
	if _, err := b.walkEntries(func(_, key string) {
		if re.MatchString(key) {
			keys = append(keys, key)
		}
	}); err != nil {
		return nil, errors.Wrap(err, "cache: keys")
	}
	return keys, nil
}

func (b *fileBackend) Close() error { return nil }
