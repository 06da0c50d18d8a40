package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfdb/cachekit/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.NotEmpty(t, cfg.Dir)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultTTL, cfg.DefaultTTL)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "file")
	t.Setenv("CACHE_DIR", "/var/cache/books")
	t.Setenv("CACHE_TIMEOUT", "30s")
	t.Setenv("CACHE_DEFAULT_TTL", "1d")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, "/var/cache/books", cfg.Dir)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.DefaultTTL)
}

func TestFromEnvBadDuration(t *testing.T) {
	t.Setenv("CACHE_TIMEOUT", "soon")
	_, err := FromEnv()
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"backend: redis\nredis_url: redis://localhost:6379/1\ntimeout: 2s\ndefault_ttl: 10m\n",
	), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 10*time.Minute, cfg.DefaultTTL)
}

func TestLoadFilePartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dir: /var/cache/books\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/books", cfg.Dir)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

// YAML resolves an unquoted `null` to a null scalar, so the null backend
// must be selectable both quoted and bare.
func TestLoadFileNullBackendSpellings(t *testing.T) {
	for name, body := range map[string]string{
		"bare":   "backend: null\n",
		"tilde":  "backend: ~\n",
		"quoted": "backend: \"null\"\n",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cache.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			cfg, err := LoadFile(path)
			require.NoError(t, err)
			assert.Equal(t, BackendNull, cfg.Backend)
		})
	}
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestNewBackendKinds(t *testing.T) {
	log := logger.NewTestLogger()

	b, err := NewBackend(Config{Backend: ""}, log)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, b.Name())

	b, err = NewBackend(Config{Backend: BackendNull}, log)
	require.NoError(t, err)
	assert.Equal(t, BackendNull, b.Name())

	b, err = NewBackend(Config{Backend: BackendFile, Dir: t.TempDir()}, log)
	require.NoError(t, err)
	assert.Equal(t, BackendFile, b.Name())
}

func TestNewBackendUnknownKind(t *testing.T) {
	_, err := NewBackend(Config{Backend: "memcached"}, logger.NewTestLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")
}

func TestNewBackendRedisRequiresURL(t *testing.T) {
	_, err := NewBackend(Config{Backend: BackendRedis}, logger.NewTestLogger())
	require.Error(t, err)
}
