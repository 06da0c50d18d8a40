package cache

import (
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"

	"github.com/shelfdb/cachekit/logger"
)

// DefaultTimeout is the per-operation timeout for backends that perform
// network I/O. Prevents indefinite hangs on slow or unresponsive storage.
const DefaultTimeout = 5 * time.Second

// DefaultTTL is the fallback TTL for callers that want "some reasonable
// expiry" without picking one (the cachectl set command, for example).
// Inside the library a ttl <= 0 always means "never expires".
const DefaultTTL = 5 * time.Minute

// Config selects and parameterizes the backend. It is consumed once at
// construction; the chosen backend is fixed for the life of the Service.
type Config struct {
	// Backend is one of memory, file, redis, null. Empty selects memory.
	Backend string `env:"CACHE_BACKEND" yaml:"backend"`
	// Dir is the cache directory for the file backend.
	Dir string `env:"CACHE_DIR" yaml:"dir"`
	// RedisURL is the connection URL for the redis backend,
	// e.g. redis://localhost:6379/0.
	RedisURL string `env:"CACHE_REDIS_URL" yaml:"redis_url"`
	// Timeout bounds each network operation for the redis backend.
	Timeout time.Duration `env:"CACHE_TIMEOUT" yaml:"-"`
	// DefaultTTL is the expiry used by tooling when none is given.
	DefaultTTL time.Duration `env:"CACHE_DEFAULT_TTL" yaml:"-"`
}

// DefaultConfig returns a Config with the memory backend, a cache directory
// under the OS temp dir, and default timeouts.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendMemory,
		Dir:        filepath.Join(os.TempDir(), "cachekit"),
		Timeout:    DefaultTimeout,
		DefaultTTL: DefaultTTL,
	}
}

// durationParser understands human duration strings like "90s", "5m" or
// "1d12h" for the duration fields in Config.
func durationParser(v string) (interface{}, error) {
	d, err := str2duration.ParseDuration(v)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid duration %q", v)
	}
	return d, nil
}

// FromEnv builds a Config from CACHE_* environment variables on top of the
// defaults.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	err := env.ParseWithOptions(&cfg, env.Options{
		FuncMap: map[reflect.Type]env.ParserFunc{
			reflect.TypeOf(time.Duration(0)): durationParser,
		},
	})
	if err != nil {
		return Config{}, errors.Wrap(err, "cache: parse environment")
	}
	return cfg, nil
}

// fileConfig is the YAML shape of Config. Durations are strings so they can
// be written the human way ("30s", "10m"). Backend is kept as a raw node
// because YAML resolves an unquoted `null` to a null scalar, not the string
// "null".
type fileConfig struct {
	Backend    yaml.Node `yaml:"backend"`
	Dir        string    `yaml:"dir"`
	RedisURL   string    `yaml:"redis_url"`
	Timeout    string    `yaml:"timeout"`
	DefaultTTL string    `yaml:"default_ttl"`
}

// backendName extracts the backend kind from its YAML node. A bare null
// scalar (`backend: null`, `~`) selects the null backend; an absent field
// keeps the default.
func backendName(node yaml.Node) (string, error) {
	if node.IsZero() {
		return "", nil
	}
	if node.Tag == "!!null" {
		return BackendNull, nil
	}
	var name string
	if err := node.Decode(&name); err != nil {
		return "", err
	}
	return name, nil
}

// LoadFile reads a YAML config file on top of the defaults.
func LoadFile(path string) (Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cache: read config %s", path)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(buf, &fc); err != nil {
		return Config{}, errors.Wrapf(err, "cache: parse config %s", path)
	}
	cfg := DefaultConfig()
	backend, err := backendName(fc.Backend)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cache: invalid backend in %s", path)
	}
	if backend != "" {
		cfg.Backend = backend
	}
	if fc.Dir != "" {
		cfg.Dir = fc.Dir
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.Timeout != "" {
		d, err := str2duration.ParseDuration(fc.Timeout)
		if err != nil {
			return Config{}, errors.Wrapf(err, "cache: invalid timeout in %s", path)
		}
		cfg.Timeout = d
	}
	if fc.DefaultTTL != "" {
		d, err := str2duration.ParseDuration(fc.DefaultTTL)
		if err != nil {
			return Config{}, errors.Wrapf(err, "cache: invalid default_ttl in %s", path)
		}
		cfg.DefaultTTL = d
	}
	return cfg, nil
}

// NewBackend constructs the backend selected by cfg.Backend. Bootstrap
// failures (bad directory, unreachable redis) are returned, not swallowed.
func NewBackend(cfg Config, log logger.Logger) (Backend, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return newMemoryBackend(log), nil
	case BackendFile:
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultConfig().Dir
		}
		return newFileBackend(dir, log)
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("cache: redis backend requires a connection URL")
		}
		return newRedisBackend(cfg, log)
	case BackendNull:
		return newNullBackend(), nil
	default:
		return nil, errors.Newf("cache: unknown backend %q", cfg.Backend)
	}
}
