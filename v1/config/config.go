// Package config loads the warp-kv runtime configuration from environment
// variables and command-line flags. Flags take precedence over the
// environment. Every value is validated once; any problem is reported as
// errors.ErrConfig before the server starts.
package config

import (
	stdErrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

// Backend selects the Store implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
	BackendBolt   Backend = "bolt"
)

// Config is the validated runtime configuration.
type Config struct {
	Host string
	Port int

	// Interval is the sweep tick; TTL the maximum entry age.
	Interval time.Duration
	TTL      time.Duration
	Unit     TimeUnit

	EnableDocs bool
	Metrics    bool
	Tracing    bool

	Store StoreConfig
	Log   LogConfig
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Backend       Backend
	SQLiteDSN     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	BoltPath      string
	Timeout       time.Duration
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  slog.Level
	Format string
	File   string
	// MaxSizeMB and MaxAgeDays bound the rotated log file and its backups.
	MaxSizeMB  int
	MaxAgeDays int
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load builds a Config from args (without the program name) and the
// environment exposed by lookup, usually os.LookupEnv.
func Load(args []string, lookup func(string) (string, bool)) (Config, error) {
	env := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return def
	}

	fs := flag.NewFlagSet("warpkv", flag.ContinueOnError)
	host := fs.String("host", env("HOST", "127.0.0.1"), "address to listen on")
	port := fs.String("port", env("PORT", "3000"), "port to listen on")
	interval := fs.String("interval", env("EXPIRY_INTERVAL", "5"), "sweep interval magnitude")
	unit := fs.String("unit", env("EXPIRY_UNIT", "Minutes"), "sweep interval unit: Seconds, Minutes or Hours")
	ttl := fs.String("ttl", env("EXPIRY_TTL", ""), "entry TTL magnitude in the same unit (defaults to the interval)")
	docs := fs.String("docs", env("ENABLE_SWAGGER", "true"), "serve the OpenAPI document")
	tracing := fs.String("tracing", env("TRACING", "false"), "export OpenTelemetry spans to stdout")
	backend := fs.String("store", env("STORE_BACKEND", string(BackendSQLite)), "store backend: sqlite, redis or bolt")
	sqliteDSN := fs.String("sqlite-dsn", env("SQLITE_DSN", "file::memory:?cache=shared"), "SQLite DSN")
	redisAddr := fs.String("redis-addr", env("REDIS_ADDR", "localhost:6379"), "Redis address")
	boltPath := fs.String("bolt-path", env("BOLT_PATH", "warpkv.bbolt"), "bbolt database file")
	logLevel := fs.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %w", warperrors.ErrConfig, err)
	}

	cfg := Config{
		Host: *host,
		Store: StoreConfig{
			Backend:       Backend(*backend),
			SQLiteDSN:     *sqliteDSN,
			RedisAddr:     *redisAddr,
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisPrefix:   env("REDIS_PREFIX", "warpkv:"),
			BoltPath:      *boltPath,
		},
		Log: LogConfig{
			Format: env("LOG_FORMAT", "text"),
			File:   env("LOG_FILE", ""),
		},
	}

	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{warperrors.ErrConfig}, args...)...))
	}

	if p, err := strconv.Atoi(*port); err != nil || p < 1 || p > 65535 {
		bad("invalid port %q", *port)
	} else {
		cfg.Port = p
	}

	u, err := ParseTimeUnit(*unit)
	if err != nil {
		errs = append(errs, err)
	}
	cfg.Unit = u
	n, err := positive(*interval)
	if err == nil && u != 0 && n > u.MaxMagnitude() {
		err = fmt.Errorf("exceeds %d %s", u.MaxMagnitude(), u)
	}
	if err != nil {
		bad("invalid sweep interval %q: %v", *interval, err)
	}
	cfg.Interval = u.Duration(n)
	cfg.TTL = cfg.Interval
	if *ttl != "" {
		n, err := positive(*ttl)
		if err == nil && u != 0 && n > u.MaxMagnitude() {
			err = fmt.Errorf("exceeds %d %s", u.MaxMagnitude(), u)
		}
		if err != nil {
			bad("invalid ttl %q: %v", *ttl, err)
		}
		cfg.TTL = u.Duration(n)
	}

	if cfg.EnableDocs, err = strconv.ParseBool(*docs); err != nil {
		bad("invalid ENABLE_SWAGGER %q", *docs)
	}
	if cfg.Tracing, err = strconv.ParseBool(*tracing); err != nil {
		bad("invalid TRACING %q", *tracing)
	}
	metricsFlag := env("METRICS", "true")
	if cfg.Metrics, err = strconv.ParseBool(metricsFlag); err != nil {
		bad("invalid METRICS %q", metricsFlag)
	}

	switch cfg.Store.Backend {
	case BackendSQLite, BackendRedis, BackendBolt:
	default:
		bad("unknown store backend %q (want sqlite, redis or bolt)", *backend)
	}
	redisDB := env("REDIS_DB", "0")
	if cfg.Store.RedisDB, err = strconv.Atoi(redisDB); err != nil || cfg.Store.RedisDB < 0 {
		bad("invalid REDIS_DB %q", redisDB)
	}
	timeout := env("STORE_TIMEOUT", "5s")
	if cfg.Store.Timeout, err = time.ParseDuration(timeout); err != nil || cfg.Store.Timeout <= 0 {
		bad("invalid STORE_TIMEOUT %q", timeout)
	}

	if err := cfg.Log.Level.UnmarshalText([]byte(*logLevel)); err != nil {
		bad("invalid log level %q", *logLevel)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		bad("invalid LOG_FORMAT %q (want text or json)", cfg.Log.Format)
	}
	maxSize := env("LOG_MAX_SIZE_MB", "100")
	if n, err := positive(maxSize); err != nil {
		bad("invalid LOG_MAX_SIZE_MB %q", maxSize)
	} else {
		cfg.Log.MaxSizeMB = int(n)
	}
	maxAge := env("LOG_MAX_AGE_DAYS", "7")
	if n, err := positive(maxAge); err != nil {
		bad("invalid LOG_MAX_AGE_DAYS %q", maxAge)
	} else {
		cfg.Log.MaxAgeDays = int(n)
	}

	if len(errs) > 0 {
		return Config{}, stdErrors.Join(errs...)
	}
	return cfg, nil
}

func positive(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, stdErrors.New("must be positive")
	}
	return n, nil
}
