// Package presets builds ready-to-use Store backends from configuration.
package presets

import (
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	"github.com/mirkobrombin/warp-kv/v1/config"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

// RedisOptions configures the connection to Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewSQLite opens the SQLite-backed store. It is the default backend and,
// with an in-memory DSN, keeps nothing across restarts.
func NewSQLite(dsn string, log *slog.Logger, opts ...adapter.GormOption) (adapter.Store, error) {
	s, err := adapter.OpenSQLite(sqlite.Open(dsn), log, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewRedis creates a Redis-backed store.
func NewRedis(opts RedisOptions, storeOpts ...adapter.RedisOption) adapter.Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return adapter.NewRedisStore(client, storeOpts...)
}

// NewBolt opens a bbolt-backed store at path.
func NewBolt(path string, opts ...adapter.BoltOption) (adapter.Store, error) {
	s, err := adapter.OpenBolt(path, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open builds the backend selected by cfg.
func Open(cfg config.StoreConfig, log *slog.Logger) (adapter.Store, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLiteDSN, log, adapter.WithGormTimeout(cfg.Timeout))
	case config.BackendRedis:
		return NewRedis(
			RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
			adapter.WithTimeout(cfg.Timeout), adapter.WithPrefix(cfg.RedisPrefix),
		), nil
	case config.BackendBolt:
		return NewBolt(cfg.BoltPath)
	}
	return nil, fmt.Errorf("%w: unknown store backend %q", warperrors.ErrConfig, cfg.Backend)
}
