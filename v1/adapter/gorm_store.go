package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/mirkobrombin/warp-kv/v1/cache"
)

const defaultGormTableName = "cache"

// gormEntry is the row model of the cache table. created_at is stored as
// TEXT in cache.TimestampLayout so that string order is time order.
type gormEntry struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value"`
	WrittenAt string `gorm:"column:created_at"`
}

// GormStore implements Store on top of a GORM connection.
type GormStore struct {
	db        *gorm.DB
	tableName string
	timeout   time.Duration
	now       Clock
	owned     bool
}

// GormOption configures a GormStore.
type GormOption func(*gormStoreOptions)

type gormStoreOptions struct {
	tableName string
	timeout   time.Duration
	now       Clock
}

// WithGormTableName sets the table name for the GormStore.
func WithGormTableName(name string) GormOption {
	return func(o *gormStoreOptions) {
		o.tableName = name
	}
}

// WithGormTimeout sets the operation timeout for GORM calls.
func WithGormTimeout(d time.Duration) GormOption {
	return func(o *gormStoreOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithGormClock overrides the clock used to stamp writes.
func WithGormClock(now Clock) GormOption {
	return func(o *gormStoreOptions) {
		o.now = now
	}
}

// NewGormStore returns a GormStore using db, creating the cache table if it
// does not exist yet. The caller keeps ownership of db.
func NewGormStore(db *gorm.DB, opts ...GormOption) (*GormStore, error) {
	o := gormStoreOptions{
		tableName: defaultGormTableName,
		timeout:   defaultOpTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	table := clause.Table{Name: o.tableName}
	index := clause.Table{Name: o.tableName + "_created_at_idx"}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(
			"CREATE TABLE IF NOT EXISTS ? (key TEXT PRIMARY KEY, value TEXT NOT NULL, created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP)",
			table,
		).Error; err != nil {
			return err
		}
		return tx.Exec("CREATE INDEX IF NOT EXISTS ? ON ? (created_at)", index, table).Error
	})
	if err != nil {
		return nil, wrapErr("migrate", err)
	}

	return &GormStore{
		db:        db,
		tableName: o.tableName,
		timeout:   o.timeout,
		now:       o.now,
	}, nil
}

// OpenSQLite opens a SQLite database through GORM and returns a store that
// owns the connection. GORM's own logging is routed to log.
//
// SQLite allows a single writer, so the pool is capped at one connection and
// every statement is serialised by the engine.
func OpenSQLite(dialector gorm.Dialector, log *slog.Logger, opts ...GormOption) (*GormStore, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(slogWriter{log: log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, wrapErr("open", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, wrapErr("open", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s, err := NewGormStore(db, opts...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Get implements Store.Get.
func (s *GormStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return cache.Entry{}, false, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var row gormEntry
	err := s.db.WithContext(cctx).Table(s.tableName).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, wrapErr("get", err)
	}

	ts, err := cache.ParseTimestamp(row.WrittenAt)
	if err != nil {
		return cache.Entry{}, false, wrapErr("get", err)
	}
	return cache.Entry{Key: row.Key, Value: row.Value, CreatedAt: ts}, true, nil
}

// Set implements Store.Set with INSERT ... ON CONFLICT DO UPDATE.
func (s *GormStore) Set(ctx context.Context, key, value string) error {
	if err := ctxErr(ctx, "set"); err != nil {
		return err
	}

	row := gormEntry{
		Key:       key,
		Value:     value,
		WrittenAt: cache.NewTimestamp(s.now()).String(),
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(cctx).Table(s.tableName).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "created_at"}),
	}).Create(&row).Error; err != nil {
		return wrapErr("set", err)
	}
	return nil
}

// DeleteOlderThan implements Store.DeleteOlderThan with a single DELETE.
func (s *GormStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctxErr(ctx, "delete_older_than"); err != nil {
		return 0, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := s.db.WithContext(cctx).Table(s.tableName).
		Where("created_at < ?", cache.NewTimestamp(cutoff).String()).
		Delete(&gormEntry{})
	if res.Error != nil {
		return 0, wrapErr("delete_older_than", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the database when the store opened it itself.
func (s *GormStore) Close() error {
	if !s.owned {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// slogWriter adapts slog to GORM's logger.Writer.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...any) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "gorm")
}
