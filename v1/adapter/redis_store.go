package adapter

import (
	"context"
	stdErrors "errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mirkobrombin/warp-kv/v1/cache"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

const defaultRedisPrefix = "warpkv:"

// sweepScript removes every entry indexed with a score strictly below
// ARGV[1]. It runs atomically inside Redis.
//
// KEYS[1] index sorted set
// ARGV[1] cutoff in unix seconds
// ARGV[2] entry key prefix
var sweepScript = redis.NewScript(`
local expired = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', '(' .. ARGV[1])
for _, k in ipairs(expired) do
	redis.call('DEL', ARGV[2] .. k)
	redis.call('ZREM', KEYS[1], k)
end
return #expired
`)

// RedisStore implements Store using a Redis backend.
//
// Each entry is a hash holding value and created_at; a sorted set scored by
// created_at indexes entries for the sweeper.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	now     Clock
}

// RedisOption configures a RedisStore.
type RedisOption func(*redisStoreOptions)

type redisStoreOptions struct {
	prefix  string
	timeout time.Duration
	now     Clock
}

// WithTimeout sets the operation timeout for Redis calls.
func WithTimeout(d time.Duration) RedisOption {
	return func(o *redisStoreOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithPrefix sets the namespace prepended to every Redis key.
func WithPrefix(p string) RedisOption {
	return func(o *redisStoreOptions) {
		o.prefix = p
	}
}

// WithRedisClock overrides the clock used to stamp writes.
func WithRedisClock(now Clock) RedisOption {
	return func(o *redisStoreOptions) {
		o.now = now
	}
}

// NewRedisStore returns a new RedisStore using the provided Redis client.
// The store takes ownership of client and closes it on Close.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	o := redisStoreOptions{
		prefix:  defaultRedisPrefix,
		timeout: defaultOpTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisStore{client: client, prefix: o.prefix, timeout: o.timeout, now: o.now}
}

func (s *RedisStore) entryPrefix() string { return s.prefix + "entry:" }
func (s *RedisStore) entryKey(k string) string { return s.entryPrefix() + k }
func (s *RedisStore) indexKey() string { return s.prefix + "created" }

// Get implements Store.Get.
func (s *RedisStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return cache.Entry{}, false, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fields, err := s.client.HGetAll(cctx, s.entryKey(key)).Result()
	if err != nil {
		return cache.Entry{}, false, s.wrap("get", err)
	}
	if len(fields) == 0 {
		return cache.Entry{}, false, nil
	}
	secs, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return cache.Entry{}, false, s.wrap("get", err)
	}
	return cache.Entry{
		Key:       key,
		Value:     fields["value"],
		CreatedAt: cache.NewTimestamp(time.Unix(secs, 0)),
	}, true, nil
}

// Set implements Store.Set. The hash write and the index update are sent in
// one MULTI/EXEC block.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := ctxErr(ctx, "set"); err != nil {
		return err
	}
	ts := cache.NewTimestamp(s.now()).Unix()

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(cctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(cctx, s.entryKey(key), "value", value, "created_at", ts)
		pipe.ZAdd(cctx, s.indexKey(), redis.Z{Score: float64(ts), Member: key})
		return nil
	})
	if err != nil {
		return s.wrap("set", err)
	}
	return nil
}

// DeleteOlderThan implements Store.DeleteOlderThan with a Lua script.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctxErr(ctx, "delete_older_than"); err != nil {
		return 0, err
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := sweepScript.Run(cctx, s.client,
		[]string{s.indexKey()},
		cache.NewTimestamp(cutoff).Unix(), s.entryPrefix(),
	).Int64()
	if err != nil {
		return 0, s.wrap("delete_older_than", err)
	}
	return n, nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) wrap(op string, err error) error {
	if stdErrors.Is(err, redis.ErrClosed) {
		err = warperrors.ErrConnectionClosed
	}
	return wrapErr(op, err)
}
