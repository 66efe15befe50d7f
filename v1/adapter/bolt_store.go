package adapter

import (
	"bytes"
	"context"
	"encoding/binary"
	stdErrors "errors"
	"time"

	bolt "go.etcd.io/bbolt"
	boltErrors "go.etcd.io/bbolt/errors"

	"github.com/mirkobrombin/warp-kv/v1/cache"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

const defaultBoltBucket = "cache"

// BoltStore implements Store on a bbolt file.
//
// Values are laid out as 8 bytes of big endian created_at unix seconds
// followed by the raw value. bbolt runs one write transaction at a time, so
// every write is atomic without extra locking.
type BoltStore struct {
	db     *bolt.DB
	bucket []byte
	now    Clock
}

// BoltOption configures a BoltStore.
type BoltOption func(*boltStoreOptions)

type boltStoreOptions struct {
	bucket      string
	openTimeout time.Duration
	now         Clock
}

// WithBucket sets the bbolt bucket name.
func WithBucket(name string) BoltOption {
	return func(o *boltStoreOptions) {
		if name != "" {
			o.bucket = name
		}
	}
}

// WithOpenTimeout bounds how long Open waits for the file lock.
func WithOpenTimeout(d time.Duration) BoltOption {
	return func(o *boltStoreOptions) {
		o.openTimeout = d
	}
}

// WithBoltClock overrides the clock used to stamp writes.
func WithBoltClock(now Clock) BoltOption {
	return func(o *boltStoreOptions) {
		o.now = now
	}
}

// OpenBolt opens or creates a bbolt database at path.
func OpenBolt(path string, opts ...BoltOption) (*BoltStore, error) {
	o := boltStoreOptions{
		bucket:      defaultBoltBucket,
		openTimeout: time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: o.openTimeout})
	if err != nil {
		return nil, wrapErr("open", err)
	}
	bucket := []byte(o.bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, wrapErr("open", err)
	}
	return &BoltStore{db: db, bucket: bucket, now: o.now}, nil
}

// Get implements Store.Get.
func (s *BoltStore) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if err := ctxErr(ctx, "get"); err != nil {
		return cache.Entry{}, false, err
	}
	var (
		entry cache.Entry
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(s.bucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		ts, value, err := decodeBolt(raw)
		if err != nil {
			return err
		}
		found = true
		entry = cache.Entry{Key: key, Value: value, CreatedAt: ts}
		return nil
	})
	if err != nil {
		return cache.Entry{}, false, s.wrap("get", err)
	}
	return entry, found, nil
}

// Set implements Store.Set.
func (s *BoltStore) Set(ctx context.Context, key, value string) error {
	if err := ctxErr(ctx, "set"); err != nil {
		return err
	}
	buf := encodeBolt(cache.NewTimestamp(s.now()), value)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	})
	if err != nil {
		return s.wrap("set", err)
	}
	return nil
}

// DeleteOlderThan implements Store.DeleteOlderThan inside one write
// transaction; either every expired key goes or none does.
func (s *BoltStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctxErr(ctx, "delete_older_than"); err != nil {
		return 0, err
	}
	limit := cache.NewTimestamp(cutoff).Unix()
	var n int64
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var expired [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) < 8 {
				continue
			}
			if int64(binary.BigEndian.Uint64(v[:8])) < limit {
				expired = append(expired, bytes.Clone(k))
			}
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(expired))
		return nil
	})
	if err != nil {
		return 0, s.wrap("delete_older_than", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) wrap(op string, err error) error {
	if stdErrors.Is(err, boltErrors.ErrDatabaseNotOpen) {
		err = warperrors.ErrConnectionClosed
	}
	return wrapErr(op, err)
}

func encodeBolt(ts cache.Timestamp, value string) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(ts.Unix()))
	copy(buf[8:], value)
	return buf
}

func decodeBolt(raw []byte) (cache.Timestamp, string, error) {
	if len(raw) < 8 {
		return cache.Timestamp{}, "", stdErrors.New("bolt: corrupt entry")
	}
	secs := int64(binary.BigEndian.Uint64(raw[:8]))
	return cache.NewTimestamp(time.Unix(secs, 0)), string(raw[8:]), nil
}
