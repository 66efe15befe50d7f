package adapter

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/mirkobrombin/warp-kv/v1/cache"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

const defaultOpTimeout = 5 * time.Second

// Store is the persistence layer behind the cache service.
//
// Implementations must be safe for concurrent use. Atomicity of each
// operation is provided by the underlying engine, not by callers.
type Store interface {
	// Get returns the entry for key. The boolean reports whether it exists;
	// a miss is not an error.
	Get(ctx context.Context, key string) (cache.Entry, bool, error)
	// Set inserts or replaces the entry for key in a single atomic step,
	// refreshing its creation time to now.
	Set(ctx context.Context, key, value string) error
	// DeleteOlderThan removes every entry created strictly before cutoff
	// and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// Close releases the resources held by the store.
	Close() error
}

// Clock returns the current time. Stores stamp writes with it.
type Clock func() time.Time

// wrapErr maps engine errors onto the warp-kv taxonomy and tags them with
// ErrStore so the service can tell persistence failures apart.
func wrapErr(op string, err error) error {
	if stdErrors.Is(err, context.DeadlineExceeded) {
		err = warperrors.ErrTimeout
	}
	return fmt.Errorf("%w: %s: %w", warperrors.ErrStore, op, err)
}

// ctxErr reports whether ctx is already done before any I/O is attempted.
func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return wrapErr(op, err)
	}
	return nil
}
