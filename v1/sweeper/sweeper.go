package sweeper

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	"github.com/mirkobrombin/warp-kv/v1/cache"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
	"github.com/mirkobrombin/warp-kv/v1/metrics"
)

// Sweeper periodically deletes expired entries from a Store.
type Sweeper struct {
	store    adapter.Store
	interval time.Duration
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
	metrics  *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithLogger sets the logger used to report sweep ticks.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the clock used to compute the cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records sweep outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// New creates a Sweeper that ticks every interval and removes entries older
// than ttl.
func New(store adapter.Store, interval, ttl time.Duration, opts ...Option) (*Sweeper, error) {
	switch {
	case store == nil:
		return nil, fmt.Errorf("%w: sweeper needs a store", warperrors.ErrConfig)
	case interval <= 0:
		return nil, fmt.Errorf("%w: sweep interval must be positive, got %s", warperrors.ErrConfig, interval)
	case ttl <= 0:
		return nil, fmt.Errorf("%w: ttl must be positive, got %s", warperrors.ErrConfig, ttl)
	}
	s := &Sweeper{
		store:    store,
		interval: interval,
		ttl:      ttl,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run starts the sweep loop and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info("warpkv: expiry sweeper started", "interval", s.interval, "ttl", s.ttl)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("warpkv: expiry sweeper stopped")
			return
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		}
	}
}

// Sweep performs a single tick: it deletes every entry created strictly
// before now minus the TTL and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.ttl)
	n, err := s.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		if stdErrors.Is(ctx.Err(), context.Canceled) {
			s.log.Debug("warpkv: sweep interrupted by shutdown", "error", err)
			return 0, err
		}
		s.log.Error("warpkv: sweep failed", "cutoff", cache.NewTimestamp(cutoff).String(), "error", err)
		s.metrics.ObserveSweep(0, err, 0)
		return 0, err
	}
	if n > 0 {
		s.log.Info("warpkv: deleted expired entries", "count", n, "cutoff", cache.NewTimestamp(cutoff).String())
	} else {
		s.log.Debug("warpkv: no expired entries", "cutoff", cache.NewTimestamp(cutoff).String())
	}
	s.metrics.ObserveSweep(n, nil, float64(s.now().Unix()))
	return n, nil
}

// Start runs the loop on a goroutine owned by the Sweeper. Call Close to
// stop it. Start must not be called more than once.
func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Close stops a loop started with Start and waits for it to return.
func (s *Sweeper) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
