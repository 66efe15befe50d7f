package adapter_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

// fakeClock is a manually advanced clock shared by a store under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type storeFactory func(t *testing.T, clock adapter.Clock) adapter.Store

// runStoreSuite checks the behaviour every Store backend must share.
func runStoreSuite(t *testing.T, newStore storeFactory) {
	t.Run("Miss", func(t *testing.T) {
		s := newStore(t, time.Now)
		_, ok, err := s.Get(context.Background(), "never-written")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if ok {
			t.Fatal("expected miss for unknown key")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		clk := newFakeClock()
		s := newStore(t, clk.Now)
		ctx := context.Background()
		values := map[string]string{
			"plain":   "v1",
			"empty":   "",
			"unicode": "héllo, 世界 ✓",
			"long":    strings.Repeat("x", 4096),
			"json":    `{"nested":"value"}`,
		}
		for k, v := range values {
			if err := s.Set(ctx, k, v); err != nil {
				t.Fatalf("Set %s: %v", k, err)
			}
		}
		for k, want := range values {
			e, ok, err := s.Get(ctx, k)
			if err != nil || !ok {
				t.Fatalf("Get %s: ok=%v err=%v", k, ok, err)
			}
			if e.Key != k || e.Value != want {
				t.Fatalf("Get %s: got %q, want %q", k, e.Value, want)
			}
			if !e.CreatedAt.Equal(clk.Now()) {
				t.Fatalf("Get %s: created_at %s, want %s", k, e.CreatedAt, clk.Now())
			}
		}
	})

	t.Run("UpsertRefreshesValueAndTimestamp", func(t *testing.T) {
		clk := newFakeClock()
		s := newStore(t, clk.Now)
		ctx := context.Background()
		if err := s.Set(ctx, "a", "v1"); err != nil {
			t.Fatalf("Set v1: %v", err)
		}
		first, _, _ := s.Get(ctx, "a")
		clk.Advance(90 * time.Second)
		if err := s.Set(ctx, "a", "v2"); err != nil {
			t.Fatalf("Set v2: %v", err)
		}
		e, ok, err := s.Get(ctx, "a")
		if err != nil || !ok {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
		if e.Value != "v2" {
			t.Fatalf("expected v2, got %q", e.Value)
		}
		if got := e.CreatedAt.Sub(first.CreatedAt.Time); got != 90*time.Second {
			t.Fatalf("expected created_at refreshed by 90s, got %v", got)
		}
	})

	t.Run("DeleteOlderThanIsStrict", func(t *testing.T) {
		clk := newFakeClock()
		s := newStore(t, clk.Now)
		ctx := context.Background()
		_ = s.Set(ctx, "old", "1")
		clk.Advance(10 * time.Second)
		_ = s.Set(ctx, "edge", "2")
		clk.Advance(10 * time.Second)
		_ = s.Set(ctx, "fresh", "3")

		// cutoff equals edge's created_at; sub-second part is truncated.
		cutoff := clk.Now().Add(-10 * time.Second).Add(700 * time.Millisecond)
		n, err := s.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			t.Fatalf("DeleteOlderThan: %v", err)
		}
		if n != 1 {
			t.Fatalf("expected 1 deleted, got %d", n)
		}
		if _, ok, _ := s.Get(ctx, "old"); ok {
			t.Fatal("old should be deleted")
		}
		for _, k := range []string{"edge", "fresh"} {
			if _, ok, _ := s.Get(ctx, k); !ok {
				t.Fatalf("%s should be retained", k)
			}
		}

		n, err = s.DeleteOlderThan(ctx, cutoff)
		if err != nil || n != 0 {
			t.Fatalf("second sweep: n=%d err=%v", n, err)
		}
	})

	t.Run("ConcurrentUpsertSameKey", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx := context.Background()
		const writers = 32
		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := s.Set(ctx, "hot", fmt.Sprintf("v-%d", i)); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Set: %v", err)
		}
		e, ok, err := s.Get(ctx, "hot")
		if err != nil || !ok {
			t.Fatalf("Get: ok=%v err=%v", ok, err)
		}
		if !strings.HasPrefix(e.Value, "v-") {
			t.Fatalf("unexpected value %q", e.Value)
		}
		n, err := s.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
		if err != nil || n != 1 {
			t.Fatalf("expected exactly one row for hot, deleted %d err %v", n, err)
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := s.Set(ctx, "k", "v"); !errors.Is(err, warperrors.ErrStore) {
			t.Fatalf("Set: expected ErrStore, got %v", err)
		}
		if _, _, err := s.Get(ctx, "k"); !errors.Is(err, warperrors.ErrStore) {
			t.Fatalf("Get: expected ErrStore, got %v", err)
		}
		if _, err := s.DeleteOlderThan(ctx, time.Now()); !errors.Is(err, warperrors.ErrStore) {
			t.Fatalf("DeleteOlderThan: expected ErrStore, got %v", err)
		}
	})

	t.Run("ExpiredDeadlineIsTimeout", func(t *testing.T) {
		s := newStore(t, time.Now)
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		check := func(op string, err error) {
			t.Helper()
			if !errors.Is(err, warperrors.ErrTimeout) || !errors.Is(err, warperrors.ErrStore) {
				t.Fatalf("%s: expected ErrTimeout wrapped in ErrStore, got %v", op, err)
			}
		}
		_, _, err := s.Get(ctx, "k")
		check("Get", err)
		check("Set", s.Set(ctx, "k", "v"))
		_, err = s.DeleteOlderThan(ctx, time.Now())
		check("DeleteOlderThan", err)
	})
}
