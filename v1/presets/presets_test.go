package presets

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	"github.com/mirkobrombin/warp-kv/v1/config"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
)

func roundTrip(t *testing.T, s adapter.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, "foo", "bar"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	e, ok, err := s.Get(ctx, "foo")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if e.Value != "bar" {
		t.Fatalf("expected bar, got %s", e.Value)
	}
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open(config.StoreConfig{
		Backend:   config.BackendSQLite,
		SQLiteDSN: "file:presets_sqlite?mode=memory&cache=shared",
		Timeout:   time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestOpenRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	defer mr.Close()

	s, err := Open(config.StoreConfig{
		Backend:     config.BackendRedis,
		RedisAddr:   mr.Addr(),
		RedisPrefix: "presets:",
		Timeout:     time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
	if !mr.Exists("presets:entry:foo") {
		t.Fatal("expected prefixed key in redis")
	}
}

func TestOpenBolt(t *testing.T) {
	s, err := Open(config.StoreConfig{
		Backend:  config.BackendBolt,
		BoltPath: filepath.Join(t.TempDir(), "warpkv.bbolt"),
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open(config.StoreConfig{Backend: "etcd"}, nil); !errors.Is(err, warperrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
