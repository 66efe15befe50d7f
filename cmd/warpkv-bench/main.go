package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	"github.com/mirkobrombin/warp-kv/v1/config"
	"github.com/mirkobrombin/warp-kv/v1/core"
	"github.com/mirkobrombin/warp-kv/v1/presets"
)

var (
	concurrency = flag.Int("c", 50, "Number of concurrent clients")
	requests    = flag.Int("n", 100000, "Total number of requests")
	dataSize    = flag.Int("d", 256, "Data size in bytes")
	keys        = flag.Int("k", 1000, "Number of distinct keys")
	writeRatio  = flag.Float64("w", 0.2, "Fraction of requests that are upserts")
	target      = flag.String("target", "sqlite,bolt", "Backends: sqlite, bolt, redis")
	redisAddr   = flag.String("redis-addr", "localhost:6379", "Redis address")
)

func main() {
	flag.Parse()
	if err := checkFlags(*concurrency, *requests, *dataSize, *keys, *writeRatio); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("| %-8s | %-12s | %-12s | %-12s | %-6s |\n", "Backend", "Ops/sec", "Avg Latency", "P99 Latency", "Errors")
	fmt.Println("|:---|:---|:---|:---|:---|")
	for _, t := range strings.Split(*target, ",") {
		if err := runBenchmark(config.Backend(strings.TrimSpace(t))); err != nil {
			log.Printf("%s: %v", t, err)
		}
	}
}

func runBenchmark(backend config.Backend) error {
	dir, err := os.MkdirTemp("", "warpkv-bench")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := presets.Open(config.StoreConfig{
		Backend:     backend,
		SQLiteDSN:   "file:" + filepath.Join(dir, "bench.db"),
		RedisAddr:   *redisAddr,
		RedisPrefix: "warpkv-bench:",
		BoltPath:    filepath.Join(dir, "bench.bbolt"),
		Timeout:     5 * time.Second,
	}, quiet)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := core.New(store, core.WithLogger(quiet))
	ctx := context.Background()
	payload := strings.Repeat("x", *dataSize)
	if err := seed(ctx, store, payload); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	var (
		wg          sync.WaitGroup
		errorsCount int64
		mu          sync.Mutex
		latencies   = make([]time.Duration, 0, *requests)
	)
	perWorker := *requests / *concurrency
	writeEvery := 0
	if *writeRatio > 0 {
		writeEvery = int(1 / *writeRatio)
	}

	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			local := make([]time.Duration, 0, perWorker)
			for j := 0; j < perWorker; j++ {
				key := fmt.Sprintf("bench:%d", (worker*perWorker+j)%*keys)
				t0 := time.Now()
				var err error
				if writeEvery > 0 && j%writeEvery == 0 {
					err = svc.Upsert(ctx, key, payload)
				} else {
					_, err = svc.Fetch(ctx, key)
				}
				local = append(local, time.Since(t0))
				if err != nil {
					atomic.AddInt64(&errorsCount, 1)
				}
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	if len(latencies) == 0 {
		return fmt.Errorf("no requests executed")
	}
	ops := float64(len(latencies))
	avg, p99 := summarize(latencies)
	fmt.Printf("| %-8s | %-12.0f | %-12s | %-12s | %-6d |\n", backend, ops/elapsed.Seconds(), avg, p99, errorsCount)
	return nil
}

func checkFlags(concurrency, requests, dataSize, keys int, writeRatio float64) error {
	switch {
	case concurrency <= 0:
		return fmt.Errorf("-c must be positive, got %d", concurrency)
	case requests < concurrency:
		return fmt.Errorf("-n must be at least -c (%d), got %d", concurrency, requests)
	case dataSize < 0:
		return fmt.Errorf("-d must not be negative, got %d", dataSize)
	case keys <= 0:
		return fmt.Errorf("-k must be positive, got %d", keys)
	case writeRatio < 0 || writeRatio > 1:
		return fmt.Errorf("-w must be within [0, 1], got %v", writeRatio)
	}
	return nil
}

// summarize returns the mean and 99th percentile of latencies, sorting it in
// place. latencies must not be empty.
func summarize(latencies []time.Duration) (avg, p99 time.Duration) {
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	avg = total / time.Duration(len(latencies))
	p99 = latencies[int(float64(len(latencies)-1)*0.99)]
	return avg, p99
}

func seed(ctx context.Context, s adapter.Store, payload string) error {
	for i := 0; i < *keys; i++ {
		if err := s.Set(ctx, fmt.Sprintf("bench:%d", i), payload); err != nil {
			return err
		}
	}
	return nil
}
