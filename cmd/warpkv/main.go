package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mirkobrombin/warp-kv/v1/api"
	"github.com/mirkobrombin/warp-kv/v1/config"
	"github.com/mirkobrombin/warp-kv/v1/core"
	"github.com/mirkobrombin/warp-kv/v1/logging"
	"github.com/mirkobrombin/warp-kv/v1/metrics"
	"github.com/mirkobrombin/warp-kv/v1/presets"
	"github.com/mirkobrombin/warp-kv/v1/sweeper"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "warpkv: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.LookupEnv)
	if err != nil {
		return err
	}

	log, logCloser, err := logging.New(cfg.Log, os.Stdout)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcOpts := []core.Option{core.WithLogger(log)}
	apiOpts := []api.Option{api.WithLogger(log), api.WithDocs(cfg.EnableDocs)}
	sweepOpts := []sweeper.Option{sweeper.WithLogger(log)}

	if cfg.Tracing {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		defer func() { _ = tp.Shutdown(context.Background()) }()
		otel.SetTracerProvider(tp)
		svcOpts = append(svcOpts, core.WithTracing())
	}

	if cfg.Metrics {
		reg := metrics.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m := metrics.New(reg)
		svcOpts = append(svcOpts, core.WithMetrics(m))
		sweepOpts = append(sweepOpts, sweeper.WithMetrics(m))
		apiOpts = append(apiOpts, api.WithMetrics(prometheus.Gatherer(reg)))
	}

	store, err := presets.Open(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("warpkv: closing store", "error", err)
		}
	}()

	sw, err := sweeper.New(store, cfg.Interval, cfg.TTL, sweepOpts...)
	if err != nil {
		return err
	}
	svc := core.New(store, svcOpts...)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewHandler(svc, apiOpts...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sw.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("warpkv: listening",
			"addr", cfg.Addr(),
			"store", cfg.Store.Backend,
			"interval", cfg.Interval,
			"ttl", cfg.TTL,
		)
		if cfg.EnableDocs {
			log.Info("warpkv: Swagger UI enabled", "url", "http://"+cfg.Addr()+"/swagger")
		}
		if err := srv.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("warpkv: shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
