package core

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mirkobrombin/warp-kv/v1/adapter"
	"github.com/mirkobrombin/warp-kv/v1/cache"
	warperrors "github.com/mirkobrombin/warp-kv/v1/errors"
	"github.com/mirkobrombin/warp-kv/v1/metrics"
)

const instrumentationName = "github.com/mirkobrombin/warp-kv/v1/core"

// Service validates cache requests and maps them onto a Store.
//
// A Service is built once at startup and shared by every request handler;
// it holds no mutable state of its own.
type Service struct {
	store   adapter.Store
	log     *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracing enables OpenTelemetry spans using the global tracer provider.
func WithTracing() Option {
	return func(s *Service) {
		s.tracer = otel.Tracer(instrumentationName)
	}
}

// WithTracerProvider enables OpenTelemetry spans using tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(instrumentationName)
	}
}

// New creates a Service on top of store.
func New(store adapter.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the entry stored under key.
//
// It returns ErrInvalidKey for an empty key, ErrNotFound on a miss and an
// error wrapping ErrStore when the store fails.
func (s *Service) Fetch(ctx context.Context, key string) (cache.Entry, error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Service.Fetch", key)
	defer span.End()

	if key == "" {
		s.finish(span, opFetch, metrics.ResultError, start, warperrors.ErrInvalidKey)
		return cache.Entry{}, warperrors.ErrInvalidKey
	}

	entry, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.ErrorContext(ctx, "warpkv: fetch failed", "op", "get", "key", key, "error", err)
		err = storeErr(err)
		s.finish(span, opFetch, metrics.ResultError, start, err)
		return cache.Entry{}, err
	}
	if !ok {
		s.log.DebugContext(ctx, "warpkv: cache miss", "key", key)
		s.finish(span, opFetch, metrics.ResultMiss, start, nil)
		return cache.Entry{}, warperrors.ErrNotFound
	}
	s.finish(span, opFetch, metrics.ResultHit, start, nil)
	return entry, nil
}

// Upsert stores value under key, replacing any previous entry. The value
// may be empty; the key may not.
func (s *Service) Upsert(ctx context.Context, key, value string) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "Service.Upsert", key)
	defer span.End()

	if key == "" {
		s.finish(span, opUpsert, metrics.ResultError, start, warperrors.ErrInvalidKey)
		return warperrors.ErrInvalidKey
	}

	if err := s.store.Set(ctx, key, value); err != nil {
		s.log.ErrorContext(ctx, "warpkv: upsert failed", "op", "set", "key", key, "error", err)
		err = storeErr(err)
		s.finish(span, opUpsert, metrics.ResultError, start, err)
		return err
	}
	s.finish(span, opUpsert, metrics.ResultOK, start, nil)
	return nil
}

type op int

const (
	opFetch op = iota
	opUpsert
)

func (s *Service) startSpan(ctx context.Context, name, key string) (context.Context, trace.Span) {
	if s.tracer == nil {
		// Ending the span found in ctx would close the caller's span.
		return ctx, noop.Span{}
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("warpkv.key", key)))
}

func (s *Service) finish(span trace.Span, o op, result string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	if o == opFetch {
		s.metrics.ObserveFetch(result, elapsed)
	} else {
		s.metrics.ObserveUpsert(result, elapsed)
	}
	if s.tracer == nil {
		return
	}
	span.SetAttributes(attribute.String("warpkv.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// storeErr makes sure err carries ErrStore even if a Store implementation
// did not tag it.
func storeErr(err error) error {
	if stdErrors.Is(err, warperrors.ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %w", warperrors.ErrStore, err)
}
