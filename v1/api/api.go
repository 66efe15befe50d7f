// Package api exposes the cache service over HTTP.
//
//	GET  /cache/{key}            fetch an entry
//	POST /cache                  upsert {"key": ..., "value": ...}
//	GET  /api-docs/openapi.json  OpenAPI document (optional)
//	GET  /swagger                Swagger UI for the document (optional)
//	GET  /metrics                Prometheus metrics (optional)
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mirkobrombin/warp-kv/v1/cache"
)

// maxBodyBytes caps the size of a write request body.
const maxBodyBytes = 1 << 20

//go:embed openapi.json
var openAPIDoc []byte

//go:embed swagger.html
var swaggerPage []byte

// CacheService is the subset of core.Service used by the HTTP layer.
type CacheService interface {
	Fetch(ctx context.Context, key string) (cache.Entry, error)
	Upsert(ctx context.Context, key, value string) error
}

// Option configures the HTTP handler.
type Option func(*options)

type options struct {
	log      *slog.Logger
	docs     bool
	gatherer prometheus.Gatherer
}

// WithLogger sets the logger used for access logs.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithDocs toggles the OpenAPI document and Swagger UI routes.
func WithDocs(enabled bool) Option {
	return func(o *options) { o.docs = enabled }
}

// WithMetrics mounts /metrics serving g.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(o *options) { o.gatherer = g }
}

// NewHandler returns the HTTP handler for svc with CORS, request IDs and
// access logging applied to every route.
func NewHandler(svc CacheService, opts ...Option) http.Handler {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	h := &handler{svc: svc, log: o.log}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cache/{key}", h.getEntry)
	mux.HandleFunc("POST /cache", h.setEntry)
	if o.docs {
		mux.HandleFunc("GET /api-docs/openapi.json", serveOpenAPI)
		mux.HandleFunc("GET /swagger", serveSwaggerUI)
	}
	if o.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(o.gatherer, promhttp.HandlerOpts{}))
	}

	return requestID(accessLog(o.log, cors(mux)))
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(openAPIDoc)
}

func serveSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(swaggerPage)
}
