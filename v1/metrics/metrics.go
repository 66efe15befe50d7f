package metrics

import "github.com/prometheus/client_golang/prometheus"

// Result label values.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the Prometheus collectors exported by warp-kv.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Fetch          *prometheus.CounterVec
	Upsert         *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	SweepDeleted   prometheus.Counter
	SweepErrors    prometheus.Counter
	SweepLastRunTS prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Fetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warpkv_fetch_total",
			Help: "Total number of Fetch operations by result",
		}, []string{"result"}),
		Upsert: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "warpkv_upsert_total",
			Help: "Total number of Upsert operations by result",
		}, []string{"result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "warpkv_operation_duration_seconds",
			Help:    "Latency of cache operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		SweepDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warpkv_sweep_deleted_total",
			Help: "Total number of entries removed by the expiry sweeper",
		}),
		SweepErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "warpkv_sweep_errors_total",
			Help: "Total number of failed sweep ticks",
		}),
		SweepLastRunTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "warpkv_sweep_last_run_timestamp_seconds",
			Help: "Unix time of the last completed sweep tick",
		}),
	}
	reg.MustRegister(m.Fetch, m.Upsert, m.Duration, m.SweepDeleted, m.SweepErrors, m.SweepLastRunTS)
	return m
}

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ObserveFetch records one Fetch outcome and its latency.
func (m *Metrics) ObserveFetch(result string, seconds float64) {
	if m == nil {
		return
	}
	m.Fetch.WithLabelValues(result).Inc()
	m.Duration.WithLabelValues("fetch").Observe(seconds)
}

// ObserveUpsert records one Upsert outcome and its latency.
func (m *Metrics) ObserveUpsert(result string, seconds float64) {
	if m == nil {
		return
	}
	m.Upsert.WithLabelValues(result).Inc()
	m.Duration.WithLabelValues("upsert").Observe(seconds)
}

// ObserveSweep records one sweep tick.
func (m *Metrics) ObserveSweep(deleted int64, err error, unix float64) {
	if m == nil {
		return
	}
	if err != nil {
		m.SweepErrors.Inc()
		return
	}
	m.SweepDeleted.Add(float64(deleted))
	m.SweepLastRunTS.Set(unix)
}
