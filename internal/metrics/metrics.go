package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tempodel/internal/reconcile"
)

const namespace = "tempodel"

// Metrics owns a private registry so several daemons in one test binary do
// not collide on the default registerer.
type Metrics struct {
	registry *prometheus.Registry

	outcomesTotal       *prometheus.CounterVec
	passesTotal         *prometheus.CounterVec
	passDuration        *prometheus.HistogramVec
	childFailuresTotal  prometheus.Counter
	tickErrorsTotal     prometheus.Counter
	scheduleEntries     prometheus.Gauge
	lastPassTimestamp   prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New registers the tempodel collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}
	m.outcomesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outcomes_total",
			Help:      "Reconciliation outcomes by action",
		},
		[]string{"action"},
	)
	m.passesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Completed reconciliation passes by trigger",
		},
		[]string{"trigger"},
	)
	m.passDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)
	m.childFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wipe_child_failures_total",
		Help:      "Directory children that survived a periodic wipe",
	})
	m.tickErrorsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_errors_total",
		Help:      "Checker ticks that crashed and entered backoff",
	})
	m.scheduleEntries = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "schedule_entries",
		Help:      "Entries left in the schedule after the last pass",
	})
	m.lastPassTimestamp = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time of the last completed pass",
	})
	m.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)
	m.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	for _, action := range reconcile.Actions {
		m.outcomesTotal.WithLabelValues(string(action))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Report implements reconcile.Reporter.
func (m *Metrics) Report(_ context.Context, pass reconcile.Pass) {
	if m == nil {
		return
	}
	trigger := pass.Trigger
	if trigger == "" {
		trigger = "unknown"
	}
	m.passesTotal.WithLabelValues(trigger).Inc()
	m.passDuration.WithLabelValues(trigger).Observe(pass.Duration.Seconds())
	for _, o := range pass.Result.Outcomes {
		m.outcomesTotal.WithLabelValues(string(o.Action)).Inc()
		if n := len(o.ChildFailures); n > 0 {
			m.childFailuresTotal.Add(float64(n))
		}
	}
	m.scheduleEntries.Set(float64(len(pass.Result.Kept)))
	at := pass.Now
	if at.IsZero() {
		at = time.Now()
	}
	m.lastPassTimestamp.Set(float64(at.UnixNano()) / 1e9)
}

// SetScheduleEntries records the schedule size outside of a pass, e.g. after
// an API mutation.
func (m *Metrics) SetScheduleEntries(n int) {
	if m == nil {
		return
	}
	m.scheduleEntries.Set(float64(n))
}

// RecordTickError counts a crashed checker tick.
func (m *Metrics) RecordTickError() {
	if m == nil {
		return
	}
	m.tickErrorsTotal.Inc()
}

// RecordHTTPRequest counts one API request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Middleware records every request passing through next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
