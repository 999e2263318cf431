package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"govee-decoder/pkg/govee"
)

// Decode results.
const (
	ResultOK          = "ok"
	ResultUnsupported = "unsupported"
	ResultMalformed   = "malformed"
	ResultUnknown     = "unknown_model"
	ResultDuplicate   = "duplicate"
	ResultDropped     = "dropped"
)

// Metrics owns a private registry so tests can build as many as they need.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	decodes           *prometheus.CounterVec
	published         *prometheus.CounterVec
	publishErrors     *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govee_decodes_total",
			Help: "Advertisement payloads decoded, by model and result.",
		}, []string{"model", "result"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govee_readings_published_total",
			Help: "Decoded readings handed to a sink.",
		}, []string{"sink"}),
		publishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "govee_publish_errors_total",
			Help: "Readings a sink failed to accept.",
		}, []string{"sink"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.decodes,
		m.published,
		m.publishErrors,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	return m
}

// Decode counts one decode attempt. Names outside the model registry are
// recorded as "none" so callers cannot grow the label set.
func (m *Metrics) Decode(model, result string) {
	if m == nil {
		return
	}
	if _, ok := govee.Lookup(model); !ok {
		model = "none"
	}
	m.decodes.WithLabelValues(model, result).Inc()
}

func (m *Metrics) Published(sink string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishErrors.WithLabelValues(sink).Inc()
		return
	}
	m.published.WithLabelValues(sink).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests and their latency under route.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		m.httpRequestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
