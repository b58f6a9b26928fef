package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build independent instances.
type Metrics struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	sheetWrites     *prometheus.CounterVec
	lockRetries     *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopdesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shopdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		sheetWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopdesk_sheet_writes_total",
			Help: "Sheet rewrites by outcome.",
		}, []string{"sheet", "result"}),
		lockRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "shopdesk_sheet_lock_retries_total",
			Help: "Write attempts retried because the data file was locked.",
		}, []string{"sheet"}),
	}
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SheetWritten and LockRetried make Metrics a store.Observer.
func (m *Metrics) SheetWritten(sheet string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sheetWrites.WithLabelValues(sheet, result).Inc()
}

func (m *Metrics) LockRetried(sheet string) {
	m.lockRetries.WithLabelValues(sheet).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
