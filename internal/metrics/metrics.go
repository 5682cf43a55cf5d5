package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors the API and services report to. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	checkouts        *prometheus.CounterVec
	stockAdjustments *prometheus.CounterVec
	assistant        *prometheus.CounterVec
}

// New registers the collectors on reg. A nil registerer yields a no-op value.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		}, []string{"result"}),
		stockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_adjustments_total",
			Help: "Stock adjustments by type and result.",
		}, []string{"type", "result"}),
		assistant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assistant_requests_total",
			Help: "Chat model calls by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.checkouts, m.stockAdjustments, m.assistant)
	return m
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalizeLabel(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncStockAdjustment(kind, result string) {
	if m == nil || m.stockAdjustments == nil {
		return
	}
	m.stockAdjustments.WithLabelValues(normalizeLabel(kind), normalizeLabel(result)).Inc()
}

func (m *Metrics) IncAssistant(result string) {
	if m == nil || m.assistant == nil {
		return
	}
	m.assistant.WithLabelValues(normalizeLabel(result)).Inc()
}

// Result maps an operation error to the result label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
