package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExportCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHTTP("GET", "/api/v1/products", 200, 15*time.Millisecond)
	m.ObserveHTTP("GET", "/api/v1/products", 200, 5*time.Millisecond)
	m.IncCheckout("ok")
	m.IncCheckout("insufficient_stock")
	m.IncStockAdjustment("ADDITION", Result(nil))
	m.IncAssistant(Result(errors.New("boom")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/products", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stockAdjustments.WithLabelValues("ADDITION", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assistant.WithLabelValues("error")))

	count, err := testutil.GatherAndCount(reg, "http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "", 500, time.Second)
		m.IncCheckout("ok")
		m.IncStockAdjustment("", "")
		m.IncAssistant("ok")
	})

	empty := New(nil)
	assert.NotPanics(t, func() { empty.IncCheckout("ok") })
}
