package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopdesk/backend/internal/store"
)

var _ store.Observer = (*Metrics)(nil)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/products", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/api/products", http.StatusOK, 10*time.Millisecond)
	m.SheetWritten("Products", nil)
	m.SheetWritten("Products", errors.New("boom"))
	m.LockRetried("Products")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "/api/products", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sheetWrites.WithLabelValues("Products", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sheetWrites.WithLabelValues("Products", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockRetries.WithLabelValues("Products")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.SheetWritten("Bills", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `shopdesk_sheet_writes_total{result="ok",sheet="Bills"} 1`), body)
	assert.Contains(t, body, "go_goroutines")
}
