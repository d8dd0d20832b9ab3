package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Recorded("visit", "recorded")
	m.Recorded("visit", "recorded")
	m.Recorded("visit", "fallback")
	m.Read("groups", "missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.recorderOutcomes.WithLabelValues("visit", "recorded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.recorderOutcomes.WithLabelValues("visit", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readerResults.WithLabelValues("groups", "missing")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Recorded("visit", "recorded")
		m.Read("groups", "ok")
		m.ObserveRequest("/x", "GET", 200, time.Millisecond)
	})
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.Recorded("edges", "dropped")
	m.ObserveRequest("/api/health", http.MethodGet, 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `crossed_paths_recorder_outcomes_total{op="edges",outcome="dropped"} 1`)
	assert.Contains(t, body, "crossed_paths_http_request_duration_seconds_count")
	assert.Contains(t, body, "go_goroutines")
}
