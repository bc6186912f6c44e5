package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest("GET", "/api/v1/students", 200, 20*time.Millisecond)
	metrics.ObserveHTTPRequest("GET", "/api/v1/students", 200, 40*time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.ObserveDBQuery("execute", 10*time.Millisecond)
	metrics.RecordDecision("student", "REJECTED", "DUPLICATE_EMAIL")
	metrics.RecordDecision("student", "ALLOWED", "")
	metrics.RecordDecision("course", "ALLOWED", "")

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.01)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.Equal(t, map[string]uint64{"REJECTED": 1, "ALLOWED": 2}, snap.Decisions)
}

func TestMetricsServiceHandlerExposesDecisions(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordDecision("enrollment", "REJECTED", "COURSE_INACTIVE")
	metrics.RecordImportRows("student", 3, 1)
	metrics.RecordEvent()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `integrity_decisions_total{decision="REJECTED",entity="enrollment",reason="COURSE_INACTIVE"} 1`)
	assert.Contains(t, body, `import_rows_total{entity="student",result="skipped"} 1`)
	assert.Contains(t, body, "change_events_published_total 1")
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.RecordDecision("student", "ALLOWED", "")
	metrics.ObserveDBQuery("x", time.Millisecond)
	assert.Equal(t, uint64(0), metrics.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsServiceWatchSubscribers(t *testing.T) {
	metrics := NewMetricsService()
	assert.Zero(t, metrics.Snapshot().EventSubscribers)

	metrics.WatchSubscribers(func() int { return 1 })
	metrics.WatchSubscribers(func() int { return 3 })
	assert.Equal(t, 3, metrics.Snapshot().EventSubscribers)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "registry_event_subscribers 3")
}
