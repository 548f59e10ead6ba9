package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCategoryOperation(t *testing.T) {
	m := New("test")

	m.RecordCategoryOperation(context.Background(), "create")
	m.RecordCategoryOperation(context.Background(), "create")
	m.RecordCategoryOperation(context.Background(), "delete")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CategoryOperations.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CategoryOperations.WithLabelValues("delete")))
}

func TestRecordLoginAndCache(t *testing.T) {
	m := New("test")

	m.RecordLogin("failure")
	m.RecordCacheLookup(true)
	m.RecordCacheLookup(false)
	m.RecordCacheLookup(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TreeCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TreeCacheLookups.WithLabelValues("miss")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New("test")
	m.ObserveRequest("GET", "/api/v1/categories", "200", 15*time.Millisecond)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_http_requests_total{method="GET",path="/api/v1/categories",status="200"} 1`)
	assert.Contains(t, string(body), "test_http_request_duration_seconds_bucket")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	// Two instances with the same prefix must not collide.
	assert.NotPanics(t, func() {
		New("dup")
		New("dup")
	})
}
