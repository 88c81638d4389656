package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AttemptStart()
		m.AttemptDone("completed", time.Now())
		m.RowsProcessed(1, 2)
		m.StageDone("write", time.Now(), nil)
		m.FallbackUsed()
		m.WatchdogFailed(3)
	})
}

func TestPipelineMetrics(t *testing.T) {
	m := New(config.MetricsConfig{Namespace: "test"})

	m.AttemptStart()
	m.AttemptDone("completed", time.Now())
	m.RowsProcessed(5, 2)
	m.StageDone("write", time.Now(), errors.New("boom"))
	m.FallbackUsed()
	m.WatchdogFailed(2)
	m.WatchdogFailed(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptCnt.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.attemptInfl))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rowCnt.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rowCnt.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbackCnt))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.watchdogFails))
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(config.MetricsConfig{Namespace: "test"})

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/uploads/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/uploads/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope/123", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `test_http_requests_total{method="GET",route="/api/uploads/:id",status="200"} 1`))
	assert.True(t, strings.Contains(body, `route="unmatched"`))
}
