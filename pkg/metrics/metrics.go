package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus collectors of the api server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	namespace     string
	httpReqCnt    *prometheus.CounterVec
	httpDur       *prometheus.HistogramVec
	httpInfl      *prometheus.GaugeVec
	attemptCnt    *prometheus.CounterVec
	attemptDur    *prometheus.HistogramVec
	attemptInfl   prometheus.Gauge
	rowCnt        *prometheus.CounterVec
	stageDur      *prometheus.HistogramVec
	fallbackCnt   prometheus.Counter
	watchdogFails prometheus.Counter
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	// Register basic HTTP metrics
	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	attemptCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "ingest_attempts_total"}, []string{"status"})
	attemptDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "ingest_attempt_duration_seconds", Buckets: cfg.Buckets}, []string{"status"})
	attemptInfl := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "ingest_attempts_inflight"})
	r.MustRegister(attemptCnt, attemptDur, attemptInfl)

	rowCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "ingest_rows_total"}, []string{"outcome"})
	stageDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "ingest_stage_duration_seconds", Buckets: cfg.Buckets}, []string{"stage", "status"})
	fallbackCnt := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "analytics_fallback_total"})
	watchdogFails := prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "watchdog_force_failed_total"})
	r.MustRegister(rowCnt, stageDur, fallbackCnt, watchdogFails)

	return &Metrics{
		registry:      r,
		namespace:     ns,
		httpReqCnt:    httpReqCnt,
		httpDur:       httpDur,
		httpInfl:      httpInfl,
		attemptCnt:    attemptCnt,
		attemptDur:    attemptDur,
		attemptInfl:   attemptInfl,
		rowCnt:        rowCnt,
		stageDur:      stageDur,
		fallbackCnt:   fallbackCnt,
		watchdogFails: watchdogFails,
	}
}

func (m *Metrics) AttemptStart() {
	if m == nil {
		return
	}
	m.attemptInfl.Inc()
}

func (m *Metrics) AttemptDone(status string, since time.Time) {
	if m == nil {
		return
	}
	m.attemptCnt.WithLabelValues(status).Inc()
	m.attemptDur.WithLabelValues(status).Observe(time.Since(since).Seconds())
	m.attemptInfl.Dec()
}

func (m *Metrics) RowsProcessed(accepted, rejected int) {
	if m == nil {
		return
	}
	m.rowCnt.WithLabelValues("accepted").Add(float64(accepted))
	m.rowCnt.WithLabelValues("rejected").Add(float64(rejected))
}

func (m *Metrics) StageDone(stage string, since time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.stageDur.WithLabelValues(stage, status).Observe(time.Since(since).Seconds())
}

func (m *Metrics) FallbackUsed() {
	if m == nil {
		return
	}
	m.fallbackCnt.Inc()
}

func (m *Metrics) WatchdogFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.watchdogFails.Add(float64(n))
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = routeFromURL(c.Request.URL.Path)
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := httpStatus(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// routeFromURL labels requests that matched no route, keeping label cardinality bounded
func routeFromURL(path string) string {
	if path == "" {
		return "/"
	}
	return "unmatched"
}

func httpStatus(code int) string { return strconv.Itoa(code) }
