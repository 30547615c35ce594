package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/civic-report-api/internal/models"
)

// MetricsService owns the Prometheus registry and keeps running totals for
// the JSON snapshot.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec
	feedEvents      *prometheus.CounterVec
	feedConnected   prometheus.Gauge
	liveDashboards  prometheus.Gauge
	issuesSubmitted *prometheus.CounterVec
	statusUpdates   *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	dbQueryCount         uint64
	dbQueryDurationTotal uint64
	feedEventCount       uint64
	feedUp               atomic.Bool
	liveCount            int64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
		feedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_feed_events_total",
			Help: "Issue change events delivered to subscribers, by kind",
		}, []string{"kind"}),
		feedConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "issue_feed_connected",
			Help: "1 while the change feed listener is connected",
		}),
		liveDashboards: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_dashboards",
			Help: "Open live dashboard connections",
		}),
		issuesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issues_submitted_total",
			Help: "Issues reported, by category",
		}, []string{"category"}),
		statusUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "issue_status_updates_total",
			Help: "Issue status changes, by target status and outcome",
		}, []string{"status", "outcome"}),
	}

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})
	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})
	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_hits_total", Help: "Total cache hits"})
	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{Name: "cache_misses_total", Help: "Total cache misses"})
	m.cacheLatency, m.cacheWrite, m.cacheHits, m.cacheMisses = cacheLatency, cacheWrite, cacheHits, cacheMisses

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal, m.dbQueryDuration,
		cacheLatency, cacheWrite, cacheHits, cacheMisses,
		m.feedEvents, m.feedConnected, m.liveDashboards,
		m.issuesSubmitted, m.statusUpdates, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return m
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records one served request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
		return
	}
	m.cacheMisses.Inc()
	atomic.AddUint64(&m.cacheMissCount, 1)
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
	atomic.AddUint64(&m.dbQueryCount, 1)
	atomic.AddUint64(&m.dbQueryDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordFeedEvent counts a change delivered by a feed.
func (m *MetricsService) RecordFeedEvent(kind models.ChangeKind) {
	if m == nil {
		return
	}
	m.feedEvents.WithLabelValues(string(kind)).Inc()
	atomic.AddUint64(&m.feedEventCount, 1)
}

// SetFeedConnected mirrors the listener connection state.
func (m *MetricsService) SetFeedConnected(connected bool) {
	if m == nil {
		return
	}
	m.feedUp.Store(connected)
	if connected {
		m.feedConnected.Set(1)
		return
	}
	m.feedConnected.Set(0)
}

// LiveDashboardOpened and LiveDashboardClosed track open sockets.
func (m *MetricsService) LiveDashboardOpened() {
	if m == nil {
		return
	}
	m.liveDashboards.Inc()
	atomic.AddInt64(&m.liveCount, 1)
}

func (m *MetricsService) LiveDashboardClosed() {
	if m == nil {
		return
	}
	m.liveDashboards.Dec()
	atomic.AddInt64(&m.liveCount, -1)
}

// RecordIssueSubmitted counts a stored report.
func (m *MetricsService) RecordIssueSubmitted(category models.IssueCategory) {
	if m == nil {
		return
	}
	m.issuesSubmitted.WithLabelValues(string(category)).Inc()
}

// RecordStatusUpdate counts a status change attempt.
func (m *MetricsService) RecordStatusUpdate(status models.IssueStatus, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.statusUpdates.WithLabelValues(string(status), outcome).Inc()
}

// Snapshot returns the running totals.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	dbCount := atomic.LoadUint64(&m.dbQueryCount)
	dbDuration := atomic.LoadUint64(&m.dbQueryDurationTotal)

	var cacheRatio float64
	if total := hits + misses; total > 0 {
		cacheRatio = float64(hits) / float64(total)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgDBMs float64
	if dbCount > 0 {
		avgDBMs = float64(dbDuration) / float64(dbCount) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		DBQueryCount:             dbCount,
		AverageDBQueryDurationMs: avgDBMs,
		FeedEvents:               atomic.LoadUint64(&m.feedEventCount),
		FeedConnected:            m.feedUp.Load(),
		LiveDashboards:           atomic.LoadInt64(&m.liveCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
