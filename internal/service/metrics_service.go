package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-lesson-api/internal/models"
)

const metricsNamespace = "lesson_api"

// snapshotCounters mirrors a subset of the Prometheus series so the JSON
// metrics endpoint does not have to gather the registry.
type snapshotCounters struct {
	requests         atomic.Uint64
	requestNanos     atomic.Uint64
	cacheHits        atomic.Uint64
	cacheMisses      atomic.Uint64
	transactions     atomic.Uint64
	transactionNanos atomic.Uint64
	created          atomic.Uint64
	conflicts        atomic.Uint64
	skipped          atomic.Uint64
}

// MetricsService owns the Prometheus registry for HTTP, cache and booking activity.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec
	cacheOps     *prometheus.HistogramVec
	cacheLookups *prometheus.CounterVec
	cacheRatio   prometheus.Gauge
	txDuration   *prometheus.HistogramVec

	bookingsCreated    *prometheus.CounterVec
	bookingConflicts   *prometheus.CounterVec
	occurrencesSkipped prometheus.Counter
	ledgerLessons      *prometheus.CounterVec

	counters snapshotCounters
}

// NewMetricsService builds a private registry so tests can create as many services as they need.
func NewMetricsService() *MetricsService {
	m := &MetricsService{registry: prometheus.NewRegistry()}

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	m.httpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	m.cacheOps = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "cache_operation_seconds",
		Help:      "Latency of day schedule cache reads and writes",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"operation"})
	m.cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_lookups_total",
		Help:      "Day schedule cache lookups by result",
	}, []string{"result"})
	m.cacheRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hit_ratio",
		Help:      "Ratio of cache hits to total cache lookups",
	})
	m.txDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "transaction_duration_seconds",
		Help:      "Duration of booking units of work including retries",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	m.bookingsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "bookings_created_total",
		Help:      "Bookings persisted, labelled by origin",
	}, []string{"origin"})
	m.bookingConflicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "booking_conflicts_total",
		Help:      "Rejected or skipped booking slots by conflicting resource",
	}, []string{"dimension"})
	m.occurrencesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "booking_occurrences_skipped_total",
		Help:      "Recurring occurrences omitted because of a conflict",
	})
	m.ledgerLessons = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "lesson_ledger_lessons_total",
		Help:      "Lessons consumed from or released to packages",
	}, []string{"operation"})

	m.registry.MustRegister(
		m.httpDuration, m.httpTotal,
		m.cacheOps, m.cacheLookups, m.cacheRatio,
		m.txDuration,
		m.bookingsCreated, m.bookingConflicts, m.occurrencesSkipped, m.ledgerLessons,
		collectors.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
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
	code := strconv.Itoa(status)
	m.httpDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.httpTotal.WithLabelValues(method, path, code).Inc()
	m.counters.requests.Add(1)
	m.counters.requestNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records a cache read and updates the hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("get").Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		m.counters.cacheHits.Add(1)
	} else {
		m.cacheLookups.WithLabelValues("miss").Inc()
		m.counters.cacheMisses.Add(1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheRatio.Set(ratio)
	}
}

// ObserveCacheWrite records a cache write.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheOps.WithLabelValues("set").Observe(duration.Seconds())
}

// ObserveTransaction records how long a booking unit of work took, retries included.
func (m *MetricsService) ObserveTransaction(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
	m.counters.transactions.Add(1)
	m.counters.transactionNanos.Add(uint64(duration.Nanoseconds()))
}

// RecordBookingsCreated counts persisted bookings by origin (single or recurring).
func (m *MetricsService) RecordBookingsCreated(origin string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.bookingsCreated.WithLabelValues(origin).Add(float64(count))
	m.counters.created.Add(uint64(count))
}

// RecordBookingConflict counts a slot rejected because of the given resource.
func (m *MetricsService) RecordBookingConflict(dimension models.ConflictDimension) {
	if m == nil {
		return
	}
	m.bookingConflicts.WithLabelValues(string(dimension)).Inc()
	m.counters.conflicts.Add(1)
}

// RecordOccurrenceSkipped counts a recurring date dropped during expansion.
func (m *MetricsService) RecordOccurrenceSkipped() {
	if m == nil {
		return
	}
	m.occurrencesSkipped.Inc()
	m.counters.skipped.Add(1)
}

// RecordLedger counts lessons moved by a ledger operation ("consume" or "release").
func (m *MetricsService) RecordLedger(operation string, lessons int) {
	if m == nil || lessons <= 0 {
		return
	}
	m.ledgerLessons.WithLabelValues(operation).Add(float64(lessons))
}

// Snapshot returns aggregated metrics for the JSON metrics endpoint.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	ratio, _ := m.hitRatio()
	return models.SystemMetrics{
		CacheHitRatio:            ratio,
		CacheHits:                m.counters.cacheHits.Load(),
		CacheMisses:              m.counters.cacheMisses.Load(),
		RequestsTotal:            m.counters.requests.Load(),
		AverageRequestDurationMs: averageMillis(m.counters.requestNanos.Load(), m.counters.requests.Load()),
		DBQueryCount:             m.counters.transactions.Load(),
		AverageDBQueryDurationMs: averageMillis(m.counters.transactionNanos.Load(), m.counters.transactions.Load()),
		BookingsCreated:          m.counters.created.Load(),
		BookingConflicts:         m.counters.conflicts.Load(),
		OccurrencesSkipped:       m.counters.skipped.Load(),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := m.counters.cacheHits.Load()
	total := hits + m.counters.cacheMisses.Load()
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

func averageMillis(totalNanos, count uint64) float64 {
	if count == 0 {
		return 0
	}
	return float64(totalNanos) / float64(count) / float64(time.Millisecond)
}
