package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsSnapshot is a compact view of process counters for the health endpoint.
type MetricsSnapshot struct {
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	GenerationsTotal         uint64    `json:"generationsTotal"`
	RateLimitedTotal         uint64    `json:"rateLimitedTotal"`
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	catalogLoad     *prometheus.HistogramVec

	generations        *prometheus.CounterVec
	generationErrors   *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	generationCount    prometheus.Histogram
	generationNodes    prometheus.Histogram
	rateLimited        *prometheus.CounterVec
	rateLimitErrors    *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	generationTotal      uint64
	rateLimitedCount     uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	catalogLoad := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_load_duration_seconds",
		Help:    "Duration of catalog snapshot loads",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})

	generations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_generations_total",
		Help: "Schedule generation requests by mode and outcome status",
	}, []string{"mode", "status"})

	generationErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_generation_errors_total",
		Help: "Failed schedule generation requests by mode and error code",
	}, []string{"mode", "code"})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_generation_duration_seconds",
		Help:    "Wall time of the schedule search",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"mode"})

	generationCount := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_candidates",
		Help:    "Candidates returned per generation",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
	})

	generationNodes := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedule_search_nodes",
		Help:    "Search nodes visited per generation",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})

	rateLimited := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"scope"})

	rateLimitErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_backend_errors_total",
		Help: "Rate limiter backend failures; requests were let through",
	}, []string{"scope"})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_events_total",
		Help: "Generation events handed to the broker by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		catalogLoad, generations, generationErrors, generationDuration, generationCount, generationNodes,
		rateLimited, rateLimitErrors, eventsPublished, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		catalogLoad:        catalogLoad,
		generations:        generations,
		generationErrors:   generationErrors,
		generationDuration: generationDuration,
		generationCount:    generationCount,
		generationNodes:    generationNodes,
		rateLimited:        rateLimited,
		rateLimitErrors:    rateLimitErrors,
		eventsPublished:    eventsPublished,
	}
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

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	if ratio, ok := m.hitRatio(); ok {
		m.cacheHitRatio.Set(ratio)
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveCatalogLoad records how long a catalog snapshot took to load.
func (m *MetricsService) ObserveCatalogLoad(source string, duration time.Duration) {
	if m == nil {
		return
	}
	m.catalogLoad.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveGeneration records a completed generation.
func (m *MetricsService) ObserveGeneration(mode, status string, candidates int, nodes int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(mode, status).Inc()
	m.generationDuration.WithLabelValues(mode).Observe(duration.Seconds())
	m.generationCount.Observe(float64(candidates))
	m.generationNodes.Observe(float64(nodes))
	atomic.AddUint64(&m.generationTotal, 1)
}

// ObserveGenerationError records a failed generation by error code.
func (m *MetricsService) ObserveGenerationError(mode, code string) {
	if m == nil {
		return
	}
	m.generationErrors.WithLabelValues(mode, code).Inc()
}

// ObserveRateLimited counts a rejected request.
func (m *MetricsService) ObserveRateLimited(scope string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(scope).Inc()
	atomic.AddUint64(&m.rateLimitedCount, 1)
}

// ObserveRateLimitError counts a limiter backend failure.
func (m *MetricsService) ObserveRateLimitError(scope string) {
	if m == nil {
		return
	}
	m.rateLimitErrors.WithLabelValues(scope).Inc()
}

// ObserveEvent counts an event publish attempt.
func (m *MetricsService) ObserveEvent(result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}

// Snapshot returns aggregated counters.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}
	ratio, _ := m.hitRatio()

	return MetricsSnapshot{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GenerationsTotal:         atomic.LoadUint64(&m.generationTotal),
		RateLimitedTotal:         atomic.LoadUint64(&m.rateLimitedCount),
		CacheHitRatio:            ratio,
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}

func (m *MetricsService) hitRatio() (float64, bool) {
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}
