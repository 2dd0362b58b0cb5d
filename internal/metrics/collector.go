// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 检索指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 查询指标
	queriesTotal  *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	resultCount   *prometheus.HistogramVec

	// 阶段指标
	stageDuration *prometheus.HistogramVec

	// 后端指标
	backendRequestsTotal *prometheus.CounterVec
	backendDuration      *prometheus.HistogramVec
	backendCandidates    *prometheus.HistogramVec

	// 模型指标
	modelFallbacksTotal *prometheus.CounterVec

	// 缓存指标
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 查询指标
	c.queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of retrieval queries",
		},
		[]string{"intent", "status"},
	)

	c.queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end retrieval query duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"intent"},
	)

	c.resultCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "result_count",
			Help:      "Number of results returned per query",
			Buckets:   []float64{0, 1, 3, 5, 10, 20, 50},
		},
		[]string{"status"},
	)

	// 阶段指标
	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Per-stage pipeline duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)

	// 后端指标
	c.backendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of backend searches",
		},
		[]string{"backend", "status"},
	)

	c.backendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_duration_seconds",
			Help:      "Backend search duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"backend"},
	)

	c.backendCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_candidates",
			Help:      "Number of candidates returned per backend search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50},
		},
		[]string{"backend"},
	)

	// 模型指标
	c.modelFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_fallbacks_total",
			Help:      "Total number of model fallbacks to deterministic paths",
		},
		[]string{"model"},
	)

	// 缓存指标
	c.cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		},
	)
	c.cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordQuery 记录一次查询
func (c *Collector) RecordQuery(intent, status string, duration time.Duration, resultCount int) {
	c.queriesTotal.WithLabelValues(intent, status).Inc()
	c.queryDuration.WithLabelValues(intent).Observe(duration.Seconds())
	c.resultCount.WithLabelValues(status).Observe(float64(resultCount))
}

// RecordStage 记录管线阶段耗时
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordBackend 记录一次后端检索
func (c *Collector) RecordBackend(backend string, available bool, duration time.Duration, candidates int) {
	status := "ok"
	if !available {
		status = "unavailable"
	}
	c.backendRequestsTotal.WithLabelValues(backend, status).Inc()
	c.backendDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if available {
		c.backendCandidates.WithLabelValues(backend).Observe(float64(candidates))
	}
}

// RecordModelFallback 记录一次模型降级
func (c *Collector) RecordModelFallback(model string) {
	c.modelFallbacksTotal.WithLabelValues(model).Inc()
}

// RecordCacheHit 记录缓存命中
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss 记录缓存未命中
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}
