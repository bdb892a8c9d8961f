// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器。
type Collector struct {
	// 问答指标
	questionsTotal   *prometheus.CounterVec
	questionDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter

	// 检索指标
	retrievalTotal    *prometheus.CounterVec
	retrievalReturned prometheus.Histogram

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	// 会话指标
	activeSessions prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器。
// reg 为 nil 时注册到默认 registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.questionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Total number of questions answered",
		},
		[]string{"route", "outcome"},
	)

	c.questionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "question_duration_seconds",
			Help:      "End-to-end question handling duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route"},
	)

	c.cacheHits = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_hits_total",
		Help:      "Total number of response cache hits",
	})

	c.cacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "response_cache_misses_total",
		Help:      "Total number of response cache misses",
	})

	c.retrievalTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Total number of retrieval operations",
		},
		[]string{"mode", "status"},
	)

	c.retrievalReturned = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "retrieval_fragments_returned",
		Help:      "Number of fragments returned per retrieval",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"operation", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	c.activeSessions = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of live sessions",
	})

	return c
}

// RecordQuestion 记录一次问答。
func (c *Collector) RecordQuestion(route, outcome string, duration time.Duration) {
	c.questionsTotal.WithLabelValues(route, outcome).Inc()
	c.questionDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordCacheHit 记录回答缓存命中。
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }

// RecordCacheMiss 记录回答缓存未命中。
func (c *Collector) RecordCacheMiss() { c.cacheMisses.Inc() }

// RecordRetrieval 记录一次检索。
func (c *Collector) RecordRetrieval(mode, status string, returned int) {
	c.retrievalTotal.WithLabelValues(mode, status).Inc()
	if status == "success" {
		c.retrievalReturned.Observe(float64(returned))
	}
}

// RecordLLMRequest 记录一次模型调用。
func (c *Collector) RecordLLMRequest(operation, status string, duration time.Duration) {
	c.llmRequestsTotal.WithLabelValues(operation, status).Inc()
	c.llmRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetActiveSessions 更新活跃会话数。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}
