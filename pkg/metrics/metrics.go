package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 提案/项目状态迁移计数
	ProposalTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proposal_transitions_total",
			Help: "Total number of lifecycle transitions committed",
		},
		[]string{"transition"}, // submit, accept, reject, withdraw, complete, rate, create_project
	)

	// 生命周期操作被拒绝的次数（按错误类型）
	LifecycleRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_rejections_total",
			Help: "Lifecycle operations refused by a guard",
		},
		[]string{"operation", "kind"},
	)

	// 推荐计算耗时（秒）
	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_duration_seconds",
			Help:    "Time spent computing recommendations",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"cache"}, // hit, miss
	)

	// 推荐候选集大小
	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of candidate projects scored per request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of slow queries",
		},
		[]string{"sql"},
	)

	// 慢查询耗时（秒）
	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12.8s
		},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// Outbox 发布结果计数
	OutboxPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events handed to the broker",
		},
		[]string{"status"}, // sent, failed
	)

	// 通知写入计数
	NotificationsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_processed_total",
			Help: "Notification events consumed by the worker",
		},
		[]string{"status"}, // stored, duplicate, failed
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementTransition 记录一次成功提交的状态迁移
func IncrementTransition(transition string) {
	ProposalTransitions.WithLabelValues(transition).Inc()
}

// IncrementLifecycleRejection 记录一次被拒绝的生命周期操作
func IncrementLifecycleRejection(operation, kind string) {
	LifecycleRejections.WithLabelValues(operation, kind).Inc()
}

// RecordRecommendation 记录推荐耗时与候选集大小
func RecordRecommendation(cache string, candidates int, duration time.Duration) {
	RecommendationDuration.WithLabelValues(cache).Observe(duration.Seconds())
	if cache == "miss" {
		RecommendationCandidates.Observe(float64(candidates))
	}
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(sql string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(sql).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// IncrementOutboxPublished 记录 outbox 发布结果
func IncrementOutboxPublished(status string) {
	OutboxPublished.WithLabelValues(status).Inc()
}

// IncrementNotification 记录通知处理结果
func IncrementNotification(status string) {
	NotificationsProcessed.WithLabelValues(status).Inc()
}
