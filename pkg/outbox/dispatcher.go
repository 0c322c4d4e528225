package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"freelancehub/pkg/circuitbreaker"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/trace"
)

// EventStore Dispatcher 依赖的 outbox 存储操作
type EventStore interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkAsSent(ctx context.Context, eventID int64) error
	MarkAsFailed(ctx context.Context, eventID int64, maxRetries int) error
	DeleteSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Publisher 把已编码的事件投递到 MQ
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error
}

// Dispatcher 负责从 outbox 中读取事件并发布到 MQ
type Dispatcher struct {
	repo       EventStore
	publisher  Publisher
	breaker    *circuitbreaker.CircuitBreaker
	logger     *zap.Logger
	maxRetries int
	interval   time.Duration
	batchSize  int
	retention  time.Duration
}

// NewDispatcher 创建新的 Dispatcher
func NewDispatcher(repo EventStore, publisher Publisher, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		publisher:  publisher,
		breaker:    circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig()),
		logger:     logger,
		maxRetries: 5,               // 默认最大重试5次
		interval:   1 * time.Second, // 默认每秒扫描一次
		batchSize:  100,             // 默认每次处理100个事件
		retention:  7 * 24 * time.Hour,
	}
}

// WithMaxRetries 设置最大重试次数
func (d *Dispatcher) WithMaxRetries(maxRetries int) *Dispatcher {
	if maxRetries > 0 {
		d.maxRetries = maxRetries
	}
	return d
}

// WithInterval 设置扫描间隔
func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithBatchSize 设置批次大小
func (d *Dispatcher) WithBatchSize(batchSize int) *Dispatcher {
	if batchSize > 0 {
		d.batchSize = batchSize
	}
	return d
}

// WithRetention 设置已发送事件的保留时长
func (d *Dispatcher) WithRetention(retention time.Duration) *Dispatcher {
	if retention > 0 {
		d.retention = retention
	}
	return d
}

// Register 在 gocron 调度器中注册扫描任务和清理任务
func (d *Dispatcher) Register(ctx context.Context, s gocron.Scheduler) error {
	d.logger.Info("Registering Outbox Dispatcher",
		zap.Int("max_retries", d.maxRetries),
		zap.Duration("interval", d.interval),
		zap.Int("batch_size", d.batchSize),
	)

	_, err := s.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() { d.ProcessPendingEvents(ctx) }),
		gocron.WithName("outbox-dispatch"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox dispatch: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() { d.CleanupSent(ctx) }),
		gocron.WithName("outbox-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule outbox cleanup: %w", err)
	}
	return nil
}

// ProcessPendingEvents 处理一批待发送的事件，返回成功发布的数量
func (d *Dispatcher) ProcessPendingEvents(ctx context.Context) int {
	events, err := d.repo.GetPendingEvents(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("Failed to get pending events", zap.Error(err))
		return 0
	}
	if len(events) == 0 {
		return 0
	}

	d.logger.Debug("Processing pending events", zap.Int("count", len(events)))

	sent := 0
	for _, event := range events {
		if err := d.publishEvent(ctx, event); err != nil {
			d.logger.Error("Failed to publish event",
				zap.Int64("id", event.ID),
				zap.String("event_id", event.EventID),
				zap.String("routing_key", event.RoutingKey),
				zap.Error(err),
			)
			metrics.IncrementOutboxPublished(StatusFailed)

			if err := d.repo.MarkAsFailed(ctx, event.ID, d.maxRetries); err != nil {
				d.logger.Error("Failed to mark event as failed",
					zap.Int64("id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}

		metrics.IncrementOutboxPublished(StatusSent)
		if err := d.repo.MarkAsSent(ctx, event.ID); err != nil {
			d.logger.Error("Failed to mark event as sent",
				zap.Int64("id", event.ID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// CleanupSent 删除超过保留期的已发送事件
func (d *Dispatcher) CleanupSent(ctx context.Context) {
	n, err := d.repo.DeleteSentBefore(ctx, time.Now().Add(-d.retention))
	if err != nil {
		d.logger.Error("Failed to clean up sent events", zap.Error(err))
		return
	}
	if n > 0 {
		d.logger.Info("Cleaned up sent outbox events", zap.Int64("deleted", n))
	}
}

// publishEvent 发布单个事件到 MQ，熔断器打开时直接失败
func (d *Dispatcher) publishEvent(ctx context.Context, event *Event) error {
	if traceID := traceIDFromPayload(event.Payload); traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}

	return d.breaker.Execute(func() error {
		return d.publisher.PublishWithContext(ctx, event.RoutingKey, event.EventID, event.Payload)
	})
}
