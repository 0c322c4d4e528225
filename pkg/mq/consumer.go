package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"freelancehub/pkg/metrics"
	"freelancehub/pkg/otel"
	"freelancehub/pkg/trace"
	"freelancehub/pkg/util"
)

// Message 交给业务 handler 的消息
type Message struct {
	RoutingKey string
	MessageID  string
	Body       []byte
}

type MessageHandler func(ctx context.Context, msg Message) error

type Consumer struct {
	channel     *amqp091.Channel
	queue       amqp091.Queue
	routingKeys []string
	handler     MessageHandler
	conn        *amqp091.Connection
	logger      *zap.Logger

	retries    *util.RetryCounter
	maxRetries int64
}

// NewConsumer creates a durable queue bound to the given routing key patterns.
func NewConsumer(url, queueName string, routingKeys []string, logger *zap.Logger) (*Consumer, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	fail := func(err error) (*Consumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := DeclareExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare exchange: %w", err))
	}
	if err := DeclareDLQExchange(ch); err != nil {
		return fail(fmt.Errorf("failed to declare dlq exchange: %w", err))
	}
	if _, err := DeclareDLQQueue(ch, queueName); err != nil {
		return fail(err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue: %w", err))
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, ExchangeName, false, nil); err != nil {
			return fail(fmt.Errorf("failed to bind queue to %s: %w", key, err))
		}
	}

	if err := ch.Qos(16, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set qos: %w", err))
	}

	logger.Info("Consumer initialized",
		zap.Strings("routing_keys", routingKeys),
		zap.String("queue", queueName),
		zap.String("exchange", ExchangeName),
	)

	return &Consumer{
		conn:        conn,
		channel:     ch,
		queue:       q,
		routingKeys: routingKeys,
		logger:      logger,
		maxRetries:  3,
	}, nil
}

func (c *Consumer) SetHandler(h MessageHandler) {
	c.handler = h
}

// WithRetryCounter 启用基于 Redis 的重试计数，超过 maxRetries 后进入死信队列
func (c *Consumer) WithRetryCounter(counter *util.RetryCounter, maxRetries int64) *Consumer {
	c.retries = counter
	c.maxRetries = maxRetries
	return c
}

func (c *Consumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// StartConsuming blocks until ctx is cancelled or the delivery channel closes.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("consumer handler not set")
	}

	deliveries, err := c.channel.Consume(
		c.queue.Name,
		"worker",
		false, // 手动ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Consumer started consuming messages",
		zap.String("queue", c.queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.process(ctx, msg)
		}
	}
}

// process 保证每条消息都会被 ack 或 nack
func (c *Consumer) process(parent context.Context, msg amqp091.Delivery) {
	start := time.Now()
	ctx := otel.GetTextMapPropagator().Extract(parent, otel.NewMQHeaderCarrier(msg.Headers))
	if traceID, ok := msg.Headers["trace_id"].(string); ok && traceID != "" {
		ctx = trace.WithContext(ctx, traceID)
	}
	ctx, span := otel.MQConsumeSpan(ctx, msg.RoutingKey, c.queue.Name)
	defer span.End()

	log := c.logger.With(
		zap.String("routing_key", msg.RoutingKey),
		zap.String("queue", c.queue.Name),
		zap.String("message_id", msg.MessageId),
	)

	// Panic 恢复：确保即使 handler panic 也能正确处理消息
	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panic recovered", zap.Any("panic", r))
			if err := msg.Nack(false, true); err != nil {
				log.Error("Failed to nack message after panic", zap.Error(err))
			}
		}
	}()

	err := c.handler(ctx, Message{RoutingKey: msg.RoutingKey, MessageID: msg.MessageId, Body: msg.Body})
	metrics.RecordMQConsumeLatency(msg.RoutingKey, c.queue.Name, time.Since(start))

	if err == nil {
		if c.retries != nil && msg.MessageId != "" {
			_ = c.retries.Reset(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
		}
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack message", zap.Error(ackErr))
		}
		return
	}

	span.RecordError(err)
	retryable, errType := util.IsRetryableError(err)
	var attempt int64
	if retryable && c.retries != nil && msg.MessageId != "" {
		n, cntErr := c.retries.IncrementAndGet(ctx, util.FormatRetryKey(c.queue.Name, msg.MessageId))
		if cntErr != nil {
			log.Warn("Retry counter unavailable", zap.Error(cntErr))
		} else {
			attempt = n
		}
	}

	switch decide(retryable, attempt, c.maxRetries) {
	case actionRequeue:
		log.Warn("Handler error, requeueing",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		if nackErr := msg.Nack(false, true); nackErr != nil {
			log.Error("Failed to nack message", zap.Error(nackErr))
		}
	case actionDeadLetter:
		log.Error("Handler error, sending to DLQ",
			zap.String("error_type", errType),
			zap.Int64("attempt", attempt),
			zap.Error(err),
		)
		if pubErr := publishToDLQ(ctx, c.channel, msg, c.queue.Name, err.Error()); pubErr != nil {
			log.Error("Failed to publish to DLQ, requeueing", zap.Error(pubErr))
			_ = msg.Nack(false, true)
			return
		}
		if ackErr := msg.Ack(false); ackErr != nil {
			log.Error("Failed to ack dead-lettered message", zap.Error(ackErr))
		}
	}
}

type action int

const (
	actionRequeue action = iota
	actionDeadLetter
)

// decide 可重试且未超过上限则重新入队，否则进入死信队列
func decide(retryable bool, attempt, maxRetries int64) action {
	if util.ShouldRetry(attempt, maxRetries, retryable) {
		return actionRequeue
	}
	return actionDeadLetter
}
