package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"freelancehub/pkg/otel"
	"freelancehub/pkg/trace"
)

type Publisher struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := NewConnection(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := DeclareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *Publisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// IsConnected checks if the publisher connection is still alive
func (p *Publisher) IsConnected() bool {
	if p.conn == nil || p.channel == nil {
		return false
	}
	return !p.conn.IsClosed()
}

// PublishWithContext publishes an already encoded JSON body to the events exchange.
// messageID 用于消费端去重；trace_id 和 traceparent 写入消息头
func (p *Publisher) PublishWithContext(ctx context.Context, routingKey, messageID string, body []byte) error {
	ctx, span := otel.MQPublishSpan(ctx, routingKey, ExchangeName)
	defer span.End()

	headers := amqp091.Table{}
	if traceID := trace.FromContext(ctx); traceID != "" {
		headers["trace_id"] = traceID
	}
	otel.GetTextMapPropagator().Inject(ctx, otel.NewMQHeaderCarrier(headers))

	err := p.channel.PublishWithContext(
		ctx,
		ExchangeName,
		routingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Headers:      headers,
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	return nil
}
