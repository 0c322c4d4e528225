package mq

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DLQExchangeName = "events.dlq"
)

// DeclareDLQExchange declares the dead letter exchange.
func DeclareDLQExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(
		DLQExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
}

// DeclareDLQQueue declares the dead letter queue for a consumer queue.
// 所有路由键都进入 <queue>.dlq
func DeclareDLQQueue(ch *amqp091.Channel, queueName string) (amqp091.Queue, error) {
	q, err := ch.QueueDeclare(
		queueName+".dlq",
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to declare DLQ queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, "#", DLQExchangeName, false, nil); err != nil {
		return amqp091.Queue{}, fmt.Errorf("failed to bind DLQ queue: %w", err)
	}

	return q, nil
}

// publishToDLQ publishes a failed delivery to the dead letter exchange.
func publishToDLQ(ctx context.Context, ch *amqp091.Channel, msg amqp091.Delivery, queue, reason string) error {
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-original-error"] = reason
	headers["x-failed-queue"] = queue

	return ch.PublishWithContext(
		ctx,
		DLQExchangeName,
		msg.RoutingKey,
		false,
		false,
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         msg.Body,
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.MessageId,
			Headers:      headers,
		},
	)
}
