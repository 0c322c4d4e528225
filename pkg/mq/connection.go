package mq

import (
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// ExchangeName 领域事件 topic exchange
	ExchangeName = "events"

	heartbeat = 10 * time.Second
)

// NewConnection 连接 RabbitMQ，带心跳和连接名
func NewConnection(url string) (*amqp091.Connection, error) {
	props := amqp091.NewConnectionProperties()
	props.SetClientConnectionName("freelancehub")
	conn, err := amqp091.DialConfig(url, amqp091.Config{
		Heartbeat:  heartbeat,
		Properties: props,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// DeclareExchange 声明 durable topic exchange，publisher 和 consumer 都会调用，幂等
func DeclareExchange(ch *amqp091.Channel) error {
	return ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil)
}
