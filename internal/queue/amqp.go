package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const retryQueue = "vietcart.intent.retry"

// AMQPProvider backs the retry queue with RabbitMQ. The queue is durable so
// intents survive a broker restart.
type AMQPProvider struct {
	conn *amqp.Connection
}

func NewAMQPProvider(url string) (*AMQPProvider, error) {
	if url == "" {
		return nil, fmt.Errorf("amqp url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect rabbitmq: %w", err)
	}
	return &AMQPProvider{conn: conn}, nil
}

func (p *AMQPProvider) Publish(ctx context.Context, task Task) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(retryQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",
		retryQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

func (p *AMQPProvider) Consume(ctx context.Context, handle func(context.Context, Task) error) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(retryQueue, true, false, false, false, nil); err != nil {
		return err
	}

	deliveries, err := ch.Consume(retryQueue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			var task Task
			if err := json.Unmarshal(delivery.Body, &task); err != nil {
				// Poison message; drop it.
				delivery.Nack(false, false)
				continue
			}
			if err := handle(ctx, task); err != nil {
				delivery.Nack(false, true)
				continue
			}
			delivery.Ack(false)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *AMQPProvider) Close() error {
	return p.conn.Close()
}
