package queue

// Package queue carries side-effect intents that failed their inline
// execution. Settlement never waits on the queue: a publish failure is
// logged and the intent is retried by the follow-up worker.

import (
	"context"
	"fmt"
	"time"
)

// Task is one deferred side-effect intent.
type Task struct {
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider publishes and consumes retry tasks.
type Provider interface {
	Publish(ctx context.Context, task Task) error
	// Consume delivers tasks to handle until ctx is cancelled. A handler
	// error leaves the task queued for another attempt.
	Consume(ctx context.Context, handle func(context.Context, Task) error) error
	Close() error
}

type Config struct {
	Provider string
	AMQPURL  string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider(), nil
	case "amqp":
		return NewAMQPProvider(cfg.AMQPURL)
	default:
		return nil, fmt.Errorf("unsupported queue provider: %s", cfg.Provider)
	}
}
