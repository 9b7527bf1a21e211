package cache

// Package cache provides the best-effort dedup cache in front of the
// authoritative database idempotency gate.

import (
	"context"
	"fmt"
	"time"
)

// Provider stores short-lived reconciliation markers (seen notifications,
// advisory return-path flags).
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// NotificationKey dedups gateway notifications by provider and transaction
// reference.
func NotificationKey(provider, txnRef string) string {
	return fmt.Sprintf("notification:%s:%s", provider, txnRef)
}

// ProvisionalKey marks an order provisionally paid by the advisory
// browser-return path.
func ProvisionalKey(orderID string) string {
	return fmt.Sprintf("provisional:%s", orderID)
}
