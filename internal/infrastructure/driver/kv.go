package driver

import (
	"context"
	"time"
)

// KeyValueDB define a key-value storage interface
type KeyValueDB interface {
	SetEX(key string, value string, expiration time.Duration) error
	Get(key string) (string, error)
	Exists(key string) (bool, error)
	Ping() error
}

// MessageBus fire-and-forget publish/subscribe transport
type MessageBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription stream of payloads received on a channel, Messages is closed after Close
type Subscription interface {
	Messages() <-chan []byte
	Close() error
}
