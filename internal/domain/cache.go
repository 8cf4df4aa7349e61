package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest oracle prices.
type PriceCache interface {
	SetPrice(ctx context.Context, asset string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, asset string) (float64, time.Time, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking. The ledger uses it to serialize
// read-modify-write sequences per identity and per contract.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// Ledger event channels and the durable event stream. Channels carry
// ephemeral copies for live consumers; every event is also appended to
// EventStream so a consumer that was down can catch up.
const (
	ChannelOrders      = "ledger.orders"
	ChannelDeposits    = "ledger.deposits"
	ChannelWithdrawals = "ledger.withdrawals"

	// ChannelPattern matches every ledger event channel.
	ChannelPattern = "ledger.*"

	// EventStream is the durable, trimmed stream of all ledger events.
	EventStream = "ledger.events"
)

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for ledger events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
