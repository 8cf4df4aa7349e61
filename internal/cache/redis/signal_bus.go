package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/makwansoran/futrledger/internal/domain"
)

// payloadField is the single stream entry field holding the event payload.
const payloadField = "payload"

// eventStreamMaxLen bounds the durable event stream via XADD MAXLEN ~. The
// stream is a catch-up buffer, not an archive; the statement archiver owns
// long-term history.
const eventStreamMaxLen int64 = 10000

// SignalBus carries ledger events over Redis. Publish/Subscribe use Pub/Sub
// for live, at-most-once delivery to connected consumers; StreamAppend and
// StreamRead use a trimmed stream so a consumer that was down can catch up
// on the events it missed.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a payload to a Pub/Sub channel. Nothing is retained; a
// consumer that is not subscribed at this moment never sees the message.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published to the given channel
// name. A glob pattern (such as domain.ChannelPattern) subscribes to every
// matching channel. The returned channel closes when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if strings.ContainsAny(channel, "*?[") {
		pubsub = sb.rdb.PSubscribe(ctx, channel)
	} else {
		pubsub = sb.rdb.Subscribe(ctx, channel)
	}

	// The first Receive confirms the subscription is established.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// StreamAppend appends a payload to the named stream, trimming it to roughly
// eventStreamMaxLen entries.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: eventStreamMaxLen,
		Approx: true,
		Values: map[string]any{payloadField: payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries recorded after lastID. Use "0" to
// read from the start of the retained window. It does not block: no new
// entries means an empty result, not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, entry := range s.Messages {
			if payload, ok := decodePayload(entry.Values); ok {
				messages = append(messages, domain.StreamMessage{
					ID:      entry.ID,
					Payload: payload,
				})
			}
		}
	}
	return messages, nil
}

// decodePayload extracts the payload field from a raw stream entry. Entries
// written by other producers without the field are skipped.
func decodePayload(values map[string]any) ([]byte, bool) {
	switch v := values[payloadField].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
