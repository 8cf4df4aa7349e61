package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/makwansoran/futrledger/internal/domain"
)

const (
	relayBatchSize    = 100
	relayPollInterval = 15 * time.Second
)

// EventBus is the slice of the signal bus the relay consumes.
type EventBus interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error)
}

// Relay forwards ledger events from the durable event stream to the
// notifier. The stream is the source of truth: every forward reads from it
// behind a tracked cursor, so an event is delivered at most once per run and
// none is skipped while the relay is up. The pub/sub subscription only wakes
// the poll early; a ticker backstops missed wakeups.
type Relay struct {
	bus      EventBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay reading from bus and delivering through notifier.
func NewRelay(bus EventBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "event_relay")),
	}
}

// Run consumes events until ctx is cancelled. Events already retained in the
// stream at startup are skipped; only events appended afterwards are
// forwarded.
func (r *Relay) Run(ctx context.Context) error {
	lastID, retained, err := r.tail(ctx)
	if err != nil {
		return fmt.Errorf("notify: relay catch-up: %w", err)
	}

	wake, err := r.bus.Subscribe(ctx, domain.ChannelPattern)
	if err != nil {
		return fmt.Errorf("notify: relay subscribe: %w", err)
	}

	r.logger.InfoContext(ctx, "event relay started",
		slog.Int("retained", retained),
		slog.String("cursor", lastID),
	)

	ticker := time.NewTicker(relayPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-wake:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("notify: relay subscription closed")
			}
		}

		lastID, err = r.forward(ctx, lastID)
		if err != nil {
			r.logger.WarnContext(ctx, "event forward failed",
				slog.String("error", err.Error()),
			)
		}
	}
}

// tail pages through the stream to find the current end without forwarding
// anything.
func (r *Relay) tail(ctx context.Context) (string, int, error) {
	lastID := "0"
	total := 0
	for {
		msgs, err := r.bus.StreamRead(ctx, domain.EventStream, lastID, relayBatchSize)
		if err != nil {
			return "", 0, err
		}
		if len(msgs) == 0 {
			return lastID, total, nil
		}
		total += len(msgs)
		lastID = msgs[len(msgs)-1].ID
	}
}

// forward drains every entry after lastID and returns the advanced cursor.
// The cursor moves past an entry even when its delivery fails; a broken
// sender must not wedge the relay on one event.
func (r *Relay) forward(ctx context.Context, lastID string) (string, error) {
	for {
		msgs, err := r.bus.StreamRead(ctx, domain.EventStream, lastID, relayBatchSize)
		if err != nil {
			return lastID, err
		}
		if len(msgs) == 0 {
			return lastID, nil
		}
		for _, m := range msgs {
			r.deliver(ctx, m.Payload)
			lastID = m.ID
		}
	}
}

// deliver decodes the event name and hands the payload to the notifier,
// which applies the event allow-list. Malformed payloads are dropped.
func (r *Relay) deliver(ctx context.Context, payload []byte) {
	var fields map[string]string
	if err := json.Unmarshal(payload, &fields); err != nil {
		r.logger.WarnContext(ctx, "dropping malformed event payload",
			slog.String("error", err.Error()),
		)
		return
	}
	event := fields["event"]
	if event == "" {
		r.logger.WarnContext(ctx, "dropping event payload without event name")
		return
	}

	title := strings.ReplaceAll(event, "_", " ")
	if err := r.notifier.Notify(ctx, event, title, string(payload)); err != nil {
		r.logger.WarnContext(ctx, "event notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
