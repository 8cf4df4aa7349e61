package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

// relayBus is an in-memory stand-in for the signal bus stream. Entry IDs are
// single-digit "N-0" strings so lexicographic comparison orders them.
type relayBus struct {
	mu         sync.Mutex
	entries    []domain.StreamMessage
	wake       chan []byte
	subscribed chan struct{}
}

func newRelayBus() *relayBus {
	return &relayBus{
		wake:       make(chan []byte, 8),
		subscribed: make(chan struct{}),
	}
}

func (b *relayBus) append(payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, domain.StreamMessage{
		ID:      fmt.Sprintf("%d-0", len(b.entries)+1),
		Payload: []byte(payload),
	})
}

func (b *relayBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	close(b.subscribed)
	return b.wake, nil
}

func (b *relayBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for _, m := range b.entries {
		if m.ID > lastID {
			out = append(out, m)
		}
		if len(out) == count {
			break
		}
	}
	return out, nil
}

type captureSender struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (s *captureSender) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	s.bodies = append(s.bodies, message)
	return nil
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.titles)
}

func TestRelay_ForwardsNewEventsOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newRelayBus()
	bus.append(`{"event":"deposit_credited","identity":"old@x.com"}`)
	bus.append(`{"event":"order_executed","identity":"old@x.com"}`)

	sender := &captureSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	relay := NewRelay(bus, NewNotifier([]Sender{sender}, nil, logger), logger)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	// Subscribe happens after catch-up, so once it fires the retained
	// entries are behind the cursor. Only the event appended afterwards may
	// be delivered.
	<-bus.subscribed
	bus.append(`{"event":"withdrawal_submitted","identity":"new@x.com","usd":"250"}`)
	bus.wake <- []byte("withdrawal_submitted")

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"withdrawal submitted"}, sender.titles)
	assert.Contains(t, sender.bodies[0], "new@x.com")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 1, sender.count())
}

func TestRelay_SkipsMalformedAndFilteredEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newRelayBus()
	sender := &captureSender{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Only withdrawal events pass the notifier's allow-list.
	notifier := NewNotifier([]Sender{sender}, []string{"withdrawal_submitted"}, logger)
	relay := NewRelay(bus, notifier, logger)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()
	<-bus.subscribed

	bus.append(`not json`)
	bus.append(`{"identity":"no-event-field@x.com"}`)
	bus.append(`{"event":"deposit_credited","identity":"filtered@x.com"}`)
	bus.append(`{"event":"withdrawal_submitted","identity":"kept@x.com"}`)
	bus.wake <- []byte("withdrawal_submitted")

	require.Eventually(t, func() bool { return sender.count() == 1 },
		2*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"withdrawal submitted"}, sender.titles)
	assert.Contains(t, sender.bodies[0], "kept@x.com")

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
