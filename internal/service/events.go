package service

import (
	"context"
	"log/slog"

	"github.com/makwansoran/futrledger/internal/domain"
)

// publishEvent emits one ledger event: an ephemeral copy on the channel for
// live consumers and a durable copy on the event stream so a consumer that
// was down can catch up. Publication is best effort; the ledger commit
// already happened.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, payload []byte) {
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := bus.StreamAppend(ctx, domain.EventStream, payload); err != nil {
		logger.WarnContext(ctx, "append event to stream failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
