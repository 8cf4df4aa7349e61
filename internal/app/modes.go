package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/makwansoran/futrledger/internal/domain"
)

// ScanMode runs the deposit reconciler loop and the live price stream. Every
// registered custodial wallet is scanned for confirmed deposits on each tick.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanners(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs one statement export and exits: every order, deposit, and
// withdrawal older than the retention window goes to object storage as CSV.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	cutoff := a.archiveCutoff()
	a.logger.InfoContext(ctx, "starting archive mode",
		slog.Time("cutoff", cutoff),
	)

	if err := deps.Archiver.ArchiveBefore(ctx, cutoff); err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	return nil
}

// FullMode runs everything: the deposit reconciler, the price stream, and a
// periodic statement archive.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startScanners(ctx, g, deps)

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Ledger.ArchiveInterval.Duration)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := deps.Archiver.ArchiveBefore(ctx, a.archiveCutoff()); err != nil {
					a.logger.ErrorContext(ctx, "periodic archive failed",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	})

	return g.Wait()
}

// startScanners adds the deposit scan loop and, when configured, the ticker
// price stream to the errgroup.
func (a *App) startScanners(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	g.Go(func() error {
		return deps.Services.Deposits.RunLoop(ctx, a.cfg.Chain.ScanInterval.Duration,
			func(ctx context.Context) ([]domain.Identity, error) {
				return deps.Stores.Wallets.ListIdentities(ctx)
			})
	})

	if deps.PriceStream != nil {
		g.Go(func() error {
			defer deps.PriceStream.Close()
			return deps.PriceStream.Run(ctx)
		})
	}

	if deps.Relay != nil {
		g.Go(func() error {
			return deps.Relay.Run(ctx)
		})
	}
}

// archiveCutoff resolves the retention window to an absolute cutoff.
func (a *App) archiveCutoff() time.Time {
	return time.Now().UTC().AddDate(0, 0, -a.cfg.Ledger.ArchiveRetentionDays)
}
