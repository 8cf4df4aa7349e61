package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// DepositService reconciles on-chain transfers to custodial addresses into
// cash credits. Scans are idempotent: a transaction hash is credited at most
// once per identity no matter how often the same window is re-scanned.
type DepositService struct {
	ledger  domain.Ledger
	chain   domain.ChainClient
	oracle  domain.Oracle
	deriver WalletDeriver
	locks   domain.LockManager
	bus     domain.SignalBus
	logger  *slog.Logger

	confirmations uint64
	blockWindow   uint64
	lockTTL       time.Duration
}

// NewDepositService creates a DepositService.
func NewDepositService(
	ledger domain.Ledger,
	chain domain.ChainClient,
	oracle domain.Oracle,
	deriver WalletDeriver,
	locks domain.LockManager,
	bus domain.SignalBus,
	confirmations uint64,
	blockWindow uint64,
	lockTTL time.Duration,
	logger *slog.Logger,
) *DepositService {
	return &DepositService{
		ledger:        ledger,
		chain:         chain,
		oracle:        oracle,
		deriver:       deriver,
		locks:         locks,
		bus:           bus,
		confirmations: confirmations,
		blockWindow:   blockWindow,
		lockTTL:       lockTTL,
		logger:        logger.With(slog.String("component", "deposit_service")),
	}
}

// ScanResult summarizes one reconciliation pass.
type ScanResult struct {
	Identity    domain.Identity
	FromBlock   uint64
	ToBlock     uint64
	Credited    int
	Skipped     int
	CreditedUSD decimal.Decimal
}

// Scan reconciles new deposits for one identity. Chain and oracle reads
// happen before the lock and the transaction; each credit commits atomically.
// On chain failure nothing is credited and the cursor does not move.
func (s *DepositService) Scan(ctx context.Context, rawIdentity string) (ScanResult, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return ScanResult{}, err
	}

	w, _, err := s.deriver.DeriveNormalized(id)
	if err != nil {
		return ScanResult{}, fmt.Errorf("deposit_service: derive wallet: %w", err)
	}

	latest, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("deposit_service: latest block: %w: %v", domain.ErrChainUnavailable, err)
	}
	if latest <= s.confirmations {
		return ScanResult{Identity: id}, nil
	}
	head := latest - s.confirmations

	cursor, err := s.ledger.Stores().Cursors.Get(ctx, id)
	if err != nil {
		return ScanResult{}, fmt.Errorf("deposit_service: get cursor: %w", err)
	}

	fromBlock := cursor + 1
	if head >= s.blockWindow && fromBlock < head-s.blockWindow+1 {
		fromBlock = head - s.blockWindow + 1
	}
	if fromBlock > head {
		return ScanResult{Identity: id, FromBlock: fromBlock, ToBlock: head}, nil
	}

	events, err := s.chain.TransferEvents(ctx, w.Address, fromBlock, head)
	if err != nil {
		return ScanResult{}, fmt.Errorf("deposit_service: transfer events: %w: %v", domain.ErrChainUnavailable, err)
	}

	result := ScanResult{Identity: id, FromBlock: fromBlock, ToBlock: head, CreditedUSD: decimal.Zero}

	// An event skipped for a missing price must stay scannable: the cursor
	// only advances to just before the oldest skipped block.
	newCursor := head

	unlock, err := s.locks.Acquire(ctx, "ledger:"+string(id), s.lockTTL)
	if err != nil {
		return ScanResult{}, fmt.Errorf("deposit_service: acquire lock: %w", err)
	}
	defer unlock()

	for _, ev := range events {
		price, err := s.oracle.GetUSDPrice(ctx, ev.Asset)
		if err != nil {
			return result, fmt.Errorf("deposit_service: oracle price for %s: %w", ev.Asset, err)
		}
		if price.LessThanOrEqual(decimal.Zero) {
			s.logger.WarnContext(ctx, "skipping deposit, no oracle price",
				slog.String("identity", string(id)),
				slog.String("tx", ev.TxHash),
				slog.String("asset", string(ev.Asset)),
			)
			result.Skipped++
			if ev.BlockNumber > 0 && ev.BlockNumber-1 < newCursor {
				newCursor = ev.BlockNumber - 1
			}
			continue
		}

		amountUSD := ev.Amount.Mul(price)
		credited, err := s.credit(ctx, id, ev, amountUSD)
		if err != nil {
			return result, err
		}
		if credited {
			result.Credited++
			result.CreditedUSD = result.CreditedUSD.Add(amountUSD)
		}
	}

	if err := s.ledger.Stores().Cursors.Set(ctx, id, newCursor); err != nil {
		return result, fmt.Errorf("deposit_service: set cursor: %w", err)
	}

	if result.Credited > 0 {
		s.logger.InfoContext(ctx, "deposits credited",
			slog.String("identity", string(id)),
			slog.Int("count", result.Credited),
			slog.String("usd", result.CreditedUSD.String()),
			slog.Uint64("from_block", fromBlock),
			slog.Uint64("to_block", head),
		)
	}
	return result, nil
}

// credit applies one transfer event exactly once. The Exists check and the
// append run in the same transaction; the store's unique constraint backstops
// a racing scanner.
func (s *DepositService) credit(ctx context.Context, id domain.Identity, ev domain.TransferEvent, amountUSD decimal.Decimal) (bool, error) {
	credited := false
	err := s.ledger.Atomic(ctx, func(st domain.Stores) error {
		exists, err := st.Deposits.Exists(ctx, id, ev.TxHash)
		if err != nil {
			return fmt.Errorf("deposit_service: check deposit: %w", err)
		}
		if exists {
			return nil
		}

		if err := st.Deposits.Append(ctx, domain.Deposit{
			Identity:    id,
			TxHash:      ev.TxHash,
			Asset:       ev.Asset,
			Amount:      ev.Amount,
			AmountUSD:   amountUSD,
			BlockNumber: ev.BlockNumber,
			Timestamp:   ev.Timestamp,
		}); err != nil {
			return fmt.Errorf("deposit_service: append deposit: %w", err)
		}

		if err := st.Balances.Credit(ctx, id, amountUSD); err != nil {
			// A deposit can land before the identity ever registers;
			// create the balance row instead of failing the credit.
			if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("deposit_service: credit balance: %w", err)
			}
			b := domain.NewBalance(id)
			b.Cash = amountUSD
			if err := st.Balances.Create(ctx, b); err != nil {
				return fmt.Errorf("deposit_service: create deposit balance: %w", err)
			}
		}

		if err := st.Audit.Log(ctx, "deposit_credited", map[string]any{
			"identity": string(id),
			"tx":       ev.TxHash,
			"asset":    string(ev.Asset),
			"amount":   ev.Amount.String(),
			"usd":      amountUSD.String(),
			"block":    ev.BlockNumber,
		}); err != nil {
			return fmt.Errorf("deposit_service: audit log: %w", err)
		}

		credited = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if credited {
		evt, _ := json.Marshal(map[string]string{
			"event":    "deposit_credited",
			"identity": string(id),
			"tx":       ev.TxHash,
			"asset":    string(ev.Asset),
			"usd":      amountUSD.String(),
		})
		publishEvent(ctx, s.bus, s.logger, domain.ChannelDeposits, evt)
	}
	return credited, nil
}

// History returns an identity's credited deposits, newest first.
func (s *DepositService) History(ctx context.Context, rawIdentity string, opts domain.ListOpts) ([]domain.Deposit, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return nil, err
	}
	deposits, err := s.ledger.Stores().Deposits.ListByIdentity(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("deposit_service: list deposits for %s: %w", id, err)
	}
	return deposits, nil
}

// RunLoop periodically scans every registered wallet until the context is
// cancelled. Scan failures are logged and retried on the next tick; a dead
// chain endpoint must not kill the loop.
func (s *DepositService) RunLoop(ctx context.Context, interval time.Duration, identities func(ctx context.Context) ([]domain.Identity, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "deposit scan loop started",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "deposit scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
			ids, err := identities(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "list identities failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			for _, id := range ids {
				if _, err := s.Scan(ctx, string(id)); err != nil {
					s.logger.WarnContext(ctx, "scan failed",
						slog.String("identity", string(id)),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}
