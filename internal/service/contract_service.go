package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/pricing"
)

// ContractService manages the contract lifecycle from creation to terminal
// resolution.
type ContractService struct {
	ledger  domain.Ledger
	locks   domain.LockManager
	bus     domain.SignalBus
	lockTTL time.Duration
	logger  *slog.Logger
}

// NewContractService creates a ContractService.
func NewContractService(ledger domain.Ledger, locks domain.LockManager, bus domain.SignalBus, lockTTL time.Duration, logger *slog.Logger) *ContractService {
	return &ContractService{
		ledger:  ledger,
		locks:   locks,
		bus:     bus,
		lockTTL: lockTTL,
		logger:  logger.With(slog.String("component", "contract_service")),
	}
}

// ContractPatch carries optional metadata edits. Nil fields are left
// untouched; volume counters and resolution are never patchable.
type ContractPatch struct {
	Question       *string
	Category       *string
	ExpirationDate *time.Time
}

// Create opens a new contract at the $1.00 baseline price.
func (s *ContractService) Create(ctx context.Context, question, category string, expiration *time.Time) (domain.Contract, error) {
	if question == "" {
		return domain.Contract{}, errors.New("contract_service: question must not be empty")
	}

	c := domain.Contract{
		ID:             uuid.NewString(),
		Question:       question,
		Category:       category,
		MarketPrice:    pricing.Price(decimal.Zero, decimal.Zero),
		BuyVolume:      decimal.Zero,
		SellVolume:     decimal.Zero,
		TotalContracts: decimal.Zero,
		Volume:         decimal.Zero,
		Traders:        []domain.Identity{},
		CreatedAt:      time.Now().UTC(),
		ExpirationDate: expiration,
	}

	err := s.ledger.Atomic(ctx, func(st domain.Stores) error {
		if err := st.Contracts.Create(ctx, c); err != nil {
			return err
		}
		return st.Audit.Log(ctx, "contract_created", map[string]any{
			"contract": c.ID,
			"question": question,
		})
	})
	if err != nil {
		return domain.Contract{}, fmt.Errorf("contract_service: create contract: %w", err)
	}

	s.logger.InfoContext(ctx, "contract created",
		slog.String("contract", c.ID),
		slog.String("question", question),
	)
	return c, nil
}

// Get retrieves a contract by id.
func (s *ContractService) Get(ctx context.Context, id string) (domain.Contract, error) {
	c, err := s.ledger.Stores().Contracts.Get(ctx, id)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("contract_service: get contract %s: %w", id, err)
	}
	return c, nil
}

// List returns contracts, newest first.
func (s *ContractService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	contracts, err := s.ledger.Stores().Contracts.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("contract_service: list contracts: %w", err)
	}
	return contracts, nil
}

// Patch edits contract metadata. Resolved contracts are frozen entirely.
func (s *ContractService) Patch(ctx context.Context, id string, patch ContractPatch) (domain.Contract, error) {
	unlock, err := s.locks.Acquire(ctx, "contract:"+id, s.lockTTL)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("contract_service: acquire lock: %w", err)
	}
	defer unlock()

	var out domain.Contract
	err = s.ledger.Atomic(ctx, func(st domain.Stores) error {
		c, err := st.Contracts.Get(ctx, id)
		if err != nil {
			return err
		}
		if c.Resolved() {
			return fmt.Errorf("contract_service: contract %s: %w", id, domain.ErrContractResolved)
		}

		if patch.Question != nil {
			c.Question = *patch.Question
		}
		if patch.Category != nil {
			c.Category = *patch.Category
		}
		if patch.ExpirationDate != nil {
			c.ExpirationDate = patch.ExpirationDate
		}

		if err := st.Contracts.Update(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return domain.Contract{}, fmt.Errorf("contract_service: patch contract %s: %w", id, err)
	}
	return out, nil
}

// Resolve settles the contract with a terminal outcome: every open position
// is paid at $1.00 face value per unit contract (legacy share positions pay
// the matching side), positions are zeroed, and trading freezes permanently.
// The whole settlement commits atomically; resolving twice is rejected.
func (s *ContractService) Resolve(ctx context.Context, id string, outcome domain.Resolution) error {
	if outcome != domain.ResolutionYes && outcome != domain.ResolutionNo {
		return errors.New("contract_service: outcome must be yes or no")
	}

	unlock, err := s.locks.Acquire(ctx, "contract:"+id, s.lockTTL)
	if err != nil {
		return fmt.Errorf("contract_service: acquire lock: %w", err)
	}
	defer unlock()

	var totalPaid decimal.Decimal
	var holders int

	err = s.ledger.Atomic(ctx, func(st domain.Stores) error {
		c, err := st.Contracts.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("contract_service: get contract %s: %w", id, err)
		}
		if c.Resolved() {
			return fmt.Errorf("contract_service: contract %s: %w", id, domain.ErrContractResolved)
		}

		positions, err := st.Positions.ListByContract(ctx, id)
		if err != nil {
			return fmt.Errorf("contract_service: list positions: %w", err)
		}

		for _, pos := range positions {
			payout := pos.PayoutOn(outcome)
			if payout.GreaterThan(decimal.Zero) {
				if err := st.Balances.Credit(ctx, pos.Identity, payout); err != nil {
					// A holder without a balance row can only mean corrupted
					// state; create the row rather than lose the payout.
					if !errors.Is(err, domain.ErrNotFound) {
						return fmt.Errorf("contract_service: pay out %s: %w", pos.Identity, err)
					}
					b := domain.NewBalance(pos.Identity)
					b.Cash = payout
					if err := st.Balances.Create(ctx, b); err != nil {
						return fmt.Errorf("contract_service: create payout balance %s: %w", pos.Identity, err)
					}
				}
				totalPaid = totalPaid.Add(payout)
				holders++
			}

			pos.Contracts = decimal.Zero
			pos.YesShares = decimal.Zero
			pos.NoShares = decimal.Zero
			if err := st.Positions.Upsert(ctx, pos); err != nil {
				return fmt.Errorf("contract_service: zero position: %w", err)
			}
		}

		c.Resolution = outcome
		c.TotalContracts = decimal.Zero
		if err := st.Contracts.Update(ctx, c); err != nil {
			return fmt.Errorf("contract_service: freeze contract: %w", err)
		}

		return st.Audit.Log(ctx, "contract_resolved", map[string]any{
			"contract":   id,
			"outcome":    string(outcome),
			"total_paid": totalPaid.String(),
			"holders":    holders,
		})
	})
	if err != nil {
		return err
	}

	evt, _ := json.Marshal(map[string]string{
		"event":      "contract_resolved",
		"contract":   id,
		"outcome":    string(outcome),
		"total_paid": totalPaid.String(),
	})
	publishEvent(ctx, s.bus, s.logger, domain.ChannelOrders, evt)

	s.logger.InfoContext(ctx, "contract resolved",
		slog.String("contract", id),
		slog.String("outcome", string(outcome)),
		slog.String("total_paid", totalPaid.String()),
		slog.Int("holders", holders),
	)
	return nil
}
