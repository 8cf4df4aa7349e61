// Package service implements the ledger's business operations on top of the
// domain stores: account lifecycle, order execution, deposit reconciliation,
// withdrawal execution, and contract resolution.
package service

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/pricing"
)

// WalletDeriver re-derives custodial keypairs from the master seed. Private
// keys exist only for the duration of a call and are never stored.
type WalletDeriver interface {
	DeriveNormalized(id domain.Identity) (domain.CustodialWallet, *ecdsa.PrivateKey, error)
}

// AccountService manages account registration and balance views.
type AccountService struct {
	ledger  domain.Ledger
	deriver WalletDeriver
	logger  *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(ledger domain.Ledger, deriver WalletDeriver, logger *slog.Logger) *AccountService {
	return &AccountService{
		ledger:  ledger,
		deriver: deriver,
		logger:  logger.With(slog.String("component", "account_service")),
	}
}

// Register ensures the identity has a custodial wallet and a balance row.
// It is idempotent: repeated calls return the same address and leave the
// existing balance untouched.
func (s *AccountService) Register(ctx context.Context, rawIdentity string) (domain.CustodialWallet, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return domain.CustodialWallet{}, err
	}

	w, _, err := s.deriver.DeriveNormalized(id)
	if err != nil {
		return domain.CustodialWallet{}, fmt.Errorf("account_service: derive wallet: %w", err)
	}

	err = s.ledger.Atomic(ctx, func(st domain.Stores) error {
		if err := st.Wallets.Upsert(ctx, w); err != nil {
			return err
		}
		if err := st.Balances.Create(ctx, domain.NewBalance(id)); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				return nil
			}
			return err
		}
		return st.Audit.Log(ctx, "account_registered", map[string]any{
			"identity": string(id),
			"address":  w.Address,
		})
	})
	if err != nil {
		return domain.CustodialWallet{}, fmt.Errorf("account_service: register %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("identity", string(id)),
		slog.String("address", w.Address),
	)
	return w, nil
}

// DepositAddress returns the identity's custodial deposit address,
// registering the account on first use.
func (s *AccountService) DepositAddress(ctx context.Context, rawIdentity string) (string, error) {
	w, err := s.Register(ctx, rawIdentity)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}

// GetBalance returns the identity's balance.
func (s *AccountService) GetBalance(ctx context.Context, rawIdentity string) (domain.Balance, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return domain.Balance{}, err
	}
	b, err := s.ledger.Stores().Balances.Get(ctx, id)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("account_service: get balance %s: %w", id, err)
	}
	return b, nil
}

// RefreshPortfolio recomputes the identity's mark-to-market portfolio value
// from open positions at current contract prices and stores it. Portfolio is
// display-only; no precondition ever reads it.
func (s *AccountService) RefreshPortfolio(ctx context.Context, rawIdentity string) (decimal.Decimal, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return decimal.Decimal{}, err
	}

	st := s.ledger.Stores()
	positions, err := st.Positions.ListByIdentity(ctx, id)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("account_service: list positions %s: %w", id, err)
	}

	total := decimal.Zero
	for _, p := range positions {
		if p.Empty() {
			continue
		}
		c, err := st.Contracts.Get(ctx, p.ContractID)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("account_service: get contract %s: %w", p.ContractID, err)
		}
		price := pricing.Price(c.BuyVolume, c.SellVolume)
		switch p.Kind {
		case domain.KindLegacyShares:
			// Legacy shares are marked at face value of the larger side.
			total = total.Add(decimal.Max(p.YesShares, p.NoShares))
		default:
			total = total.Add(p.Contracts.Mul(price))
		}
	}

	if err := st.Balances.SetPortfolio(ctx, id, total); err != nil {
		return decimal.Decimal{}, fmt.Errorf("account_service: set portfolio %s: %w", id, err)
	}
	return total, nil
}
