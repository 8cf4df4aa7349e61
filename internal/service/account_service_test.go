package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

func TestAccountService_RegisterIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w1, err := e.accounts.Register(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, domain.Identity("alice@example.com"), w1.Identity)

	// A funded balance survives re-registration.
	require.NoError(t, e.ledger.Stores().Balances.Credit(ctx, w1.Identity, decimal.NewFromInt(500)))

	w2, err := e.accounts.Register(ctx, "  Alice@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, w1.Address, w2.Address)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "500", b.Cash)
}

func TestAccountService_DepositAddress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// First use registers the account.
	addr, err := e.accounts.DepositAddress(ctx, "new@example.com")
	require.NoError(t, err)
	require.Len(t, addr, 42)

	again, err := e.accounts.DepositAddress(ctx, "new@example.com")
	require.NoError(t, err)
	require.Equal(t, addr, again)

	_, err = e.accounts.GetBalance(ctx, "new@example.com")
	require.NoError(t, err)
}

func TestAccountService_RejectsInvalidIdentity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.accounts.Register(ctx, "   ")
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)

	_, err = e.accounts.GetBalance(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidIdentity)
}

func TestAccountService_RefreshPortfolio(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 1_000)
	c := e.newContract(t, "Marked to market?")

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "alice@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// 100 contracts at the post-buy price of 1.01.
	total, err := e.accounts.RefreshPortfolio(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "101", total)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "101", b.Portfolio)
	requireDec(t, "900", b.Cash)
}

func TestAccountService_RefreshPortfolioLegacyShares(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "bob@example.com", 0)
	c := e.newContract(t, "Legacy mark?")

	require.NoError(t, e.ledger.Stores().Positions.Upsert(ctx, domain.Position{
		Identity:   "bob@example.com",
		ContractID: c.ID,
		Kind:       domain.KindLegacyShares,
		YesShares:  decimal.NewFromInt(40),
		NoShares:   decimal.NewFromInt(15),
	}))

	// Legacy positions mark at the larger side's face value.
	total, err := e.accounts.RefreshPortfolio(ctx, "bob@example.com")
	require.NoError(t, err)
	requireDec(t, "40", total)
}
