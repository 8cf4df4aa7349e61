package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

func TestContractService_CreateBaseline(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.newContract(t, "Opens at a dollar?")
	requireDec(t, "1", c.MarketPrice)
	requireDec(t, "0", c.Volume)
	require.False(t, c.Resolved())

	_, err := e.contracts.Create(ctx, "", "test", nil)
	require.Error(t, err)
}

func TestContractService_Patch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.newContract(t, "Original question?")

	q := "Edited question?"
	exp := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	patched, err := e.contracts.Patch(ctx, c.ID, ContractPatch{Question: &q, ExpirationDate: &exp})
	require.NoError(t, err)
	require.Equal(t, q, patched.Question)
	require.Equal(t, "test", patched.Category)
	require.Equal(t, exp, *patched.ExpirationDate)

	// Resolution freezes metadata too.
	require.NoError(t, e.contracts.Resolve(ctx, c.ID, domain.ResolutionNo))
	_, err = e.contracts.Patch(ctx, c.ID, ContractPatch{Question: &q})
	require.ErrorIs(t, err, domain.ErrContractResolved)
}

func TestContractService_ResolvePaysFaceValue(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 200)
	c := e.newContract(t, "Pays out?")

	// 100 contracts for $100 at baseline.
	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "alice@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	require.NoError(t, e.contracts.Resolve(ctx, c.ID, domain.ResolutionYes))

	// Each unit contract pays $1.00 regardless of outcome side.
	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "200", b.Cash)

	pos, err := e.ledger.Stores().Positions.Get(ctx, "alice@example.com", c.ID)
	require.NoError(t, err)
	requireDec(t, "0", pos.Contracts)

	got, err := e.contracts.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, domain.ResolutionYes, got.Resolution)
	require.True(t, got.Resolved())
	requireDec(t, "0", got.TotalContracts)
}

func TestContractService_ResolveLegacyShares(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "bob@example.com", 0)
	c := e.newContract(t, "Legacy holders?")

	// Migrated yes/no share position predating unit contracts.
	require.NoError(t, e.ledger.Stores().Positions.Upsert(ctx, domain.Position{
		Identity:   "bob@example.com",
		ContractID: c.ID,
		Kind:       domain.KindLegacyShares,
		YesShares:  decimal.NewFromInt(30),
		NoShares:   decimal.NewFromInt(5),
	}))

	require.NoError(t, e.contracts.Resolve(ctx, c.ID, domain.ResolutionYes))

	b, err := e.accounts.GetBalance(ctx, "bob@example.com")
	require.NoError(t, err)
	requireDec(t, "30", b.Cash)

	pos, err := e.ledger.Stores().Positions.Get(ctx, "bob@example.com", c.ID)
	require.NoError(t, err)
	requireDec(t, "0", pos.YesShares)
	requireDec(t, "0", pos.NoShares)
}

func TestContractService_ResolveOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	c := e.newContract(t, "Settles once?")
	require.NoError(t, e.contracts.Resolve(ctx, c.ID, domain.ResolutionNo))

	err := e.contracts.Resolve(ctx, c.ID, domain.ResolutionYes)
	require.ErrorIs(t, err, domain.ErrContractResolved)

	require.Error(t, e.contracts.Resolve(ctx, c.ID, ""))
	require.Error(t, e.contracts.Resolve(ctx, c.ID, "maybe"))
}
