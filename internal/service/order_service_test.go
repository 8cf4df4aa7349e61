package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

func TestOrderService_BuySellRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 1_000)
	c := e.newContract(t, "Will it rain tomorrow?")

	// $100 at the $1.00 baseline buys exactly 100 contracts and moves the
	// price to 1.01.
	buy, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "alice@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	requireDec(t, "100", buy.ContractsDelta)
	requireDec(t, "1", buy.PriceAtFill)
	requireDec(t, "1.01", buy.MarketPrice)
	requireDec(t, "900", buy.CashAfter)
	requireDec(t, "100", buy.PositionAfter)

	// Selling 50 contracts at 1.01 returns 50.50 and walks the price back.
	sell, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "alice@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideSell,
		Quantity:   decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	requireDec(t, "50.5", sell.AmountUSD)
	requireDec(t, "1.01", sell.PriceAtFill)
	requireDec(t, "1.00495", sell.MarketPrice)
	requireDec(t, "950.5", sell.CashAfter)
	requireDec(t, "50", sell.PositionAfter)

	got, err := e.contracts.Get(ctx, c.ID)
	require.NoError(t, err)
	requireDec(t, "100", got.BuyVolume)
	requireDec(t, "50.5", got.SellVolume)
	requireDec(t, "150.5", got.Volume)
	requireDec(t, "50", got.TotalContracts)
	require.Equal(t, []domain.Identity{"alice@example.com"}, got.Traders)

	history, err := e.orders.History(ctx, "alice@example.com", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestOrderService_IdentityNormalized(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 100)
	c := e.newContract(t, "Normalized?")

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "  Alice@Example.COM ",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "90", b.Cash)
}

func TestOrderService_InsufficientBalance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "bob@example.com", 10)
	c := e.newContract(t, "Underfunded buy?")

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "bob@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(100),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// The rejected order leaves no trace.
	b, err := e.accounts.GetBalance(ctx, "bob@example.com")
	require.NoError(t, err)
	requireDec(t, "10", b.Cash)

	got, err := e.contracts.Get(ctx, c.ID)
	require.NoError(t, err)
	requireDec(t, "0", got.BuyVolume)
	require.Empty(t, got.Traders)

	history, err := e.orders.History(ctx, "bob@example.com", domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestOrderService_InsufficientPosition(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "carol@example.com", 1_000)
	c := e.newContract(t, "Oversell?")

	// No position at all.
	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "carol@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideSell,
		Quantity:   decimal.NewFromInt(1),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientPosition)

	// Holding 100, selling 101.
	_, err = e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "carol@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "carol@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideSell,
		Quantity:   decimal.NewFromInt(101),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientPosition)

	b, err := e.accounts.GetBalance(ctx, "carol@example.com")
	require.NoError(t, err)
	requireDec(t, "900", b.Cash)
}

func TestOrderService_ResolvedContractFrozen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "dave@example.com", 1_000)
	c := e.newContract(t, "Already settled?")
	require.NoError(t, e.contracts.Resolve(ctx, c.ID, domain.ResolutionYes))

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "dave@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrContractResolved)
}

func TestOrderService_RateLimited(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "eve@example.com", 1_000)
	c := e.newContract(t, "Throttled?")
	e.limiter.deny = true

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "eve@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestOrderService_RejectsBadRequests(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "frank@example.com", 1_000)
	c := e.newContract(t, "Validation?")

	cases := []struct {
		name string
		req  domain.OrderRequest
		want error
	}{
		{
			name: "zero buy notional",
			req: domain.OrderRequest{
				Identity: "frank@example.com", ContractID: c.ID,
				Side: domain.OrderSideBuy, AmountUSD: decimal.Zero,
			},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "negative sell quantity",
			req: domain.OrderRequest{
				Identity: "frank@example.com", ContractID: c.ID,
				Side: domain.OrderSideSell, Quantity: decimal.NewFromInt(-5),
			},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "unknown side",
			req: domain.OrderRequest{
				Identity: "frank@example.com", ContractID: c.ID,
				Side: "short", AmountUSD: decimal.NewFromInt(10),
			},
			want: domain.ErrInvalidAmount,
		},
		{
			name: "missing contract id",
			req: domain.OrderRequest{
				Identity: "frank@example.com",
				Side:     domain.OrderSideBuy, AmountUSD: decimal.NewFromInt(10),
			},
			want: domain.ErrNotFound,
		},
		{
			name: "unknown contract",
			req: domain.OrderRequest{
				Identity: "frank@example.com", ContractID: "no-such-contract",
				Side: domain.OrderSideBuy, AmountUSD: decimal.NewFromInt(10),
			},
			want: domain.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.orders.Execute(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestOrderService_PublishesFills(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "grace@example.com", 100)
	c := e.newContract(t, "Published?")

	_, err := e.orders.Execute(ctx, domain.OrderRequest{
		Identity:   "grace@example.com",
		ContractID: c.ID,
		Side:       domain.OrderSideBuy,
		AmountUSD:  decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	require.Contains(t, e.bus.events, domain.ChannelOrders)
	require.Contains(t, e.bus.streams, domain.EventStream)
}
