package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

func TestBalanceStore_DebitGuard(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	s := l.Stores()

	require.NoError(t, s.Balances.Create(ctx, domain.NewBalance("a@x.com")))
	require.NoError(t, s.Balances.Credit(ctx, "a@x.com", decimal.NewFromInt(100)))

	err := s.Balances.Debit(ctx, "a@x.com", decimal.NewFromInt(150))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Balance untouched after the failed debit.
	b, err := s.Balances.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, b.Cash.Equal(decimal.NewFromInt(100)))

	require.NoError(t, s.Balances.Debit(ctx, "a@x.com", decimal.NewFromInt(100)))
	b, _ = s.Balances.Get(ctx, "a@x.com")
	assert.True(t, b.Cash.IsZero())
}

func TestDepositStore_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLedger().Stores()

	d := domain.Deposit{
		Identity: "a@x.com", TxHash: "0xabc", Asset: domain.AssetETH,
		Amount: decimal.NewFromInt(1), AmountUSD: decimal.NewFromInt(3000),
		BlockNumber: 10, Timestamp: time.Now(),
	}
	require.NoError(t, s.Deposits.Append(ctx, d))
	assert.ErrorIs(t, s.Deposits.Append(ctx, d), domain.ErrAlreadyExists)

	exists, err := s.Deposits.Exists(ctx, "a@x.com", "0xabc")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAtomic_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	require.NoError(t, l.Stores().Balances.Create(ctx, domain.NewBalance("a@x.com")))
	require.NoError(t, l.Stores().Balances.Credit(ctx, "a@x.com", decimal.NewFromInt(50)))

	boom := errors.New("boom")
	err := l.Atomic(ctx, func(s domain.Stores) error {
		if err := s.Balances.Debit(ctx, "a@x.com", decimal.NewFromInt(30)); err != nil {
			return err
		}
		if err := s.Orders.Append(ctx, domain.Order{ID: "o1", Identity: "a@x.com", CreatedAt: time.Now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Debit and order both rolled back.
	b, err := l.Stores().Balances.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, b.Cash.Equal(decimal.NewFromInt(50)), "cash = %s", b.Cash)

	orders, err := l.Stores().Orders.ListByIdentity(ctx, "a@x.com", domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestAtomic_CommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()

	require.NoError(t, l.Stores().Balances.Create(ctx, domain.NewBalance("a@x.com")))
	err := l.Atomic(ctx, func(s domain.Stores) error {
		return s.Balances.Credit(ctx, "a@x.com", decimal.NewFromInt(10))
	})
	require.NoError(t, err)

	b, err := l.Stores().Balances.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, b.Cash.Equal(decimal.NewFromInt(10)))
}

func TestScanCursor_NeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	s := NewLedger().Stores()

	require.NoError(t, s.Cursors.Set(ctx, "a@x.com", 100))
	require.NoError(t, s.Cursors.Set(ctx, "a@x.com", 50))

	block, err := s.Cursors.Get(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), block)
}

func TestContractStore_AddTraderOnce(t *testing.T) {
	ctx := context.Background()
	s := NewLedger().Stores()

	require.NoError(t, s.Contracts.Create(ctx, domain.Contract{ID: "c1", Question: "?"}))
	require.NoError(t, s.Contracts.AddTrader(ctx, "c1", "a@x.com"))
	require.NoError(t, s.Contracts.AddTrader(ctx, "c1", "a@x.com"))

	c, err := s.Contracts.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, c.Traders, 1)
}
