package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

const destAddress = "0x000000000000000000000000000000000000dEaD"

func TestWithdrawalService_SubmitThenDebit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.fund(t, "alice@example.com", 1_000)
	e.chain.balances[w.Address] = decimal.NewFromInt(1) // 1 ETH on chain

	res, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(300), domain.AssetETH, destAddress)
	require.NoError(t, err)
	requireDec(t, "0.1", res.AmountCrypto) // $300 at $3000/ETH
	requireDec(t, "700", res.CashAfter)
	require.Equal(t, "0xsubmitted", res.TxHash)

	require.Len(t, e.chain.submitted, 1)
	require.Equal(t, destAddress, e.chain.submitted[0].to)
	requireDec(t, "0.1", e.chain.submitted[0].amount)
	require.Equal(t, domain.AssetETH, e.chain.submitted[0].asset)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "700", b.Cash)

	history, err := e.withdrawals.History(ctx, "alice@example.com", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.TxStatusPending, history[0].Status)
	require.Equal(t, w.Address, history[0].FromAddress)

	require.Contains(t, e.bus.events, domain.ChannelWithdrawals)
	require.Contains(t, e.bus.streams, domain.EventStream)
}

func TestWithdrawalService_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 1_000)

	_, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(-5), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(5), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrBelowMinimum)

	_, err = e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(50), domain.AssetETH, "not-an-address")
	require.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(50), "DOGE", destAddress)
	require.Error(t, err)
}

func TestWithdrawalService_FailsClosedWithoutPrice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 1_000)
	delete(e.oracle.prices, domain.AssetETH)

	_, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(100), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrOracleUnavailable)
	require.Empty(t, e.chain.submitted)
}

func TestWithdrawalService_InsufficientCash(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.fund(t, "alice@example.com", 50)

	_, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(100), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	require.Empty(t, e.chain.submitted)
}

func TestWithdrawalService_CustodialShortfallAlarms(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.fund(t, "alice@example.com", 1_000)
	e.chain.balances[w.Address] = d("0.01") // needs 0.1 ETH

	_, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(300), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrInsufficientCustodialFunds)
	require.Contains(t, e.alerter.events, "custodial_shortfall")
	require.Empty(t, e.chain.submitted)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "1000", b.Cash)
}

func TestWithdrawalService_SubmitFailureLeavesLedgerUntouched(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.fund(t, "alice@example.com", 1_000)
	e.chain.balances[w.Address] = decimal.NewFromInt(1)
	e.chain.submitErr = errors.New("nonce too low")

	_, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(300), domain.AssetETH, destAddress)
	require.ErrorIs(t, err, domain.ErrChainSubmission)

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "1000", b.Cash)

	history, err := e.withdrawals.History(ctx, "alice@example.com", domain.ListOpts{})
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestWithdrawalService_MarkStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.fund(t, "alice@example.com", 1_000)
	e.chain.balances[w.Address] = decimal.NewFromInt(1)

	res, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(300), domain.AssetETH, destAddress)
	require.NoError(t, err)

	// A failed broadcast refunds the debit.
	require.NoError(t, e.withdrawals.MarkStatus(ctx, res.TransactionID, domain.TxStatusFailed))

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "1000", b.Cash)

	// Terminal states only transition once.
	err = e.withdrawals.MarkStatus(ctx, res.TransactionID, domain.TxStatusConfirmed)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.Error(t, e.withdrawals.MarkStatus(ctx, res.TransactionID, domain.TxStatusPending))
	require.ErrorIs(t, e.withdrawals.MarkStatus(ctx, "missing-id", domain.TxStatusConfirmed), domain.ErrNotFound)
}

func TestWithdrawalService_MarkConfirmedKeepsDebit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	w := e.fund(t, "alice@example.com", 1_000)
	e.chain.balances[w.Address] = decimal.NewFromInt(1)

	res, err := e.withdrawals.Withdraw(ctx, "alice@example.com", decimal.NewFromInt(300), domain.AssetETH, destAddress)
	require.NoError(t, err)
	require.NoError(t, e.withdrawals.MarkStatus(ctx, res.TransactionID, domain.TxStatusConfirmed))

	b, err := e.accounts.GetBalance(ctx, "alice@example.com")
	require.NoError(t, err)
	requireDec(t, "700", b.Cash)

	history, err := e.withdrawals.History(ctx, "alice@example.com", domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.TxStatusConfirmed, history[0].Status)
}
