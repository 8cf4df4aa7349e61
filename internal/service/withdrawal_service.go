package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// Alerter raises operational alarms (custodial shortfalls, reconciliation
// mismatches) on external channels.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// WithdrawalService executes outbound transfers from custodial wallets.
//
// Ordering is submit-then-debit: the chain transfer is broadcast first and
// the cash debit commits second. A submission failure leaves the ledger
// untouched; a debit failure after a successful broadcast is logged as a
// reconciliation-required incident and alarmed.
type WithdrawalService struct {
	ledger  domain.Ledger
	chain   domain.ChainClient
	oracle  domain.Oracle
	deriver WalletDeriver
	locks   domain.LockManager
	bus     domain.SignalBus
	alerter Alerter
	logger  *slog.Logger

	minUSD  decimal.Decimal
	lockTTL time.Duration
}

// NewWithdrawalService creates a WithdrawalService.
func NewWithdrawalService(
	ledger domain.Ledger,
	chain domain.ChainClient,
	oracle domain.Oracle,
	deriver WalletDeriver,
	locks domain.LockManager,
	bus domain.SignalBus,
	alerter Alerter,
	minUSD decimal.Decimal,
	lockTTL time.Duration,
	logger *slog.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		ledger:  ledger,
		chain:   chain,
		oracle:  oracle,
		deriver: deriver,
		locks:   locks,
		bus:     bus,
		alerter: alerter,
		minUSD:  minUSD,
		lockTTL: lockTTL,
		logger:  logger.With(slog.String("component", "withdrawal_service")),
	}
}

// Withdraw converts amountUSD to asset units at the oracle price, submits a
// signed transfer from the identity's custodial wallet, then debits cash and
// records a pending transaction.
func (s *WithdrawalService) Withdraw(ctx context.Context, rawIdentity string, amountUSD decimal.Decimal, asset domain.Asset, toAddress string) (domain.WithdrawalResult, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return domain.WithdrawalResult{}, err
	}
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: amount must be positive: %w", domain.ErrInvalidAmount)
	}
	if amountUSD.LessThan(s.minUSD) {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: minimum withdrawal is $%s: %w", s.minUSD, domain.ErrBelowMinimum)
	}
	if !common.IsHexAddress(toAddress) {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: %q: %w", toAddress, domain.ErrInvalidAddress)
	}
	if _, ok := domain.ParseAsset(string(asset)); !ok {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: unsupported asset %q: %w", asset, domain.ErrNotFound)
	}

	// Withdrawals fail closed on a missing price: converting at zero would
	// mint infinite crypto.
	price, err := s.oracle.GetUSDPrice(ctx, asset)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: oracle: %w", err)
	}
	if price.LessThanOrEqual(decimal.Zero) {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: no price for %s: %w", asset, domain.ErrOracleUnavailable)
	}
	amountCrypto := amountUSD.DivRound(price, asset.Decimals())

	w, key, err := s.deriver.DeriveNormalized(id)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: derive wallet: %w", err)
	}

	unlock, err := s.locks.Acquire(ctx, "ledger:"+string(id), s.lockTTL)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: acquire lock: %w", err)
	}
	defer unlock()

	// Cash precondition before touching the chain. The guarded debit below
	// re-checks inside the transaction.
	balance, err := s.ledger.Stores().Balances.Get(ctx, id)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: get balance: %w", err)
	}
	if balance.Cash.LessThan(amountUSD) {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: cash %s < %s: %w",
			balance.Cash, amountUSD, domain.ErrInsufficientBalance)
	}

	// The user's ledger cash and the wallet's on-chain holdings are separate
	// pools; a shortfall here is an operations problem, not a user error.
	onChain, err := s.chain.BalanceOf(ctx, w.Address, asset)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: on-chain balance: %w: %v", domain.ErrChainUnavailable, err)
	}
	if onChain.LessThan(amountCrypto) {
		s.alarm(ctx, "custodial_shortfall", "Custodial wallet underfunded",
			fmt.Sprintf("wallet %s holds %s %s, withdrawal needs %s", w.Address, onChain, asset, amountCrypto))
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: wallet holds %s, need %s: %w",
			onChain, amountCrypto, domain.ErrInsufficientCustodialFunds)
	}

	txHash, err := s.chain.SubmitTransfer(ctx, key, toAddress, amountCrypto, asset)
	if err != nil {
		return domain.WithdrawalResult{}, fmt.Errorf("withdrawal_service: submit transfer: %w: %v", domain.ErrChainSubmission, err)
	}

	txn := domain.Transaction{
		ID:           uuid.NewString(),
		Identity:     id,
		Type:         domain.TransactionWithdrawal,
		Asset:        asset,
		AmountUSD:    amountUSD,
		AmountCrypto: amountCrypto,
		FromAddress:  w.Address,
		ToAddress:    toAddress,
		TxHash:       txHash,
		Status:       domain.TxStatusPending,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.ledger.Atomic(ctx, func(st domain.Stores) error {
		if err := st.Balances.Debit(ctx, id, amountUSD); err != nil {
			return fmt.Errorf("withdrawal_service: debit: %w", err)
		}
		if err := st.Transactions.Create(ctx, txn); err != nil {
			return fmt.Errorf("withdrawal_service: record transaction: %w", err)
		}
		return st.Audit.Log(ctx, "withdrawal_submitted", map[string]any{
			"identity": string(id),
			"tx":       txHash,
			"asset":    string(asset),
			"usd":      amountUSD.String(),
			"crypto":   amountCrypto.String(),
			"to":       toAddress,
		})
	})
	if err != nil {
		// The transfer is on chain but the debit did not commit. This needs a
		// human: the ledger now under-counts outflow until reconciled.
		s.logger.ErrorContext(ctx, "RECONCILIATION REQUIRED: transfer broadcast but debit failed",
			slog.String("identity", string(id)),
			slog.String("tx", txHash),
			slog.String("usd", amountUSD.String()),
			slog.String("error", err.Error()),
		)
		s.alarm(ctx, "withdrawal_failed", "Withdrawal debit failed after broadcast",
			fmt.Sprintf("identity %s, tx %s, amount $%s: %v", id, txHash, amountUSD, err))
		return domain.WithdrawalResult{}, err
	}

	evt, _ := json.Marshal(map[string]string{
		"event":    "withdrawal_submitted",
		"identity": string(id),
		"tx":       txHash,
		"asset":    string(asset),
		"usd":      amountUSD.String(),
	})
	publishEvent(ctx, s.bus, s.logger, domain.ChannelWithdrawals, evt)

	s.logger.InfoContext(ctx, "withdrawal submitted",
		slog.String("identity", string(id)),
		slog.String("tx", txHash),
		slog.String("asset", string(asset)),
		slog.String("usd", amountUSD.String()),
		slog.String("crypto", amountCrypto.String()),
	)

	return domain.WithdrawalResult{
		TransactionID: txn.ID,
		TxHash:        txHash,
		AmountUSD:     amountUSD,
		AmountCrypto:  amountCrypto,
		Asset:         asset,
		CashAfter:     balance.Cash.Sub(amountUSD),
	}, nil
}

// MarkStatus transitions a pending withdrawal to confirmed or failed. A
// failed withdrawal refunds the cash debit.
func (s *WithdrawalService) MarkStatus(ctx context.Context, transactionID string, status domain.TransactionStatus) error {
	if status != domain.TxStatusConfirmed && status != domain.TxStatusFailed {
		return errors.New("withdrawal_service: status must be confirmed or failed")
	}

	return s.ledger.Atomic(ctx, func(st domain.Stores) error {
		txn, err := st.Transactions.Get(ctx, transactionID)
		if err != nil {
			return fmt.Errorf("withdrawal_service: get transaction: %w", err)
		}
		if txn.Status != domain.TxStatusPending {
			return fmt.Errorf("withdrawal_service: transaction %s already %s: %w",
				transactionID, txn.Status, domain.ErrAlreadyExists)
		}

		if err := st.Transactions.UpdateStatus(ctx, transactionID, status); err != nil {
			return fmt.Errorf("withdrawal_service: update status: %w", err)
		}
		if status == domain.TxStatusFailed {
			if err := st.Balances.Credit(ctx, txn.Identity, txn.AmountUSD); err != nil {
				return fmt.Errorf("withdrawal_service: refund: %w", err)
			}
		}
		return st.Audit.Log(ctx, "withdrawal_"+string(status), map[string]any{
			"transaction": transactionID,
			"identity":    string(txn.Identity),
			"usd":         txn.AmountUSD.String(),
		})
	})
}

// History returns an identity's withdrawal records, newest first.
func (s *WithdrawalService) History(ctx context.Context, rawIdentity string, opts domain.ListOpts) ([]domain.Transaction, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return nil, err
	}
	txs, err := s.ledger.Stores().Transactions.ListByIdentity(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("withdrawal_service: list transactions for %s: %w", id, err)
	}
	return txs, nil
}

func (s *WithdrawalService) alarm(ctx context.Context, event, title, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "alarm delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
