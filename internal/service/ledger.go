package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// Ledger is the caller-facing facade over the individual services. An HTTP or
// RPC layer binds to this one type instead of wiring five services itself.
type Ledger struct {
	Accounts    *AccountService
	Contracts   *ContractService
	Orders      *OrderService
	Deposits    *DepositService
	Withdrawals *WithdrawalService
}

// NewLedger bundles the services into a facade.
func NewLedger(
	accounts *AccountService,
	contracts *ContractService,
	orders *OrderService,
	deposits *DepositService,
	withdrawals *WithdrawalService,
) *Ledger {
	return &Ledger{
		Accounts:    accounts,
		Contracts:   contracts,
		Orders:      orders,
		Deposits:    deposits,
		Withdrawals: withdrawals,
	}
}

// Register ensures the identity exists and returns its custodial wallet.
func (l *Ledger) Register(ctx context.Context, identity string) (domain.CustodialWallet, error) {
	return l.Accounts.Register(ctx, identity)
}

// DepositAddress returns the identity's deposit address.
func (l *Ledger) DepositAddress(ctx context.Context, identity string) (string, error) {
	return l.Accounts.DepositAddress(ctx, identity)
}

// GetBalance returns the identity's cash and portfolio balance.
func (l *Ledger) GetBalance(ctx context.Context, identity string) (domain.Balance, error) {
	return l.Accounts.GetBalance(ctx, identity)
}

// CreateContract opens a new contract.
func (l *Ledger) CreateContract(ctx context.Context, question, category string, expiration *time.Time) (domain.Contract, error) {
	return l.Contracts.Create(ctx, question, category, expiration)
}

// GetContract retrieves one contract.
func (l *Ledger) GetContract(ctx context.Context, id string) (domain.Contract, error) {
	return l.Contracts.Get(ctx, id)
}

// ListContracts lists contracts, newest first.
func (l *Ledger) ListContracts(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	return l.Contracts.List(ctx, opts)
}

// PatchContract edits contract metadata.
func (l *Ledger) PatchContract(ctx context.Context, id string, patch ContractPatch) (domain.Contract, error) {
	return l.Contracts.Patch(ctx, id, patch)
}

// ResolveContract settles a contract with a terminal outcome.
func (l *Ledger) ResolveContract(ctx context.Context, id string, outcome domain.Resolution) error {
	return l.Contracts.Resolve(ctx, id, outcome)
}

// ExecuteOrder runs one buy or sell.
func (l *Ledger) ExecuteOrder(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	return l.Orders.Execute(ctx, req)
}

// OrderHistory returns an identity's order log.
func (l *Ledger) OrderHistory(ctx context.Context, identity string, opts domain.ListOpts) ([]domain.Order, error) {
	return l.Orders.History(ctx, identity, opts)
}

// ScanDeposits reconciles new on-chain deposits for the identity.
func (l *Ledger) ScanDeposits(ctx context.Context, identity string) (ScanResult, error) {
	return l.Deposits.Scan(ctx, identity)
}

// DepositHistory returns an identity's credited deposits.
func (l *Ledger) DepositHistory(ctx context.Context, identity string, opts domain.ListOpts) ([]domain.Deposit, error) {
	return l.Deposits.History(ctx, identity, opts)
}

// Withdraw submits an outbound transfer and debits cash.
func (l *Ledger) Withdraw(ctx context.Context, identity string, amountUSD decimal.Decimal, asset domain.Asset, toAddress string) (domain.WithdrawalResult, error) {
	return l.Withdrawals.Withdraw(ctx, identity, amountUSD, asset, toAddress)
}

// WithdrawalHistory returns an identity's withdrawal records.
func (l *Ledger) WithdrawalHistory(ctx context.Context, identity string, opts domain.ListOpts) ([]domain.Transaction, error) {
	return l.Withdrawals.History(ctx, identity, opts)
}

// RefreshPortfolio recomputes an identity's mark-to-market portfolio value.
func (l *Ledger) RefreshPortfolio(ctx context.Context, identity string) (decimal.Decimal, error) {
	return l.Accounts.RefreshPortfolio(ctx, identity)
}
