package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// WalletStore persists derived custodial addresses for display and scanning.
type WalletStore interface {
	Upsert(ctx context.Context, w CustodialWallet) error
	Get(ctx context.Context, id Identity) (CustodialWallet, error)
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// BalanceStore persists cash balances. Credit and Debit are atomic
// read-modify-write operations; Debit fails with ErrInsufficientBalance
// instead of ever letting cash go negative.
type BalanceStore interface {
	Create(ctx context.Context, b Balance) error
	Get(ctx context.Context, id Identity) (Balance, error)
	Credit(ctx context.Context, id Identity, amount decimal.Decimal) error
	Debit(ctx context.Context, id Identity, amount decimal.Decimal) error
	SetPortfolio(ctx context.Context, id Identity, value decimal.Decimal) error
}

// ContractStore persists contracts.
type ContractStore interface {
	Create(ctx context.Context, c Contract) error
	Get(ctx context.Context, id string) (Contract, error)
	List(ctx context.Context, opts ListOpts) ([]Contract, error)
	// Update replaces all mutable fields. Resolved contracts reject updates
	// at the service layer; the store itself stays dumb.
	Update(ctx context.Context, c Contract) error
	AddTrader(ctx context.Context, contractID string, id Identity) error
}

// PositionStore persists positions keyed by (identity, contract).
type PositionStore interface {
	Get(ctx context.Context, id Identity, contractID string) (Position, error)
	Upsert(ctx context.Context, p Position) error
	ListByIdentity(ctx context.Context, id Identity) ([]Position, error)
	ListByContract(ctx context.Context, contractID string) ([]Position, error)
}

// OrderStore persists the append-only order log.
type OrderStore interface {
	Append(ctx context.Context, o Order) error
	ListByIdentity(ctx context.Context, id Identity, opts ListOpts) ([]Order, error)
	ListByContract(ctx context.Context, contractID string, opts ListOpts) ([]Order, error)
	ListBefore(ctx context.Context, before time.Time) ([]Order, error)
}

// DepositStore persists credited deposits. Exists is the reconciler's
// idempotence guard.
type DepositStore interface {
	Append(ctx context.Context, d Deposit) error
	Exists(ctx context.Context, id Identity, txHash string) (bool, error)
	ListByIdentity(ctx context.Context, id Identity, opts ListOpts) ([]Deposit, error)
	ListBefore(ctx context.Context, before time.Time) ([]Deposit, error)
}

// TransactionStore persists outbound transactions.
type TransactionStore interface {
	Create(ctx context.Context, t Transaction) error
	Get(ctx context.Context, id string) (Transaction, error)
	UpdateStatus(ctx context.Context, id string, status TransactionStatus) error
	ListByIdentity(ctx context.Context, id Identity, opts ListOpts) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// ScanCursorStore persists the last scanned block per identity so repeated
// deposit scans cover a bounded, mostly-new window.
type ScanCursorStore interface {
	Get(ctx context.Context, id Identity) (uint64, error)
	Set(ctx context.Context, id Identity, block uint64) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Stores bundles every record set of the ledger. Inside Ledger.Atomic all
// stores operate on the same transaction.
type Stores struct {
	Wallets      WalletStore
	Balances     BalanceStore
	Contracts    ContractStore
	Positions    PositionStore
	Orders       OrderStore
	Deposits     DepositStore
	Transactions TransactionStore
	Cursors      ScanCursorStore
	Audit        AuditStore
}

// Ledger is the durable financial state with atomic multi-entity commit
// semantics. Stores gives auto-committed access for single reads. Atomic runs
// fn against transactional stores and commits only if fn returns nil;
// otherwise every mutation inside fn is rolled back.
type Ledger interface {
	Stores() Stores
	Atomic(ctx context.Context, fn func(s Stores) error) error
}
