package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/makwansoran/futrledger/internal/domain"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx. Every
// store runs its SQL through a querier so the same code serves both
// auto-commit and transactional paths.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ domain.Ledger = (*Ledger)(nil)

// Ledger implements domain.Ledger on a pgx connection pool.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// storesOn binds every store to the given querier.
func storesOn(q querier) domain.Stores {
	return domain.Stores{
		Wallets:      &WalletStore{q: q},
		Balances:     &BalanceStore{q: q},
		Contracts:    &ContractStore{q: q},
		Positions:    &PositionStore{q: q},
		Orders:       &OrderStore{q: q},
		Deposits:     &DepositStore{q: q},
		Transactions: &TransactionStore{q: q},
		Cursors:      &ScanCursorStore{q: q},
		Audit:        &AuditStore{q: q},
	}
}

// Stores returns auto-committed stores bound to the pool.
func (l *Ledger) Stores() domain.Stores {
	return storesOn(l.pool)
}

// Atomic runs fn against stores bound to a single transaction. The
// transaction commits only when fn returns nil; any error rolls back every
// mutation fn performed.
func (l *Ledger) Atomic(ctx context.Context, fn func(s domain.Stores) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}

	if err := fn(storesOn(tx)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
