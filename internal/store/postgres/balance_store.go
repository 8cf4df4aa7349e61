package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// BalanceStore implements domain.BalanceStore using PostgreSQL. Cash is a
// NUMERIC column mutated only through guarded UPDATEs so it can never go
// negative, even under concurrent writers.
type BalanceStore struct {
	q querier
}

// NewBalanceStore creates a BalanceStore backed by the given connection pool.
func NewBalanceStore(q querier) *BalanceStore {
	return &BalanceStore{q: q}
}

// Create inserts a fresh balance row for the identity.
func (s *BalanceStore) Create(ctx context.Context, b domain.Balance) error {
	const query = `
		INSERT INTO balances (identity, cash, portfolio, updated_at)
		VALUES ($1, $2, $3, NOW())`

	_, err := s.q.Exec(ctx, query,
		string(b.Identity), b.Cash.String(), b.Portfolio.String())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create balance: %w", err)
	}
	return nil
}

// Get retrieves the balance for an identity.
func (s *BalanceStore) Get(ctx context.Context, id domain.Identity) (domain.Balance, error) {
	var b domain.Balance
	var identity, cash, portfolio string

	err := s.q.QueryRow(ctx,
		`SELECT identity, cash::TEXT, portfolio::TEXT, updated_at
		 FROM balances WHERE identity = $1`,
		string(id),
	).Scan(&identity, &cash, &portfolio, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Balance{}, domain.ErrNotFound
		}
		return domain.Balance{}, fmt.Errorf("postgres: get balance: %w", err)
	}

	b.Identity = domain.Identity(identity)
	if b.Cash, err = decimal.NewFromString(cash); err != nil {
		return domain.Balance{}, fmt.Errorf("postgres: parse cash %q: %w", cash, err)
	}
	if b.Portfolio, err = decimal.NewFromString(portfolio); err != nil {
		return domain.Balance{}, fmt.Errorf("postgres: parse portfolio %q: %w", portfolio, err)
	}
	return b, nil
}

// Credit adds amount to the identity's cash.
func (s *BalanceStore) Credit(ctx context.Context, id domain.Identity, amount decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE balances SET cash = cash + $2, updated_at = NOW() WHERE identity = $1`,
		string(id), amount.String())
	if err != nil {
		return fmt.Errorf("postgres: credit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Debit subtracts amount from the identity's cash. The guard in the WHERE
// clause makes the check-and-debit a single atomic statement: if cash is
// short the row is untouched and ErrInsufficientBalance is returned.
func (s *BalanceStore) Debit(ctx context.Context, id domain.Identity, amount decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE balances SET cash = cash - $2, updated_at = NOW()
		 WHERE identity = $1 AND cash >= $2`,
		string(id), amount.String())
	if err != nil {
		return fmt.Errorf("postgres: debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from an underfunded one.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientBalance
	}
	return nil
}

// SetPortfolio overwrites the derived portfolio valuation.
func (s *BalanceStore) SetPortfolio(ctx context.Context, id domain.Identity, value decimal.Decimal) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE balances SET portfolio = $2, updated_at = NOW() WHERE identity = $1`,
		string(id), value.String())
	if err != nil {
		return fmt.Errorf("postgres: set portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
