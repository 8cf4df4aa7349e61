package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// DepositStore implements domain.DepositStore using PostgreSQL. The
// (identity, tx_hash) unique constraint is the hard backstop behind the
// reconciler's Exists check: a transaction can be credited at most once even
// if two scanners race.
type DepositStore struct {
	q querier
}

// NewDepositStore creates a DepositStore backed by the given connection pool.
func NewDepositStore(q querier) *DepositStore {
	return &DepositStore{q: q}
}

const depositCols = `identity, tx_hash, asset, amount::TEXT, amount_usd::TEXT,
	block_number, ts`

// Append records one credited deposit. A duplicate (identity, tx_hash) pair
// returns ErrAlreadyExists.
func (s *DepositStore) Append(ctx context.Context, d domain.Deposit) error {
	const query = `
		INSERT INTO deposits (
			identity, tx_hash, asset, amount, amount_usd, block_number, ts
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.q.Exec(ctx, query,
		string(d.Identity), d.TxHash, string(d.Asset),
		d.Amount.String(), d.AmountUSD.String(), d.BlockNumber, d.Timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: append deposit %s: %w", d.TxHash, err)
	}
	return nil
}

// Exists reports whether a transaction hash has already been credited for the
// identity.
func (s *DepositStore) Exists(ctx context.Context, id domain.Identity, txHash string) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM deposits WHERE identity = $1 AND tx_hash = $2)`,
		string(id), txHash,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check deposit %s: %w", txHash, err)
	}
	return exists, nil
}

// ListByIdentity returns an identity's deposits, newest first.
func (s *DepositStore) ListByIdentity(ctx context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Deposit, error) {
	query := `SELECT ` + depositCols + ` FROM deposits WHERE identity = $1 ORDER BY ts DESC`
	args := []any{string(id)}
	if opts.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, opts.Limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits for %s: %w", id, err)
	}
	defer rows.Close()
	return collectDeposits(rows)
}

// ListBefore returns all deposits recorded before the cutoff (for archiving).
func (s *DepositStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Deposit, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+depositCols+` FROM deposits WHERE ts < $1 ORDER BY ts`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deposits before %s: %w", before, err)
	}
	defer rows.Close()
	return collectDeposits(rows)
}

func collectDeposits(rows pgx.Rows) ([]domain.Deposit, error) {
	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		var identity, asset, amount, amountUSD string

		if err := rows.Scan(&identity, &d.TxHash, &asset,
			&amount, &amountUSD, &d.BlockNumber, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan deposit: %w", err)
		}

		d.Identity = domain.Identity(identity)
		d.Asset = domain.Asset(asset)
		var err error
		if d.Amount, err = parseDec("amount", amount); err != nil {
			return nil, err
		}
		if d.AmountUSD, err = parseDec("amount_usd", amountUSD); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: deposit rows: %w", err)
	}
	return deposits, nil
}
