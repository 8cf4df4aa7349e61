package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	q querier
}

// NewTransactionStore creates a TransactionStore backed by the given
// connection pool.
func NewTransactionStore(q querier) *TransactionStore {
	return &TransactionStore{q: q}
}

const transactionCols = `id, identity, tx_type, asset, amount_usd::TEXT,
	amount_crypto::TEXT, from_address, to_address, tx_hash, status, created_at`

// Create inserts an outbound transaction record.
func (s *TransactionStore) Create(ctx context.Context, t domain.Transaction) error {
	const query = `
		INSERT INTO transactions (
			id, identity, tx_type, asset, amount_usd, amount_crypto,
			from_address, to_address, tx_hash, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.q.Exec(ctx, query,
		t.ID, string(t.Identity), string(t.Type), string(t.Asset),
		t.AmountUSD.String(), t.AmountCrypto.String(),
		t.FromAddress, t.ToAddress, t.TxHash, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create transaction %s: %w", t.ID, err)
	}
	return nil
}

// Get retrieves a transaction by id.
func (s *TransactionStore) Get(ctx context.Context, id string) (domain.Transaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = $1`, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	defer rows.Close()

	txs, err := collectTransactions(rows)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(txs) == 0 {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return txs[0], nil
}

// UpdateStatus moves a transaction through its lifecycle.
func (s *TransactionStore) UpdateStatus(ctx context.Context, id string, status domain.TransactionStatus) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1`,
		id, string(status))
	if err != nil {
		return fmt.Errorf("postgres: update transaction %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByIdentity returns an identity's transactions, newest first.
func (s *TransactionStore) ListByIdentity(ctx context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Transaction, error) {
	query, args := pagedQuery(
		`SELECT `+transactionCols+` FROM transactions WHERE identity = $1`,
		[]any{string(id)}, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for %s: %w", id, err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListBefore returns all transactions created before the cutoff (for
// archiving).
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before, err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var identity, txType, asset, amountUSD, amountCrypto, status string

		if err := rows.Scan(&t.ID, &identity, &txType, &asset,
			&amountUSD, &amountCrypto,
			&t.FromAddress, &t.ToAddress, &t.TxHash, &status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}

		t.Identity = domain.Identity(identity)
		t.Type = domain.TransactionType(txType)
		t.Asset = domain.Asset(asset)
		t.Status = domain.TransactionStatus(status)
		var err error
		if t.AmountUSD, err = parseDec("amount_usd", amountUSD); err != nil {
			return nil, err
		}
		if t.AmountCrypto, err = parseDec("amount_crypto", amountCrypto); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: transaction rows: %w", err)
	}
	return txs, nil
}
