package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// WalletStore implements domain.WalletStore using PostgreSQL.
type WalletStore struct {
	q querier
}

// NewWalletStore creates a WalletStore backed by the given connection pool.
func NewWalletStore(q querier) *WalletStore {
	return &WalletStore{q: q}
}

// Upsert inserts or refreshes the custodial address for an identity. The
// address is a pure function of the identity under a fixed seed, so an upsert
// can only ever write the same value back.
func (s *WalletStore) Upsert(ctx context.Context, w domain.CustodialWallet) error {
	const query = `
		INSERT INTO wallets (identity, address, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (identity) DO UPDATE SET
			address = EXCLUDED.address`

	_, err := s.q.Exec(ctx, query, string(w.Identity), w.Address)
	if err != nil {
		return fmt.Errorf("postgres: upsert wallet: %w", err)
	}
	return nil
}

// Get retrieves the custodial wallet for an identity.
func (s *WalletStore) Get(ctx context.Context, id domain.Identity) (domain.CustodialWallet, error) {
	var w domain.CustodialWallet
	var identity string

	err := s.q.QueryRow(ctx,
		`SELECT identity, address, created_at FROM wallets WHERE identity = $1`,
		string(id),
	).Scan(&identity, &w.Address, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CustodialWallet{}, domain.ErrNotFound
		}
		return domain.CustodialWallet{}, fmt.Errorf("postgres: get wallet: %w", err)
	}
	w.Identity = domain.Identity(identity)
	return w, nil
}

// ListIdentities returns every identity that has a custodial wallet. The
// deposit scan loop walks this list on each tick.
func (s *WalletStore) ListIdentities(ctx context.Context) ([]domain.Identity, error) {
	rows, err := s.q.Query(ctx, `SELECT identity FROM wallets ORDER BY identity`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wallet identities: %w", err)
	}
	defer rows.Close()

	var ids []domain.Identity
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan wallet identity: %w", err)
		}
		ids = append(ids, domain.Identity(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wallet identities: %w", err)
	}
	return ids, nil
}
