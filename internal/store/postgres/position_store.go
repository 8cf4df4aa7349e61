package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	q querier
}

// NewPositionStore creates a PositionStore backed by the given connection pool.
func NewPositionStore(q querier) *PositionStore {
	return &PositionStore{q: q}
}

const positionCols = `identity, contract_id, kind, contracts::TEXT,
	yes_shares::TEXT, no_shares::TEXT, updated_at`

// Get retrieves the position for (identity, contract).
func (s *PositionStore) Get(ctx context.Context, id domain.Identity, contractID string) (domain.Position, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+positionCols+` FROM positions WHERE identity = $1 AND contract_id = $2`,
		string(id), contractID)
	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s/%s: %w", id, contractID, err)
	}
	return p, nil
}

// Upsert inserts or replaces a position.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			identity, contract_id, kind, contracts, yes_shares, no_shares, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (identity, contract_id) DO UPDATE SET
			kind       = EXCLUDED.kind,
			contracts  = EXCLUDED.contracts,
			yes_shares = EXCLUDED.yes_shares,
			no_shares  = EXCLUDED.no_shares,
			updated_at = NOW()`

	_, err := s.q.Exec(ctx, query,
		string(p.Identity), p.ContractID, string(p.Kind),
		p.Contracts.String(), p.YesShares.String(), p.NoShares.String(),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s/%s: %w", p.Identity, p.ContractID, err)
	}
	return nil
}

// ListByIdentity returns all positions held by an identity.
func (s *PositionStore) ListByIdentity(ctx context.Context, id domain.Identity) ([]domain.Position, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE identity = $1 ORDER BY contract_id`,
		string(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for %s: %w", id, err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

// ListByContract returns all positions open on a contract.
func (s *PositionStore) ListByContract(ctx context.Context, contractID string) ([]domain.Position, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+positionCols+` FROM positions WHERE contract_id = $1 ORDER BY identity`,
		contractID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions for contract %s: %w", contractID, err)
	}
	defer rows.Close()
	return collectPositions(rows)
}

func collectPositions(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: position rows: %w", err)
	}
	return positions, nil
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var identity, kind, contracts, yesShares, noShares string

	err := row.Scan(&identity, &p.ContractID, &kind,
		&contracts, &yesShares, &noShares, &p.UpdatedAt)
	if err != nil {
		return domain.Position{}, err
	}

	p.Identity = domain.Identity(identity)
	p.Kind = domain.PositionKind(kind)
	if p.Contracts, err = parseDec("contracts", contracts); err != nil {
		return domain.Position{}, err
	}
	if p.YesShares, err = parseDec("yes_shares", yesShares); err != nil {
		return domain.Position{}, err
	}
	if p.NoShares, err = parseDec("no_shares", noShares); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}
