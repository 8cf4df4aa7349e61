package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// ContractStore implements domain.ContractStore using PostgreSQL.
type ContractStore struct {
	q querier
}

// NewContractStore creates a ContractStore backed by the given connection pool.
func NewContractStore(q querier) *ContractStore {
	return &ContractStore{q: q}
}

const contractCols = `id, question, category, market_price::TEXT, buy_volume::TEXT,
	sell_volume::TEXT, total_contracts::TEXT, volume::TEXT, traders,
	resolution, created_at, expiration_date`

// Create inserts a new contract.
func (s *ContractStore) Create(ctx context.Context, c domain.Contract) error {
	const query = `
		INSERT INTO contracts (
			id, question, category, market_price, buy_volume,
			sell_volume, total_contracts, volume, traders,
			resolution, created_at, expiration_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), $11)`

	_, err := s.q.Exec(ctx, query,
		c.ID, c.Question, c.Category,
		c.MarketPrice.String(), c.BuyVolume.String(),
		c.SellVolume.String(), c.TotalContracts.String(), c.Volume.String(),
		tradersToStrings(c.Traders), string(c.Resolution), c.ExpirationDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create contract %s: %w", c.ID, err)
	}
	return nil
}

// Get retrieves a contract by its primary key.
func (s *ContractStore) Get(ctx context.Context, id string) (domain.Contract, error) {
	row := s.q.QueryRow(ctx,
		`SELECT `+contractCols+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Contract{}, domain.ErrNotFound
		}
		return domain.Contract{}, fmt.Errorf("postgres: get contract %s: %w", id, err)
	}
	return c, nil
}

// List returns contracts with pagination and optional time filtering.
func (s *ContractStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	query := `SELECT ` + contractCols + ` FROM contracts WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list contracts rows: %w", err)
	}
	return contracts, nil
}

// Update replaces all mutable fields of a contract.
func (s *ContractStore) Update(ctx context.Context, c domain.Contract) error {
	const query = `
		UPDATE contracts SET
			question        = $2,
			category        = $3,
			market_price    = $4,
			buy_volume      = $5,
			sell_volume     = $6,
			total_contracts = $7,
			volume          = $8,
			traders         = $9,
			resolution      = $10,
			expiration_date = $11
		WHERE id = $1`

	tag, err := s.q.Exec(ctx, query,
		c.ID, c.Question, c.Category,
		c.MarketPrice.String(), c.BuyVolume.String(),
		c.SellVolume.String(), c.TotalContracts.String(), c.Volume.String(),
		tradersToStrings(c.Traders), string(c.Resolution), c.ExpirationDate,
	)
	if err != nil {
		return fmt.Errorf("postgres: update contract %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddTrader registers an identity on the contract's trader list if not
// already present.
func (s *ContractStore) AddTrader(ctx context.Context, contractID string, id domain.Identity) error {
	const query = `
		UPDATE contracts
		SET traders = array_append(traders, $2)
		WHERE id = $1 AND NOT ($2 = ANY(traders))`

	if _, err := s.q.Exec(ctx, query, contractID, string(id)); err != nil {
		return fmt.Errorf("postgres: add trader to contract %s: %w", contractID, err)
	}
	return nil
}

// scanContract scans a single contract row.
func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var marketPrice, buyVolume, sellVolume, totalContracts, volume string
	var traders []string
	var resolution string

	err := row.Scan(
		&c.ID, &c.Question, &c.Category,
		&marketPrice, &buyVolume, &sellVolume, &totalContracts, &volume,
		&traders, &resolution, &c.CreatedAt, &c.ExpirationDate,
	)
	if err != nil {
		return domain.Contract{}, err
	}

	if c.MarketPrice, err = parseDec("market_price", marketPrice); err != nil {
		return domain.Contract{}, err
	}
	if c.BuyVolume, err = parseDec("buy_volume", buyVolume); err != nil {
		return domain.Contract{}, err
	}
	if c.SellVolume, err = parseDec("sell_volume", sellVolume); err != nil {
		return domain.Contract{}, err
	}
	if c.TotalContracts, err = parseDec("total_contracts", totalContracts); err != nil {
		return domain.Contract{}, err
	}
	if c.Volume, err = parseDec("volume", volume); err != nil {
		return domain.Contract{}, err
	}

	c.Traders = make([]domain.Identity, len(traders))
	for i, t := range traders {
		c.Traders[i] = domain.Identity(t)
	}
	c.Resolution = domain.Resolution(resolution)
	return c, nil
}

func tradersToStrings(ids []domain.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
