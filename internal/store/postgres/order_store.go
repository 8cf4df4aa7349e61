package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/makwansoran/futrledger/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL. Orders are
// append-only; there is deliberately no update or delete path.
type OrderStore struct {
	q querier
}

// NewOrderStore creates an OrderStore backed by the given connection pool.
func NewOrderStore(q querier) *OrderStore {
	return &OrderStore{q: q}
}

const orderCols = `id, identity, contract_id, side, amount_usd::TEXT,
	contracts_delta::TEXT, price_at_fill::TEXT, created_at`

// Append writes one execution record.
func (s *OrderStore) Append(ctx context.Context, o domain.Order) error {
	const query = `
		INSERT INTO orders (
			id, identity, contract_id, side, amount_usd,
			contracts_delta, price_at_fill, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q.Exec(ctx, query,
		o.ID, string(o.Identity), o.ContractID, string(o.Side),
		o.AmountUSD.String(), o.ContractsDelta.String(), o.PriceAtFill.String(),
		o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: append order %s: %w", o.ID, err)
	}
	return nil
}

// ListByIdentity returns an identity's orders, newest first.
func (s *OrderStore) ListByIdentity(ctx context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Order, error) {
	query, args := pagedQuery(
		`SELECT `+orderCols+` FROM orders WHERE identity = $1`,
		[]any{string(id)}, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for %s: %w", id, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListByContract returns a contract's orders, newest first.
func (s *OrderStore) ListByContract(ctx context.Context, contractID string, opts domain.ListOpts) ([]domain.Order, error) {
	query, args := pagedQuery(
		`SELECT `+orderCols+` FROM orders WHERE contract_id = $1`,
		[]any{contractID}, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders for contract %s: %w", contractID, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListBefore returns all orders created before the cutoff (for archiving).
func (s *OrderStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE created_at < $1 ORDER BY created_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders before %s: %w", before, err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var identity, side, amountUSD, contractsDelta, priceAtFill string

		if err := rows.Scan(&o.ID, &identity, &o.ContractID, &side,
			&amountUSD, &contractsDelta, &priceAtFill, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}

		o.Identity = domain.Identity(identity)
		o.Side = domain.OrderSide(side)
		var err error
		if o.AmountUSD, err = parseDec("amount_usd", amountUSD); err != nil {
			return nil, err
		}
		if o.ContractsDelta, err = parseDec("contracts_delta", contractsDelta); err != nil {
			return nil, err
		}
		if o.PriceAtFill, err = parseDec("price_at_fill", priceAtFill); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: order rows: %w", err)
	}
	return orders, nil
}

// pagedQuery appends time filters, ordering, and pagination to a base query
// whose WHERE clause already consumed len(args) placeholders.
func pagedQuery(base string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	base += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		base += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		base += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return base, args
}
