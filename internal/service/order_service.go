package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/pricing"
)

// OrderService executes buy and sell orders against the bonding curve.
type OrderService struct {
	ledger  domain.Ledger
	locks   domain.LockManager
	limiter domain.RateLimiter
	bus     domain.SignalBus
	logger  *slog.Logger

	rateLimit  int
	rateWindow time.Duration
	lockTTL    time.Duration
}

// NewOrderService creates an OrderService.
func NewOrderService(
	ledger domain.Ledger,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	rateLimit int,
	rateWindow time.Duration,
	lockTTL time.Duration,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		ledger:     ledger,
		locks:      locks,
		limiter:    limiter,
		bus:        bus,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		lockTTL:    lockTTL,
		logger:     logger.With(slog.String("component", "order_service")),
	}
}

// Execute runs one order end to end: validate, rate-limit, lock the identity
// and contract, quote at a single volume snapshot, and commit every mutation
// atomically. On any error the ledger is unchanged.
func (s *OrderService) Execute(ctx context.Context, req domain.OrderRequest) (domain.ExecutionResult, error) {
	id, err := domain.NormalizeIdentity(string(req.Identity))
	if err != nil {
		return domain.ExecutionResult{}, err
	}
	if req.ContractID == "" {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: missing contract id: %w", domain.ErrNotFound)
	}

	switch req.Side {
	case domain.OrderSideBuy:
		if req.AmountUSD.LessThanOrEqual(decimal.Zero) {
			return domain.ExecutionResult{}, fmt.Errorf("order_service: buy notional must be positive: %w", domain.ErrInvalidAmount)
		}
	case domain.OrderSideSell:
		if req.Quantity.LessThanOrEqual(decimal.Zero) {
			return domain.ExecutionResult{}, fmt.Errorf("order_service: sell quantity must be positive: %w", domain.ErrInvalidAmount)
		}
	default:
		return domain.ExecutionResult{}, fmt.Errorf("order_service: unknown side %q: %w", req.Side, domain.ErrInvalidAmount)
	}

	allowed, err := s.limiter.Allow(ctx, "orders:"+string(id), s.rateLimit, s.rateWindow)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.ExecutionResult{}, domain.ErrRateLimited
	}

	// Serialize per identity and per contract. Lock order is fixed
	// (identity, then contract) so concurrent orders cannot deadlock.
	unlockID, err := s.locks.Acquire(ctx, "ledger:"+string(id), s.lockTTL)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: acquire identity lock: %w", err)
	}
	defer unlockID()

	unlockC, err := s.locks.Acquire(ctx, "contract:"+req.ContractID, s.lockTTL)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: acquire contract lock: %w", err)
	}
	defer unlockC()

	var result domain.ExecutionResult
	err = s.ledger.Atomic(ctx, func(st domain.Stores) error {
		contract, err := st.Contracts.Get(ctx, req.ContractID)
		if err != nil {
			return fmt.Errorf("order_service: get contract %s: %w", req.ContractID, err)
		}
		if contract.Resolved() {
			return fmt.Errorf("order_service: contract %s: %w", contract.ID, domain.ErrContractResolved)
		}

		switch req.Side {
		case domain.OrderSideBuy:
			result, err = s.executeBuy(ctx, st, contract, id, req.AmountUSD)
		case domain.OrderSideSell:
			result, err = s.executeSell(ctx, st, contract, id, req.Quantity)
		}
		return err
	})
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	s.publishFill(ctx, id, req.ContractID, result)

	s.logger.InfoContext(ctx, "order executed",
		slog.String("order_id", result.OrderID),
		slog.String("identity", string(id)),
		slog.String("contract", req.ContractID),
		slog.String("side", string(result.Side)),
		slog.String("amount_usd", result.AmountUSD.String()),
		slog.String("price", result.PriceAtFill.String()),
	)
	return result, nil
}

// executeBuy debits cash, grows the position, and moves the curve up.
func (s *OrderService) executeBuy(ctx context.Context, st domain.Stores, contract domain.Contract, id domain.Identity, amountUSD decimal.Decimal) (domain.ExecutionResult, error) {
	quote, err := pricing.QuoteBuy(contract, amountUSD)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	if err := st.Balances.Debit(ctx, id, quote.USD); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: debit %s: %w", id, err)
	}

	pos, err := st.Positions.Get(ctx, id, contract.ID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.ExecutionResult{}, fmt.Errorf("order_service: get position: %w", err)
		}
		pos = domain.NewPosition(id, contract.ID)
	}
	pos.Contracts = pos.Contracts.Add(quote.Contracts)
	if err := st.Positions.Upsert(ctx, pos); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: upsert position: %w", err)
	}

	contract.BuyVolume = contract.BuyVolume.Add(quote.USD)
	contract.Volume = contract.Volume.Add(quote.USD)
	contract.TotalContracts = contract.TotalContracts.Add(quote.Contracts)
	contract.MarketPrice = pricing.Price(contract.BuyVolume, contract.SellVolume)
	if err := st.Contracts.Update(ctx, contract); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: update contract: %w", err)
	}
	if err := st.Contracts.AddTrader(ctx, contract.ID, id); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: add trader: %w", err)
	}

	return s.commitOrder(ctx, st, contract, id, domain.OrderSideBuy, quote.USD, quote.Contracts, quote.Price)
}

// executeSell credits proceeds, shrinks the position, and moves the curve
// down. Selling more contracts than held is rejected before any mutation.
func (s *OrderService) executeSell(ctx context.Context, st domain.Stores, contract domain.Contract, id domain.Identity, quantity decimal.Decimal) (domain.ExecutionResult, error) {
	pos, err := st.Positions.Get(ctx, id, contract.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ExecutionResult{}, fmt.Errorf("order_service: no position in %s: %w", contract.ID, domain.ErrInsufficientPosition)
		}
		return domain.ExecutionResult{}, fmt.Errorf("order_service: get position: %w", err)
	}
	if pos.Kind != domain.KindUnitContracts || pos.Contracts.LessThan(quantity) {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: hold %s, sell %s: %w",
			pos.Contracts, quantity, domain.ErrInsufficientPosition)
	}

	quote, err := pricing.QuoteSell(contract, quantity)
	if err != nil {
		return domain.ExecutionResult{}, err
	}

	if err := st.Balances.Credit(ctx, id, quote.USD); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: credit %s: %w", id, err)
	}

	pos.Contracts = pos.Contracts.Sub(quantity)
	if err := st.Positions.Upsert(ctx, pos); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: upsert position: %w", err)
	}

	contract.SellVolume = contract.SellVolume.Add(quote.USD)
	contract.Volume = contract.Volume.Add(quote.USD)
	contract.TotalContracts = contract.TotalContracts.Sub(quantity)
	contract.MarketPrice = pricing.Price(contract.BuyVolume, contract.SellVolume)
	if err := st.Contracts.Update(ctx, contract); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: update contract: %w", err)
	}

	return s.commitOrder(ctx, st, contract, id, domain.OrderSideSell, quote.USD, quantity.Neg(), quote.Price)
}

// commitOrder appends the immutable execution record plus audit entry and
// assembles the result.
func (s *OrderService) commitOrder(ctx context.Context, st domain.Stores, contract domain.Contract, id domain.Identity, side domain.OrderSide, amountUSD, contractsDelta, priceAtFill decimal.Decimal) (domain.ExecutionResult, error) {
	order := domain.Order{
		ID:             uuid.NewString(),
		Identity:       id,
		ContractID:     contract.ID,
		Side:           side,
		AmountUSD:      amountUSD,
		ContractsDelta: contractsDelta,
		PriceAtFill:    priceAtFill,
		CreatedAt:      time.Now().UTC(),
	}
	if err := st.Orders.Append(ctx, order); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: append order: %w", err)
	}

	if err := st.Audit.Log(ctx, "order_executed", map[string]any{
		"order_id": order.ID,
		"identity": string(id),
		"contract": contract.ID,
		"side":     string(side),
		"usd":      amountUSD.String(),
		"price":    priceAtFill.String(),
	}); err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: audit log: %w", err)
	}

	balance, err := st.Balances.Get(ctx, id)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: get balance: %w", err)
	}
	pos, err := st.Positions.Get(ctx, id, contract.ID)
	if err != nil {
		return domain.ExecutionResult{}, fmt.Errorf("order_service: get position: %w", err)
	}

	return domain.ExecutionResult{
		OrderID:        order.ID,
		Side:           side,
		AmountUSD:      amountUSD,
		ContractsDelta: contractsDelta,
		PriceAtFill:    priceAtFill,
		MarketPrice:    contract.MarketPrice,
		CashAfter:      balance.Cash,
		PositionAfter:  pos.Contracts,
	}, nil
}

// publishFill emits the fill on the signal bus. Publication is best effort;
// the order is already committed.
func (s *OrderService) publishFill(ctx context.Context, id domain.Identity, contractID string, r domain.ExecutionResult) {
	evt, _ := json.Marshal(map[string]string{
		"event":    "order_executed",
		"order_id": r.OrderID,
		"identity": string(id),
		"contract": contractID,
		"side":     string(r.Side),
		"usd":      r.AmountUSD.String(),
		"price":    r.PriceAtFill.String(),
	})
	publishEvent(ctx, s.bus, s.logger, domain.ChannelOrders, evt)
}

// History returns an identity's order log, newest first.
func (s *OrderService) History(ctx context.Context, rawIdentity string, opts domain.ListOpts) ([]domain.Order, error) {
	id, err := domain.NormalizeIdentity(rawIdentity)
	if err != nil {
		return nil, err
	}
	orders, err := s.ledger.Stores().Orders.ListByIdentity(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list orders for %s: %w", id, err)
	}
	return orders, nil
}
