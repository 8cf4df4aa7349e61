package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order is an immutable, append-only execution record. Once written it is
// never mutated; the order log is the audit trail for volume statistics.
type Order struct {
	ID             string
	Identity       Identity
	ContractID     string
	Side           OrderSide
	AmountUSD      decimal.Decimal // notional spent (buy) or received (sell)
	ContractsDelta decimal.Decimal // signed contract quantity: + buy, - sell
	PriceAtFill    decimal.Decimal
	CreatedAt      time.Time
}

// OrderRequest is the caller's intent for a single execution.
//
// AmountUSD is strictly monetary and only meaningful for buys. Sells are
// denominated in Quantity (contract units); the legacy API overloaded the USD
// field for both, which conflated currency with contract count.
type OrderRequest struct {
	Identity   Identity
	ContractID string
	Side       OrderSide
	AmountUSD  decimal.Decimal // buy notional
	Quantity   decimal.Decimal // sell contract quantity
}

// ExecutionResult reports the committed effect of one order.
type ExecutionResult struct {
	OrderID        string
	Side           OrderSide
	AmountUSD      decimal.Decimal // cash moved
	ContractsDelta decimal.Decimal // position change (signed)
	PriceAtFill    decimal.Decimal
	MarketPrice    decimal.Decimal // contract price after the fill
	CashAfter      decimal.Decimal
	PositionAfter  decimal.Decimal
}
