// Package pricing implements the bonding-curve market maker for binary
// contracts.
//
// The model is a linear net-order-flow impact curve: starting from a $1.00
// baseline, every $100 of net buy pressure moves the price by one cent,
// clamped to [$0.01, $100]. It is stateless given the two cumulative volume
// counters, monotonic in net flow, and bounded.
//
// All monetary values use shopspring/decimal — never float64 for money.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

var (
	basePrice   = decimal.NewFromInt(1)
	impactScale = decimal.NewFromInt(10000) // $10k net flow doubles the price
	floorPrice  = decimal.RequireFromString("0.01")
	ceilPrice   = decimal.NewFromInt(100)
)

// quotePrecision bounds division results; fills are fractional so this only
// caps representation, not economics.
const quotePrecision = 12

// Price returns the current contract price for the given cumulative volumes:
//
//	clamp(1 + (buyVolume - sellVolume)/10000, 0.01, 100)
func Price(buyVolume, sellVolume decimal.Decimal) decimal.Decimal {
	net := buyVolume.Sub(sellVolume)
	p := basePrice.Add(net.DivRound(impactScale, quotePrecision))
	return clamp(p)
}

// Quote is a priced trade leg computed at one snapshot of the contract's
// volume counters.
type Quote struct {
	Price     decimal.Decimal
	Contracts decimal.Decimal // contracts received (buy) or sold (sell)
	USD       decimal.Decimal // notional spent (buy) or proceeds (sell)
}

// QuoteBuy prices a buy of amountUSD at the contract's current price.
// Fractional contracts are allowed; nothing is rounded to integer units.
func QuoteBuy(c domain.Contract, amountUSD decimal.Decimal) (Quote, error) {
	if amountUSD.LessThanOrEqual(decimal.Zero) {
		return Quote{}, fmt.Errorf("pricing: buy notional must be positive, got %s: %w",
			amountUSD, domain.ErrInvalidAmount)
	}

	p := Price(c.BuyVolume, c.SellVolume)
	return Quote{
		Price:     p,
		Contracts: amountUSD.DivRound(p, quotePrecision),
		USD:       amountUSD,
	}, nil
}

// QuoteSell prices a sale of contractsToSell at the contract's current price.
func QuoteSell(c domain.Contract, contractsToSell decimal.Decimal) (Quote, error) {
	if contractsToSell.LessThanOrEqual(decimal.Zero) {
		return Quote{}, fmt.Errorf("pricing: sell quantity must be positive, got %s: %w",
			contractsToSell, domain.ErrInvalidAmount)
	}

	p := Price(c.BuyVolume, c.SellVolume)
	return Quote{
		Price:     p,
		Contracts: contractsToSell,
		USD:       contractsToSell.Mul(p),
	}, nil
}

func clamp(p decimal.Decimal) decimal.Decimal {
	if p.LessThan(floorPrice) {
		return floorPrice
	}
	if p.GreaterThan(ceilPrice) {
		return ceilPrice
	}
	return p
}
