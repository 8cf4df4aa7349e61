package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resolution is the terminal outcome of a binary contract. Once a contract is
// resolved, no further orders or edits are accepted.
type Resolution string

const (
	ResolutionNone Resolution = ""
	ResolutionYes  Resolution = "yes"
	ResolutionNo   Resolution = "no"
)

// ParseResolution validates an outcome string.
func ParseResolution(s string) (Resolution, bool) {
	switch Resolution(s) {
	case ResolutionYes:
		return ResolutionYes, true
	case ResolutionNo:
		return ResolutionNo, true
	default:
		return ResolutionNone, false
	}
}

// Contract is a tradable binary-outcome claim priced by the bonding-curve
// market maker. MarketPrice is a cache of the pure pricing function over
// (BuyVolume, SellVolume) and is recomputed on every trade, never trusted as
// independent state.
type Contract struct {
	ID             string
	Question       string
	Category       string
	MarketPrice    decimal.Decimal
	BuyVolume      decimal.Decimal // cumulative buy notional, USD
	SellVolume     decimal.Decimal // cumulative sell proceeds, USD
	TotalContracts decimal.Decimal // outstanding contract units
	Volume         decimal.Decimal // cumulative traded notional, USD
	Traders        []Identity      // distinct identities that have traded
	Resolution     Resolution
	CreatedAt      time.Time
	ExpirationDate *time.Time
}

// Resolved reports whether the contract has reached its terminal state.
func (c Contract) Resolved() bool {
	return c.Resolution != ResolutionNone
}

// HasTrader reports whether the identity is already registered on the
// contract.
func (c Contract) HasTrader(id Identity) bool {
	for _, t := range c.Traders {
		if t == id {
			return true
		}
	}
	return false
}
