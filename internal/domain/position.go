package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionKind distinguishes the current unit-contract accounting model from
// the legacy yes/no share system it replaced. The two are modelled as a tagged
// variant so every consumer branches exhaustively instead of probing optional
// fields.
type PositionKind string

const (
	KindUnitContracts PositionKind = "unit_contracts"
	KindLegacyShares  PositionKind = "legacy_shares"
)

// Position is a user's holding in one contract, keyed by
// (Identity, ContractID).
//
// For KindUnitContracts only Contracts is meaningful; for KindLegacyShares
// only YesShares/NoShares are. All quantities are non-negative; a sell that
// would drive Contracts negative is rejected before commit.
type Position struct {
	Identity   Identity
	ContractID string
	Kind       PositionKind
	Contracts  decimal.Decimal
	YesShares  decimal.Decimal
	NoShares   decimal.Decimal
	UpdatedAt  time.Time
}

// NewPosition returns an empty unit-contract position.
func NewPosition(id Identity, contractID string) Position {
	return Position{
		Identity:   id,
		ContractID: contractID,
		Kind:       KindUnitContracts,
		Contracts:  decimal.Zero,
		YesShares:  decimal.Zero,
		NoShares:   decimal.Zero,
	}
}

// PayoutOn returns the USD amount the position pays at $1 face value when the
// contract resolves with the given outcome.
func (p Position) PayoutOn(outcome Resolution) decimal.Decimal {
	switch p.Kind {
	case KindLegacyShares:
		if outcome == ResolutionYes {
			return p.YesShares
		}
		return p.NoShares
	default:
		// Unit contracts pay face value regardless of outcome direction; the
		// price path already carried the directional exposure.
		return p.Contracts
	}
}

// Empty reports whether the position holds nothing under its accounting kind.
func (p Position) Empty() bool {
	if p.Kind == KindLegacyShares {
		return p.YesShares.IsZero() && p.NoShares.IsZero()
	}
	return p.Contracts.IsZero()
}
