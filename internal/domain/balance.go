package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a user's cash and portfolio valuation in USD.
//
// Cash is the only authoritative money: orders, deposits, and withdrawals
// mutate it directly and it must never go negative. Portfolio is a derived
// display value (mark-to-market of open positions), refreshed opportunistically
// and never used in any precondition.
type Balance struct {
	Identity  Identity
	Cash      decimal.Decimal
	Portfolio decimal.Decimal
	UpdatedAt time.Time
}

// NewBalance returns a zeroed balance for the identity.
func NewBalance(id Identity) Balance {
	return Balance{
		Identity:  id,
		Cash:      decimal.Zero,
		Portfolio: decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
}
