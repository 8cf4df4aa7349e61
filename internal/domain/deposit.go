package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit records one on-chain transfer credited to a user's cash balance.
// TxHash is unique per identity: the reconciler must never credit the same
// transaction twice, no matter how often the chain is re-scanned.
type Deposit struct {
	Identity    Identity
	TxHash      string
	Asset       Asset
	Amount      decimal.Decimal // asset-native units
	AmountUSD   decimal.Decimal
	BlockNumber uint64
	Timestamp   time.Time
}
