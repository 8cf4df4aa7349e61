package domain

import (
	"context"
	"crypto/ecdsa"
	"time"

	"github.com/shopspring/decimal"
)

// TransferEvent is one token transfer observed on chain, addressed to a
// custodial address.
type TransferEvent struct {
	TxHash      string
	Asset       Asset
	From        string
	To          string
	Amount      decimal.Decimal // asset-native units
	BlockNumber uint64
	Timestamp   time.Time
}

// ChainClient is the read/write interface to the configured chain. Reads are
// bounded: TransferEvents only covers the [fromBlock, toBlock] window the
// caller asks for. All calls must respect the context deadline and fail
// closed rather than hang.
type ChainClient interface {
	// LatestBlock returns the current chain head number.
	LatestBlock(ctx context.Context) (uint64, error)

	// BalanceOf returns the address's balance of the asset in native units.
	BalanceOf(ctx context.Context, address string, asset Asset) (decimal.Decimal, error)

	// TransferEvents returns token transfers addressed to the given address
	// within the block window.
	TransferEvents(ctx context.Context, address string, fromBlock, toBlock uint64) ([]TransferEvent, error)

	// SubmitTransfer signs and broadcasts a transfer from the key's address.
	// It returns the transaction hash on successful submission (not
	// confirmation).
	SubmitTransfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount decimal.Decimal, asset Asset) (string, error)
}

// Oracle converts asset amounts to USD at the current market price.
type Oracle interface {
	// GetUSDPrice returns the current USD price of one unit of the asset.
	// Implementations degrade gracefully: on fetch failure they return zero
	// with a nil error after logging, so callers can apply their own policy.
	GetUSDPrice(ctx context.Context, asset Asset) (decimal.Decimal, error)
}
