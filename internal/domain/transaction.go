package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType distinguishes ledger transaction records.
type TransactionType string

const (
	TransactionWithdrawal TransactionType = "withdrawal"
)

// TransactionStatus tracks an outbound transfer's lifecycle. The ledger only
// moves it to Pending on successful submission; Confirmed/Failed transitions
// come from an external status poller.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusConfirmed TransactionStatus = "confirmed"
	TxStatusFailed    TransactionStatus = "failed"
)

// Transaction records an outbound on-chain transfer from the custodial
// address, debited against the user's cash balance at submission time.
type Transaction struct {
	ID           string
	Identity     Identity
	Type         TransactionType
	Asset        Asset
	AmountUSD    decimal.Decimal
	AmountCrypto decimal.Decimal
	FromAddress  string
	ToAddress    string
	TxHash       string
	Status       TransactionStatus
	CreatedAt    time.Time
}

// WithdrawalResult reports a committed withdrawal.
type WithdrawalResult struct {
	TransactionID string
	TxHash        string
	AmountUSD     decimal.Decimal
	AmountCrypto  decimal.Decimal
	Asset         Asset
	CashAfter     decimal.Decimal
}
