package domain

import "time"

// CustodialWallet is the public half of a user's derived keypair. The private
// key is never persisted; it is re-derived on demand from the master seed and
// the identity. Only the address is stored, for display and deposit scanning.
type CustodialWallet struct {
	Identity  Identity
	Address   string // 0x-prefixed, EIP-55 checksummed
	CreatedAt time.Time
}
