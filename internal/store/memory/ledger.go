// Package memory implements the domain store interfaces in process memory.
// It mirrors the postgres package's semantics (guarded debits, idempotent
// deposit appends, atomic rollback) and backs the service test suites.
package memory

import (
	"context"
	"sync"

	"github.com/makwansoran/futrledger/internal/domain"
)

var _ domain.Ledger = (*Ledger)(nil)

// data is the entire ledger state. All maps are guarded by the Ledger mutex.
type data struct {
	wallets      map[domain.Identity]domain.CustodialWallet
	balances     map[domain.Identity]domain.Balance
	contracts    map[string]domain.Contract
	positions    map[positionKey]domain.Position
	orders       []domain.Order
	deposits     map[depositKey]domain.Deposit
	transactions map[string]domain.Transaction
	cursors      map[domain.Identity]uint64
	audit        []domain.AuditEntry
}

type positionKey struct {
	identity   domain.Identity
	contractID string
}

type depositKey struct {
	identity domain.Identity
	txHash   string
}

func newData() *data {
	return &data{
		wallets:      make(map[domain.Identity]domain.CustodialWallet),
		balances:     make(map[domain.Identity]domain.Balance),
		contracts:    make(map[string]domain.Contract),
		positions:    make(map[positionKey]domain.Position),
		deposits:     make(map[depositKey]domain.Deposit),
		transactions: make(map[string]domain.Transaction),
		cursors:      make(map[domain.Identity]uint64),
	}
}

// clone deep-copies the state so Atomic can roll back on error.
func (d *data) clone() *data {
	c := newData()
	for k, v := range d.wallets {
		c.wallets[k] = v
	}
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.contracts {
		traders := make([]domain.Identity, len(v.Traders))
		copy(traders, v.Traders)
		v.Traders = traders
		c.contracts[k] = v
	}
	for k, v := range d.positions {
		c.positions[k] = v
	}
	c.orders = append(c.orders, d.orders...)
	for k, v := range d.deposits {
		c.deposits[k] = v
	}
	for k, v := range d.transactions {
		c.transactions[k] = v
	}
	for k, v := range d.cursors {
		c.cursors[k] = v
	}
	c.audit = append(c.audit, d.audit...)
	return c
}

// Ledger implements domain.Ledger in memory.
type Ledger struct {
	mu sync.Mutex
	d  *data
}

// NewLedger returns an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{d: newData()}
}

// locker abstracts the mutex so transactional stores can skip locking while
// Atomic already holds it.
type locker interface {
	Lock()
	Unlock()
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func storesOn(d *data, mu locker) domain.Stores {
	return domain.Stores{
		Wallets:      &walletStore{d: d, mu: mu},
		Balances:     &balanceStore{d: d, mu: mu},
		Contracts:    &contractStore{d: d, mu: mu},
		Positions:    &positionStore{d: d, mu: mu},
		Orders:       &orderStore{d: d, mu: mu},
		Deposits:     &depositStore{d: d, mu: mu},
		Transactions: &transactionStore{d: d, mu: mu},
		Cursors:      &cursorStore{d: d, mu: mu},
		Audit:        &auditStore{d: d, mu: mu},
	}
}

// Stores returns auto-committed stores guarded by the ledger mutex.
func (l *Ledger) Stores() domain.Stores {
	return storesOn(l.d, &l.mu)
}

// Atomic runs fn under the ledger mutex against a shared snapshot. If fn
// returns an error every mutation it made is discarded.
func (l *Ledger) Atomic(ctx context.Context, fn func(s domain.Stores) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := l.d.clone()
	if err := fn(storesOn(l.d, noLock{})); err != nil {
		*l.d = *snapshot
		return err
	}
	return nil
}
