package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

type walletStore struct {
	d  *data
	mu locker
}

func (s *walletStore) Upsert(_ context.Context, w domain.CustodialWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	s.d.wallets[w.Identity] = w
	return nil
}

func (s *walletStore) Get(_ context.Context, id domain.Identity) (domain.CustodialWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.d.wallets[id]
	if !ok {
		return domain.CustodialWallet{}, domain.ErrNotFound
	}
	return w, nil
}

func (s *walletStore) ListIdentities(_ context.Context) ([]domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]domain.Identity, 0, len(s.d.wallets))
	for id := range s.d.wallets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type balanceStore struct {
	d  *data
	mu locker
}

func (s *balanceStore) Create(_ context.Context, b domain.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.balances[b.Identity]; ok {
		return domain.ErrAlreadyExists
	}
	b.UpdatedAt = time.Now().UTC()
	s.d.balances[b.Identity] = b
	return nil
}

func (s *balanceStore) Get(_ context.Context, id domain.Identity) (domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.balances[id]
	if !ok {
		return domain.Balance{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *balanceStore) Credit(_ context.Context, id domain.Identity, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.balances[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Cash = b.Cash.Add(amount)
	b.UpdatedAt = time.Now().UTC()
	s.d.balances[id] = b
	return nil
}

func (s *balanceStore) Debit(_ context.Context, id domain.Identity, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.balances[id]
	if !ok {
		return domain.ErrNotFound
	}
	if b.Cash.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}
	b.Cash = b.Cash.Sub(amount)
	b.UpdatedAt = time.Now().UTC()
	s.d.balances[id] = b
	return nil
}

func (s *balanceStore) SetPortfolio(_ context.Context, id domain.Identity, value decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.d.balances[id]
	if !ok {
		return domain.ErrNotFound
	}
	b.Portfolio = value
	b.UpdatedAt = time.Now().UTC()
	s.d.balances[id] = b
	return nil
}

type contractStore struct {
	d  *data
	mu locker
}

func (s *contractStore) Create(_ context.Context, c domain.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.contracts[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.d.contracts[c.ID] = c
	return nil
}

func (s *contractStore) Get(_ context.Context, id string) (domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.contracts[id]
	if !ok {
		return domain.Contract{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *contractStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Contract
	for _, c := range s.d.contracts {
		if opts.Since != nil && c.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && c.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, opts), nil
}

func (s *contractStore) Update(_ context.Context, c domain.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.contracts[c.ID]; !ok {
		return domain.ErrNotFound
	}
	s.d.contracts[c.ID] = c
	return nil
}

func (s *contractStore) AddTrader(_ context.Context, contractID string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.d.contracts[contractID]
	if !ok {
		return domain.ErrNotFound
	}
	if !c.HasTrader(id) {
		c.Traders = append(c.Traders, id)
		s.d.contracts[contractID] = c
	}
	return nil
}

type positionStore struct {
	d  *data
	mu locker
}

func (s *positionStore) Get(_ context.Context, id domain.Identity, contractID string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.d.positions[positionKey{id, contractID}]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *positionStore) Upsert(_ context.Context, p domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now().UTC()
	s.d.positions[positionKey{p.Identity, p.ContractID}] = p
	return nil
}

func (s *positionStore) ListByIdentity(_ context.Context, id domain.Identity) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for k, p := range s.d.positions {
		if k.identity == id {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContractID < out[j].ContractID })
	return out, nil
}

func (s *positionStore) ListByContract(_ context.Context, contractID string) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for k, p := range s.d.positions {
		if k.contractID == contractID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}

type orderStore struct {
	d  *data
	mu locker
}

func (s *orderStore) Append(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.d.orders {
		if existing.ID == o.ID {
			return domain.ErrAlreadyExists
		}
	}
	s.d.orders = append(s.d.orders, o)
	return nil
}

func (s *orderStore) ListByIdentity(_ context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterOrders(s.d.orders, opts, func(o domain.Order) bool { return o.Identity == id }), nil
}

func (s *orderStore) ListByContract(_ context.Context, contractID string, opts domain.ListOpts) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filterOrders(s.d.orders, opts, func(o domain.Order) bool { return o.ContractID == contractID }), nil
}

func (s *orderStore) ListBefore(_ context.Context, before time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.d.orders {
		if o.CreatedAt.Before(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func filterOrders(orders []domain.Order, opts domain.ListOpts, keep func(domain.Order) bool) []domain.Order {
	var out []domain.Order
	for _, o := range orders {
		if !keep(o) {
			continue
		}
		if opts.Since != nil && o.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && o.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts)
}

type depositStore struct {
	d  *data
	mu locker
}

func (s *depositStore) Append(_ context.Context, d domain.Deposit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := depositKey{d.Identity, d.TxHash}
	if _, ok := s.d.deposits[key]; ok {
		return domain.ErrAlreadyExists
	}
	s.d.deposits[key] = d
	return nil
}

func (s *depositStore) Exists(_ context.Context, id domain.Identity, txHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.d.deposits[depositKey{id, txHash}]
	return ok, nil
}

func (s *depositStore) ListByIdentity(_ context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for k, d := range s.d.deposits {
		if k.identity == id {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *depositStore) ListBefore(_ context.Context, before time.Time) ([]domain.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Deposit
	for _, d := range s.d.deposits {
		if d.Timestamp.Before(before) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type transactionStore struct {
	d  *data
	mu locker
}

func (s *transactionStore) Create(_ context.Context, t domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.d.transactions[t.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.d.transactions[t.ID] = t
	return nil
}

func (s *transactionStore) Get(_ context.Context, id string) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.d.transactions[id]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

func (s *transactionStore) UpdateStatus(_ context.Context, id string, status domain.TransactionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.d.transactions[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = status
	s.d.transactions[id] = t
	return nil
}

func (s *transactionStore) ListByIdentity(_ context.Context, id domain.Identity, opts domain.ListOpts) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.d.transactions {
		if t.Identity != id {
			continue
		}
		if opts.Since != nil && t.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && t.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func (s *transactionStore) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.d.transactions {
		if t.CreatedAt.Before(before) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type cursorStore struct {
	d  *data
	mu locker
}

func (s *cursorStore) Get(_ context.Context, id domain.Identity) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.cursors[id], nil
}

func (s *cursorStore) Set(_ context.Context, id domain.Identity, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if block > s.d.cursors[id] {
		s.d.cursors[id] = block
	}
	return nil
}

type auditStore struct {
	d  *data
	mu locker
}

func (s *auditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.audit = append(s.d.audit, domain.AuditEntry{
		ID:        int64(len(s.d.audit) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *auditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditEntry, len(s.d.audit))
	copy(out, s.d.audit)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}
