package service

import (
	"context"
	"crypto/ecdsa"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/store/memory"
	"github.com/makwansoran/futrledger/internal/wallet"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLocks struct{}

func (fakeLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}

type fakeLimiter struct {
	deny bool
}

func (f *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return !f.deny, nil
}

func (f *fakeLimiter) Wait(context.Context, string) error { return nil }

type fakeBus struct {
	mu      sync.Mutex
	events  []string
	streams []string
}

func (b *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, channel)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams = append(b.streams, stream)
	return nil
}

func (b *fakeBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeOracle struct {
	prices map[domain.Asset]decimal.Decimal
}

func (o *fakeOracle) GetUSDPrice(_ context.Context, asset domain.Asset) (decimal.Decimal, error) {
	return o.prices[asset], nil
}

type submittedTransfer struct {
	to     string
	amount decimal.Decimal
	asset  domain.Asset
}

type fakeChain struct {
	latest    uint64
	latestErr error
	balances  map[string]decimal.Decimal
	events    []domain.TransferEvent
	eventsErr error
	submitErr error
	submitted []submittedTransfer
}

func (c *fakeChain) LatestBlock(context.Context) (uint64, error) {
	return c.latest, c.latestErr
}

func (c *fakeChain) BalanceOf(_ context.Context, address string, _ domain.Asset) (decimal.Decimal, error) {
	return c.balances[address], nil
}

func (c *fakeChain) TransferEvents(_ context.Context, address string, fromBlock, toBlock uint64) ([]domain.TransferEvent, error) {
	if c.eventsErr != nil {
		return nil, c.eventsErr
	}
	var out []domain.TransferEvent
	for _, ev := range c.events {
		if ev.To == address && ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *fakeChain) SubmitTransfer(_ context.Context, _ *ecdsa.PrivateKey, to string, amount decimal.Decimal, asset domain.Asset) (string, error) {
	if c.submitErr != nil {
		return "", c.submitErr
	}
	c.submitted = append(c.submitted, submittedTransfer{to: to, amount: amount, asset: asset})
	return "0xsubmitted", nil
}

type fakeAlerter struct {
	events []string
}

func (a *fakeAlerter) Notify(_ context.Context, event, _, _ string) error {
	a.events = append(a.events, event)
	return nil
}

// env wires every service onto an in-memory ledger with fakes for the
// external edges.
type env struct {
	ledger  *memory.Ledger
	deriver *wallet.Deriver
	chain   *fakeChain
	oracle  *fakeOracle
	bus     *fakeBus
	limiter *fakeLimiter
	alerter *fakeAlerter

	accounts    *AccountService
	contracts   *ContractService
	orders      *OrderService
	deposits    *DepositService
	withdrawals *WithdrawalService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	deriver, err := wallet.NewDeriver(testMnemonic)
	require.NoError(t, err)

	e := &env{
		ledger:  memory.NewLedger(),
		deriver: deriver,
		chain: &fakeChain{
			latest:   1_000,
			balances: map[string]decimal.Decimal{},
		},
		oracle: &fakeOracle{prices: map[domain.Asset]decimal.Decimal{
			domain.AssetETH:  decimal.NewFromInt(3000),
			domain.AssetUSDC: decimal.NewFromInt(1),
		}},
		bus:     &fakeBus{},
		limiter: &fakeLimiter{},
		alerter: &fakeAlerter{},
	}

	logger := testLogger()
	lockTTL := 10 * time.Second

	e.accounts = NewAccountService(e.ledger, e.deriver, logger)
	e.contracts = NewContractService(e.ledger, fakeLocks{}, e.bus, lockTTL, logger)
	e.orders = NewOrderService(e.ledger, fakeLocks{}, e.limiter, e.bus, 30, time.Minute, lockTTL, logger)
	e.deposits = NewDepositService(e.ledger, e.chain, e.oracle, e.deriver, fakeLocks{}, e.bus, 12, 5_000, lockTTL, logger)
	e.withdrawals = NewWithdrawalService(e.ledger, e.chain, e.oracle, e.deriver, fakeLocks{}, e.bus, e.alerter,
		decimal.NewFromInt(10), lockTTL, logger)

	return e
}

// fund registers the identity and credits cash directly.
func (e *env) fund(t *testing.T, identity string, cash int64) domain.CustodialWallet {
	t.Helper()
	ctx := context.Background()
	w, err := e.accounts.Register(ctx, identity)
	require.NoError(t, err)
	if cash > 0 {
		require.NoError(t, e.ledger.Stores().Balances.Credit(ctx, w.Identity, decimal.NewFromInt(cash)))
	}
	return w
}

func (e *env) newContract(t *testing.T, question string) domain.Contract {
	t.Helper()
	c, err := e.contracts.Create(context.Background(), question, "test", nil)
	require.NoError(t, err)
	return c
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "want %s, got %s", want, got)
}
