package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

// d is a test helper for creating decimals from strings.
func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func contract(buy, sell string) domain.Contract {
	return domain.Contract{ID: "c1", BuyVolume: d(buy), SellVolume: d(sell)}
}

func TestPrice(t *testing.T) {
	tests := []struct {
		name       string
		buy, sell  string
		wantPrice  string
	}{
		{"zero volume baseline", "0", "0", "1"},
		{"hundred dollars of buys", "100", "0", "1.01"},
		{"balanced flow", "500", "500", "1"},
		{"net sell pressure", "0", "250", "0.975"},
		{"floor clamp", "0", "99999999", "0.01"},
		{"ceiling clamp", "99999999", "0", "100"},
		{"one cent per hundred dollars", "300", "100", "1.02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Price(d(tt.buy), d(tt.sell))
			assert.True(t, got.Equal(d(tt.wantPrice)),
				"Price(%s,%s) = %s, want %s", tt.buy, tt.sell, got, tt.wantPrice)
		})
	}
}

func TestPrice_MonotonicInNetFlow(t *testing.T) {
	prev := Price(d("0"), d("0"))
	for _, buy := range []string{"100", "500", "2000", "9000"} {
		p := Price(d(buy), d("0"))
		assert.True(t, p.GreaterThan(prev), "price should rise with net buys: %s vs %s", p, prev)
		prev = p
	}
}

func TestQuoteBuy(t *testing.T) {
	q, err := QuoteBuy(contract("0", "0"), d("100"))
	require.NoError(t, err)

	assert.True(t, q.Price.Equal(d("1")))
	assert.True(t, q.Contracts.Equal(d("100")), "got %s contracts", q.Contracts)
	assert.True(t, q.USD.Equal(d("100")))
}

func TestQuoteBuy_FractionalContracts(t *testing.T) {
	q, err := QuoteBuy(contract("100", "0"), d("50"))
	require.NoError(t, err)

	// 50 / 1.01 — fractional fills are allowed.
	assert.True(t, q.Price.Equal(d("1.01")))
	assert.True(t, q.Contracts.Equal(d("50").DivRound(d("1.01"), 12)))
}

func TestQuoteBuy_RejectsNonPositive(t *testing.T) {
	for _, amt := range []string{"0", "-5"} {
		_, err := QuoteBuy(contract("0", "0"), d(amt))
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", amt)
	}
}

func TestQuoteSell_RejectsNonPositive(t *testing.T) {
	_, err := QuoteSell(contract("0", "0"), d("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

// TestBuyThenSellScenario walks the canonical flow: an empty contract, a $100
// buy, then a 50-contract sell, checking every intermediate value.
func TestBuyThenSellScenario(t *testing.T) {
	c := contract("0", "0")
	require.True(t, Price(c.BuyVolume, c.SellVolume).Equal(d("1")))

	// Buy $100 at 1.00 → 100 contracts, buyVolume 100, price 1.01.
	buyQ, err := QuoteBuy(c, d("100"))
	require.NoError(t, err)
	assert.True(t, buyQ.Contracts.Equal(d("100")))

	c.BuyVolume = c.BuyVolume.Add(buyQ.USD)
	assert.True(t, Price(c.BuyVolume, c.SellVolume).Equal(d("1.01")))

	// Sell 50 contracts at 1.01 → proceeds 50.50, sellVolume 50.50.
	sellQ, err := QuoteSell(c, d("50"))
	require.NoError(t, err)
	assert.True(t, sellQ.USD.Equal(d("50.50")), "proceeds = %s", sellQ.USD)

	c.SellVolume = c.SellVolume.Add(sellQ.USD)

	// New price: clamp(1 + (100 - 50.50)/10000) = 1.00495.
	assert.True(t, Price(c.BuyVolume, c.SellVolume).Equal(d("1.00495")),
		"got %s", Price(c.BuyVolume, c.SellVolume))
}

// TestVolumeConservation checks that for any order sequence the price is a
// pure function of the running signed notional sum.
func TestVolumeConservation(t *testing.T) {
	c := contract("0", "0")
	net := decimal.Zero

	orders := []struct {
		side string
		amt  string
	}{
		{"buy", "250"}, {"buy", "30"}, {"sell", "12"}, {"buy", "1000"}, {"sell", "400"},
	}
	for _, o := range orders {
		if o.side == "buy" {
			q, err := QuoteBuy(c, d(o.amt))
			require.NoError(t, err)
			c.BuyVolume = c.BuyVolume.Add(q.USD)
			net = net.Add(q.USD)
		} else {
			q, err := QuoteSell(c, d(o.amt))
			require.NoError(t, err)
			c.SellVolume = c.SellVolume.Add(q.USD)
			net = net.Sub(q.USD)
		}

		want := d("1").Add(net.DivRound(d("10000"), 12))
		assert.True(t, Price(c.BuyVolume, c.SellVolume).Equal(want),
			"after %s %s: price %s, want %s", o.side, o.amt, Price(c.BuyVolume, c.SellVolume), want)
		assert.True(t, c.BuyVolume.Sub(c.SellVolume).Equal(net))
	}
}
