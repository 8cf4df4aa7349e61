package chain

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makwansoran/futrledger/internal/domain"
)

func TestTransferTopic(t *testing.T) {
	// Canonical ERC-20 Transfer event signature hash.
	assert.Equal(t,
		"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		transferTopic.Hex())
}

func TestBaseUnitConversion(t *testing.T) {
	wei, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	assert.True(t, fromBaseUnits(wei, domain.AssetETH.Decimals()).Equal(decimal.RequireFromString("1.5")))

	usdc := big.NewInt(2_500_000)
	assert.True(t, fromBaseUnits(usdc, domain.AssetUSDC.Decimals()).Equal(decimal.RequireFromString("2.5")))

	back := toBaseUnits(decimal.RequireFromString("1.5"), domain.AssetETH.Decimals())
	assert.Equal(t, wei.String(), back.String())

	// Sub-unit dust truncates instead of rounding up.
	dust := toBaseUnits(decimal.RequireFromString("0.0000019"), domain.AssetUSDC.Decimals())
	assert.Equal(t, "1", dust.String())
}
