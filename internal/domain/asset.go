package domain

import "strings"

// Asset identifies a supported fungible asset on the configured chain.
type Asset string

const (
	AssetETH  Asset = "ETH"
	AssetUSDC Asset = "USDC"
)

// ParseAsset normalizes an asset symbol. Unknown symbols return ErrNotFound
// via the zero Asset and false.
func ParseAsset(s string) (Asset, bool) {
	switch Asset(strings.ToUpper(strings.TrimSpace(s))) {
	case AssetETH:
		return AssetETH, true
	case AssetUSDC:
		return AssetUSDC, true
	default:
		return "", false
	}
}

// Decimals returns the on-chain decimal precision for the asset.
func (a Asset) Decimals() int32 {
	switch a {
	case AssetUSDC:
		return 6
	default:
		return 18
	}
}

// Native reports whether the asset is the chain's native coin (transferred by
// value) rather than an ERC-20 token (transferred by contract call).
func (a Asset) Native() bool {
	return a == AssetETH
}
