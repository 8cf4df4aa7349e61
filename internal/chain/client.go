// Package chain implements domain.ChainClient over a JSON-RPC Ethereum
// endpoint using go-ethereum.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/makwansoran/futrledger/internal/domain"
)

// transferTopic is keccak256("Transfer(address,address,uint256)"), the topic0
// of every ERC-20 Transfer log.
var transferTopic = common.BytesToHash(ethcrypto.Keccak256([]byte("Transfer(address,address,uint256)")))

// erc20 function selectors.
var (
	balanceOfSelector = ethcrypto.Keccak256([]byte("balanceOf(address)"))[:4]
	transferSelector  = ethcrypto.Keccak256([]byte("transfer(address,uint256)"))[:4]
)

// Config holds connection parameters for the chain client.
type Config struct {
	RPCURL         string
	ChainID        int64
	USDCContract   string
	GasLimitNative uint64
	GasLimitERC20  uint64
}

// Client talks to one EVM chain. It resolves USDC transfers against the
// configured token contract and treats everything else as native ETH.
type Client struct {
	eth      *ethclient.Client
	chainID  *big.Int
	usdc     common.Address
	gasLimit map[domain.Asset]uint64
}

// New dials the RPC endpoint and verifies it serves the configured chain.
func New(ctx context.Context, cfg Config) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("chain: endpoint serves chain %d, configured for %d", chainID.Int64(), cfg.ChainID)
	}

	return &Client{
		eth:     eth,
		chainID: chainID,
		usdc:    common.HexToAddress(cfg.USDCContract),
		gasLimit: map[domain.Asset]uint64{
			domain.AssetETH:  cfg.GasLimitNative,
			domain.AssetUSDC: cfg.GasLimitERC20,
		},
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// LatestBlock returns the current head block number.
func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: latest block: %w", err)
	}
	return n, nil
}

// BalanceOf returns the address's balance in native asset units.
func (c *Client) BalanceOf(ctx context.Context, address string, asset domain.Asset) (decimal.Decimal, error) {
	addr := common.HexToAddress(address)

	if asset.Native() {
		wei, err := c.eth.BalanceAt(ctx, addr, nil)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("chain: balance of %s: %w", address, err)
		}
		return fromBaseUnits(wei, asset.Decimals()), nil
	}

	data := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(addr.Bytes(), 32)...)
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.usdc, Data: data}, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("chain: erc20 balance of %s: %w", address, err)
	}
	return fromBaseUnits(new(big.Int).SetBytes(out), asset.Decimals()), nil
}

// TransferEvents returns USDC Transfer logs and native ETH transfers addressed
// to the given address within [fromBlock, toBlock]. Native transfers require
// walking block bodies, so callers must keep the window bounded.
func (c *Client) TransferEvents(ctx context.Context, address string, fromBlock, toBlock uint64) ([]domain.TransferEvent, error) {
	addr := common.HexToAddress(address)

	events, err := c.erc20Transfers(ctx, addr, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}

	native, err := c.nativeTransfers(ctx, addr, fromBlock, toBlock)
	if err != nil {
		return nil, err
	}
	return append(events, native...), nil
}

func (c *Client) erc20Transfers(ctx context.Context, addr common.Address, fromBlock, toBlock uint64) ([]domain.TransferEvent, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.usdc},
		Topics: [][]common.Hash{
			{transferTopic},
			nil, // any sender
			{common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))},
		},
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chain: filter transfer logs: %w", err)
	}

	timestamps := map[uint64]uint64{}
	var events []domain.TransferEvent
	for _, lg := range logs {
		if len(lg.Topics) < 3 || len(lg.Data) == 0 {
			continue
		}

		ts, ok := timestamps[lg.BlockNumber]
		if !ok {
			header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(lg.BlockNumber))
			if err != nil {
				return nil, fmt.Errorf("chain: header %d: %w", lg.BlockNumber, err)
			}
			ts = header.Time
			timestamps[lg.BlockNumber] = ts
		}

		events = append(events, domain.TransferEvent{
			TxHash:      lg.TxHash.Hex(),
			Asset:       domain.AssetUSDC,
			From:        common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
			To:          addr.Hex(),
			Amount:      fromBaseUnits(new(big.Int).SetBytes(lg.Data), domain.AssetUSDC.Decimals()),
			BlockNumber: lg.BlockNumber,
			Timestamp:   timeFromUnix(ts),
		})
	}
	return events, nil
}

func (c *Client) nativeTransfers(ctx context.Context, addr common.Address, fromBlock, toBlock uint64) ([]domain.TransferEvent, error) {
	var events []domain.TransferEvent
	for n := fromBlock; n <= toBlock; n++ {
		block, err := c.eth.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fmt.Errorf("chain: block %d: %w", n, err)
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != addr || tx.Value().Sign() <= 0 {
				continue
			}
			from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
			if err != nil {
				continue
			}
			events = append(events, domain.TransferEvent{
				TxHash:      tx.Hash().Hex(),
				Asset:       domain.AssetETH,
				From:        from.Hex(),
				To:          addr.Hex(),
				Amount:      fromBaseUnits(tx.Value(), domain.AssetETH.Decimals()),
				BlockNumber: n,
				Timestamp:   timeFromUnix(block.Time()),
			})
		}
	}
	return events, nil
}

// SubmitTransfer signs and broadcasts a transfer from the key's address. It
// returns the transaction hash on submission, not confirmation.
func (c *Client) SubmitTransfer(ctx context.Context, key *ecdsa.PrivateKey, to string, amount decimal.Decimal, asset domain.Asset) (string, error) {
	from := ethcrypto.PubkeyToAddress(key.PublicKey)
	toAddr := common.HexToAddress(to)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("chain: nonce for %s: %w", from.Hex(), err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: gas price: %w", err)
	}

	value := toBaseUnits(amount, asset.Decimals())

	var tx *types.Transaction
	if asset.Native() {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &toAddr,
			Value:    value,
			Gas:      c.gasLimit[asset],
			GasPrice: gasPrice,
		})
	} else {
		data := append(append([]byte{}, transferSelector...),
			append(common.LeftPadBytes(toAddr.Bytes(), 32), common.LeftPadBytes(value.Bytes(), 32)...)...)
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       &c.usdc,
			Value:    big.NewInt(0),
			Gas:      c.gasLimit[asset],
			GasPrice: gasPrice,
			Data:     data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return "", fmt.Errorf("chain: sign transfer: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send transfer: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func timeFromUnix(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC()
}

// fromBaseUnits converts an integer amount in the asset's smallest unit to a
// decimal in whole-asset units.
func fromBaseUnits(n *big.Int, decimals int32) decimal.Decimal {
	return decimal.NewFromBigInt(n, -decimals)
}

// toBaseUnits converts a whole-asset decimal to an integer amount in the
// asset's smallest unit, truncating sub-unit dust.
func toBaseUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).Truncate(0).BigInt()
}

// Compile-time interface check.
var _ domain.ChainClient = (*Client)(nil)
