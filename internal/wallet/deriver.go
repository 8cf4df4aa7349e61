package wallet

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	bip39 "github.com/tyler-smith/go-bip39"

	"github.com/makwansoran/futrledger/internal/domain"
)

// indexSpace bounds derivation indices well inside the non-hardened BIP-32
// range. Collisions map two identities to the same address; at this space
// size the birthday bound stays negligible for realistic user counts.
const indexSpace = 214_748

// bip44Purpose, ethCoinType form the account branch m/44'/60'/0'/0.
const (
	bip44Purpose = 44
	ethCoinType  = 60
)

// Deriver deterministically maps identities to custodial keypairs under a
// single master seed. Construction walks the BIP-44 account branch once; each
// Derive call only performs the final child derivation.
//
// A Deriver holds live key material. Never log or serialize it.
type Deriver struct {
	branch *hdkeychain.ExtendedKey // m/44'/60'/0'/0
}

// NewDeriver builds a Deriver from a BIP-39 mnemonic.
func NewDeriver(mnemonic string) (*Deriver, error) {
	m := normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(m) {
		return nil, fmt.Errorf("wallet: invalid mnemonic: %w", domain.ErrSeedCorrupt)
	}

	seed := bip39.NewSeed(m, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("wallet: deriving master key: %w", err)
	}

	// m/44'/60'/0'/0
	branch := master
	for _, child := range []uint32{
		hdkeychain.HardenedKeyStart + bip44Purpose,
		hdkeychain.HardenedKeyStart + ethCoinType,
		hdkeychain.HardenedKeyStart, // account 0'
		0,                           // external chain
	} {
		branch, err = branch.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("wallet: deriving branch child %d: %w", child, err)
		}
	}

	return &Deriver{branch: branch}, nil
}

// Index maps a normalized identity to its derivation index: the first four
// bytes of SHA-256(identity) as a big-endian integer, mod the index space.
func Index(id domain.Identity) uint32 {
	sum := sha256.Sum256([]byte(id))
	return binary.BigEndian.Uint32(sum[:4]) % indexSpace
}

// Derive returns the custodial wallet and private key for a raw identity.
// The same input always yields the same keypair; distinct identities yield
// distinct keypairs except for hash collisions in the index space.
//
// The returned private key exists only in memory. Callers sign with it and
// drop it; it is never stored.
func (d *Deriver) Derive(raw string) (domain.CustodialWallet, *ecdsa.PrivateKey, error) {
	id, err := domain.NormalizeIdentity(raw)
	if err != nil {
		return domain.CustodialWallet{}, nil, err
	}
	return d.DeriveNormalized(id)
}

// DeriveNormalized is Derive for an already-normalized identity.
func (d *Deriver) DeriveNormalized(id domain.Identity) (domain.CustodialWallet, *ecdsa.PrivateKey, error) {
	child, err := d.branch.Derive(Index(id))
	if err != nil {
		return domain.CustodialWallet{}, nil, fmt.Errorf("wallet: deriving child for identity: %w", err)
	}

	btcPriv, err := child.ECPrivKey()
	if err != nil {
		return domain.CustodialWallet{}, nil, fmt.Errorf("wallet: extracting private key: %w", err)
	}
	priv := btcPriv.ToECDSA()

	addr := ethcrypto.PubkeyToAddress(priv.PublicKey)
	return domain.CustodialWallet{
		Identity: id,
		Address:  addr.Hex(),
	}, priv, nil
}

// Address returns only the deposit address for an identity, discarding the
// private key immediately.
func (d *Deriver) Address(raw string) (string, error) {
	w, _, err := d.Derive(raw)
	if err != nil {
		return "", err
	}
	return w.Address, nil
}
