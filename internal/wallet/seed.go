// Package wallet provides master-seed custody and deterministic derivation of
// per-user custodial keypairs.
//
// The master mnemonic is the single point of custody for all user funds. It is
// generated once from secure entropy, stored only in encrypted form
// (PBKDF2-HMAC-SHA256 key derivation + AES-256-GCM), and must never be logged,
// transmitted, or exposed through any API.
package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	bip39 "github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/pbkdf2"

	"github.com/makwansoran/futrledger/internal/domain"
)

const (
	// pbkdf2Iterations is the OWASP-recommended minimum for HMAC-SHA256.
	pbkdf2Iterations = 480_000
	// saltLen is the random salt length in bytes.
	saltLen = 16
	// aesKeyLen is the derived AES-256 key length.
	aesKeyLen = 32
	// currentVersion is the encrypted-seed JSON schema version.
	currentVersion = 1
	// entropyBits sizes freshly generated mnemonics (24 words).
	entropyBits = 256
)

// encryptedSeedJSON is the on-disk format for an encrypted master mnemonic.
type encryptedSeedJSON struct {
	Version    int    `json:"version"`
	Salt       string `json:"salt"`       // base64 standard encoding
	Nonce      string `json:"nonce"`      // base64 standard encoding
	Ciphertext string `json:"ciphertext"` // base64 standard encoding
}

// SeedConfig carries the information LoadOrCreateSeed needs to resolve the
// master mnemonic. Populate the fields from environment variables or a config
// file.
type SeedConfig struct {
	// RawMnemonic is a plaintext BIP-39 mnemonic. If non-empty it is used
	// directly (intended for development only).
	RawMnemonic string

	// EncryptedSeedPath is the path of the encrypted seed file. If the file
	// does not exist a fresh mnemonic is generated and written there.
	EncryptedSeedPath string

	// SeedPassword encrypts/decrypts the file at EncryptedSeedPath.
	SeedPassword string
}

// EncryptSeed encrypts a BIP-39 mnemonic with a password using
// PBKDF2-HMAC-SHA256 key derivation and AES-256-GCM authenticated encryption.
// It returns the JSON blob suitable for writing to disk.
func EncryptSeed(mnemonic, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("wallet: password must not be empty")
	}
	if !bip39.IsMnemonicValid(normalizeMnemonic(mnemonic)) {
		return nil, fmt.Errorf("wallet: not a valid BIP-39 mnemonic")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("wallet: generating salt: %w", err)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return nil, fmt.Errorf("wallet: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("wallet: creating GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("wallet: generating nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(normalizeMnemonic(mnemonic)), nil)

	out := encryptedSeedJSON{
		Version:    currentVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return json.MarshalIndent(out, "", "  ")
}

// DecryptSeed decrypts a JSON blob produced by EncryptSeed, returning the
// plaintext mnemonic. Tampered or unreadable blobs surface ErrSeedCorrupt:
// continuing with wrong custody data is never acceptable.
func DecryptSeed(encryptedJSON []byte, password string) (string, error) {
	if password == "" {
		return "", errors.New("wallet: password must not be empty")
	}

	var stored encryptedSeedJSON
	if err := json.Unmarshal(encryptedJSON, &stored); err != nil {
		return "", fmt.Errorf("wallet: parsing encrypted seed JSON: %w", domain.ErrSeedCorrupt)
	}
	if stored.Version != currentVersion {
		return "", fmt.Errorf("wallet: unsupported seed version %d: %w", stored.Version, domain.ErrSeedCorrupt)
	}

	salt, err := base64.StdEncoding.DecodeString(stored.Salt)
	if err != nil {
		return "", fmt.Errorf("wallet: decoding salt: %w", domain.ErrSeedCorrupt)
	}
	nonce, err := base64.StdEncoding.DecodeString(stored.Nonce)
	if err != nil {
		return "", fmt.Errorf("wallet: decoding nonce: %w", domain.ErrSeedCorrupt)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(stored.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("wallet: decoding ciphertext: %w", domain.ErrSeedCorrupt)
	}

	derivedKey := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("wallet: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("wallet: creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("wallet: decryption failed (wrong password?): %w", domain.ErrSeedCorrupt)
	}

	mnemonic := string(plaintext)
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", fmt.Errorf("wallet: decrypted payload is not a mnemonic: %w", domain.ErrSeedCorrupt)
	}

	return mnemonic, nil
}

// LoadOrCreateSeed resolves the master mnemonic.
//
// Resolution order:
//  1. If RawMnemonic is set, validate and return it.
//  2. If the encrypted seed file exists, decrypt it with SeedPassword.
//  3. Otherwise generate a fresh mnemonic from secure entropy, persist it
//     encrypted at EncryptedSeedPath (mode 0600), and return it.
//
// The returned bool is true when a new seed was generated.
func LoadOrCreateSeed(cfg SeedConfig) (string, bool, error) {
	if cfg.RawMnemonic != "" {
		m := normalizeMnemonic(cfg.RawMnemonic)
		if !bip39.IsMnemonicValid(m) {
			return "", false, fmt.Errorf("wallet: raw mnemonic invalid: %w", domain.ErrSeedCorrupt)
		}
		return m, false, nil
	}

	if cfg.EncryptedSeedPath == "" {
		return "", false, errors.New("wallet: no seed source configured (set raw mnemonic or encrypted seed path)")
	}

	data, err := os.ReadFile(cfg.EncryptedSeedPath)
	switch {
	case err == nil:
		m, decErr := DecryptSeed(data, cfg.SeedPassword)
		if decErr != nil {
			return "", false, decErr
		}
		return m, false, nil

	case errors.Is(err, os.ErrNotExist):
		entropy, entErr := bip39.NewEntropy(entropyBits)
		if entErr != nil {
			return "", false, fmt.Errorf("wallet: generating entropy: %w", entErr)
		}
		mnemonic, mnErr := bip39.NewMnemonic(entropy)
		if mnErr != nil {
			return "", false, fmt.Errorf("wallet: generating mnemonic: %w", mnErr)
		}

		blob, encErr := EncryptSeed(mnemonic, cfg.SeedPassword)
		if encErr != nil {
			return "", false, encErr
		}
		if wErr := os.WriteFile(cfg.EncryptedSeedPath, blob, 0o600); wErr != nil {
			return "", false, fmt.Errorf("wallet: writing seed file: %w", wErr)
		}
		return mnemonic, true, nil

	default:
		return "", false, fmt.Errorf("wallet: reading seed file: %w", err)
	}
}

func normalizeMnemonic(m string) string {
	return strings.Join(strings.Fields(strings.ToLower(m)), " ")
}
