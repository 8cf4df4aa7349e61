package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.SeedPassword = "pw"
	return cfg
}

func TestDefaults_Validate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.Redis.Addr = ""
	cfg.Ledger.OrderRateLimit = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "order_rate_limit")
}

func TestValidate_SeedSourceRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet = WalletConfig{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_mnemonic or encrypted_seed_path")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FUTRLEDGER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("FUTRLEDGER_LEDGER_WITHDRAWAL_MIN_USD", "25")
	t.Setenv("FUTRLEDGER_CHAIN_SCAN_INTERVAL", "90s")
	t.Setenv("FUTRLEDGER_MODE", "scan")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 25.0, cfg.Ledger.WithdrawalMinUSD)
	assert.Equal(t, "90s", cfg.Chain.ScanInterval.Duration.String())
	assert.Equal(t, "scan", cfg.Mode)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.RawMnemonic = "abandon abandon about"
	cfg.Postgres.Password = "hunter2"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Wallet.RawMnemonic)
	assert.Equal(t, "***", red.Wallet.SeedPassword)
	assert.Equal(t, "***", red.Postgres.Password)
	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
