// Package config defines the top-level configuration for the custodial ledger
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FUTRLEDGER_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the master-seed custody parameters. The mnemonic itself
// is a secret; prefer encrypted_seed_path over raw_mnemonic outside dev.
type WalletConfig struct {
	RawMnemonic       string `toml:"raw_mnemonic"`
	EncryptedSeedPath string `toml:"encrypted_seed_path"`
	SeedPassword      string `toml:"seed_password"`
}

// ChainConfig holds Ethereum RPC parameters and token contracts.
type ChainConfig struct {
	RPCURL        string `toml:"rpc_url"`
	ChainID       int64  `toml:"chain_id"`
	USDCContract  string `toml:"usdc_contract"`
	Confirmations uint64 `toml:"confirmations"`
	// ScanBlockWindow caps how many blocks one deposit scan covers.
	ScanBlockWindow uint64   `toml:"scan_block_window"`
	ScanInterval    duration `toml:"scan_interval"`
	GasLimitNative  uint64   `toml:"gas_limit_native"`
	GasLimitERC20   uint64   `toml:"gas_limit_erc20"`
}

// OracleConfig holds the external USD price feed parameters.
type OracleConfig struct {
	BaseURL      string   `toml:"base_url"`
	WsURL        string   `toml:"ws_url"`
	Timeout      duration `toml:"timeout"`
	PriceTTL     duration `toml:"price_ttl"`
	StreamAssets []string `toml:"stream_assets"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for statement
// archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// LedgerConfig holds ledger policy parameters.
type LedgerConfig struct {
	// WithdrawalMinUSD rejects dust withdrawals below this notional.
	WithdrawalMinUSD float64 `toml:"withdrawal_min_usd"`
	// OrderRateLimit / OrderRateWindow bound order submissions per identity.
	OrderRateLimit  int      `toml:"order_rate_limit"`
	OrderRateWindow duration `toml:"order_rate_window"`
	// LockTTL bounds how long a per-identity or per-contract lock may be held.
	LockTTL duration `toml:"lock_ttl"`
	// ArchiveRetentionDays controls which records the statement archiver
	// exports (records older than this many days).
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveInterval      duration `toml:"archive_interval"`
}

// NotifyConfig holds operational alarm channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			EncryptedSeedPath: "seed.enc.json",
		},
		Chain: ChainConfig{
			RPCURL:          "http://localhost:8545",
			ChainID:         1,
			Confirmations:   12,
			ScanBlockWindow: 5_000,
			ScanInterval:    duration{30 * time.Second},
			GasLimitNative:  21_000,
			GasLimitERC20:   80_000,
		},
		Oracle: OracleConfig{
			BaseURL:      "https://api.coingecko.com/api/v3",
			WsURL:        "wss://ws-feed.exchange.coinbase.com",
			Timeout:      duration{10 * time.Second},
			PriceTTL:     duration{2 * time.Minute},
			StreamAssets: []string{"ETH"},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "futrledger",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "futrledger-statements",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Ledger: LedgerConfig{
			WithdrawalMinUSD:     10.0,
			OrderRateLimit:       30,
			OrderRateWindow:      duration{time.Minute},
			LockTTL:              duration{15 * time.Second},
			ArchiveRetentionDays: 90,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Notify: NotifyConfig{
			Events: []string{"custodial_shortfall", "withdrawal_failed", "seed_corrupt", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scan":    true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scan, archive, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet — exactly one seed source must be resolvable.
	if c.Wallet.RawMnemonic == "" && c.Wallet.EncryptedSeedPath == "" {
		errs = append(errs, "wallet: either raw_mnemonic or encrypted_seed_path must be set")
	}
	if c.Wallet.EncryptedSeedPath != "" && c.Wallet.RawMnemonic == "" && c.Wallet.SeedPassword == "" {
		errs = append(errs, "wallet: seed_password is required when encrypted_seed_path is the seed source")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if c.Chain.ScanBlockWindow == 0 {
		errs = append(errs, "chain: scan_block_window must be > 0")
	}
	if c.Chain.ScanInterval.Duration <= 0 {
		errs = append(errs, "chain: scan_interval must be > 0")
	}

	// Oracle
	if c.Oracle.BaseURL == "" {
		errs = append(errs, "oracle: base_url must not be empty")
	}
	if c.Oracle.Timeout.Duration <= 0 {
		errs = append(errs, "oracle: timeout must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	// Ledger policy
	if c.Ledger.WithdrawalMinUSD < 0 {
		errs = append(errs, "ledger: withdrawal_min_usd must be >= 0")
	}
	if c.Ledger.OrderRateLimit < 1 {
		errs = append(errs, "ledger: order_rate_limit must be >= 1")
	}
	if c.Ledger.OrderRateWindow.Duration <= 0 {
		errs = append(errs, "ledger: order_rate_window must be > 0")
	}
	if c.Ledger.LockTTL.Duration <= 0 {
		errs = append(errs, "ledger: lock_ttl must be > 0")
	}
	if c.Ledger.ArchiveRetentionDays < 1 {
		errs = append(errs, "ledger: archive_retention_days must be >= 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
