package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FUTRLEDGER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FUTRLEDGER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.RawMnemonic, "FUTRLEDGER_WALLET_RAW_MNEMONIC")
	setStr(&cfg.Wallet.EncryptedSeedPath, "FUTRLEDGER_WALLET_ENCRYPTED_SEED_PATH")
	setStr(&cfg.Wallet.SeedPassword, "FUTRLEDGER_WALLET_SEED_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "FUTRLEDGER_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "FUTRLEDGER_CHAIN_ID")
	setStr(&cfg.Chain.USDCContract, "FUTRLEDGER_CHAIN_USDC_CONTRACT")
	setUint64(&cfg.Chain.Confirmations, "FUTRLEDGER_CHAIN_CONFIRMATIONS")
	setUint64(&cfg.Chain.ScanBlockWindow, "FUTRLEDGER_CHAIN_SCAN_BLOCK_WINDOW")
	setDuration(&cfg.Chain.ScanInterval, "FUTRLEDGER_CHAIN_SCAN_INTERVAL")
	setUint64(&cfg.Chain.GasLimitNative, "FUTRLEDGER_CHAIN_GAS_LIMIT_NATIVE")
	setUint64(&cfg.Chain.GasLimitERC20, "FUTRLEDGER_CHAIN_GAS_LIMIT_ERC20")

	// ── Oracle ──
	setStr(&cfg.Oracle.BaseURL, "FUTRLEDGER_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.WsURL, "FUTRLEDGER_ORACLE_WS_URL")
	setDuration(&cfg.Oracle.Timeout, "FUTRLEDGER_ORACLE_TIMEOUT")
	setDuration(&cfg.Oracle.PriceTTL, "FUTRLEDGER_ORACLE_PRICE_TTL")
	setStringSlice(&cfg.Oracle.StreamAssets, "FUTRLEDGER_ORACLE_STREAM_ASSETS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FUTRLEDGER_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "FUTRLEDGER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FUTRLEDGER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FUTRLEDGER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FUTRLEDGER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FUTRLEDGER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FUTRLEDGER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FUTRLEDGER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FUTRLEDGER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FUTRLEDGER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FUTRLEDGER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FUTRLEDGER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FUTRLEDGER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FUTRLEDGER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FUTRLEDGER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FUTRLEDGER_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "FUTRLEDGER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FUTRLEDGER_S3_REGION")
	setStr(&cfg.S3.Bucket, "FUTRLEDGER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FUTRLEDGER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FUTRLEDGER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FUTRLEDGER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FUTRLEDGER_S3_FORCE_PATH_STYLE")

	// ── Ledger ──
	setFloat64(&cfg.Ledger.WithdrawalMinUSD, "FUTRLEDGER_LEDGER_WITHDRAWAL_MIN_USD")
	setInt(&cfg.Ledger.OrderRateLimit, "FUTRLEDGER_LEDGER_ORDER_RATE_LIMIT")
	setDuration(&cfg.Ledger.OrderRateWindow, "FUTRLEDGER_LEDGER_ORDER_RATE_WINDOW")
	setDuration(&cfg.Ledger.LockTTL, "FUTRLEDGER_LEDGER_LOCK_TTL")
	setInt(&cfg.Ledger.ArchiveRetentionDays, "FUTRLEDGER_LEDGER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Ledger.ArchiveInterval, "FUTRLEDGER_LEDGER_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FUTRLEDGER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FUTRLEDGER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FUTRLEDGER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FUTRLEDGER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FUTRLEDGER_MODE")
	setStr(&cfg.LogLevel, "FUTRLEDGER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
