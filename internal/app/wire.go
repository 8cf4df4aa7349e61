package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	s3blob "github.com/makwansoran/futrledger/internal/blob/s3"
	"github.com/makwansoran/futrledger/internal/cache/redis"
	"github.com/makwansoran/futrledger/internal/chain"
	"github.com/makwansoran/futrledger/internal/config"
	"github.com/makwansoran/futrledger/internal/domain"
	"github.com/makwansoran/futrledger/internal/notify"
	"github.com/makwansoran/futrledger/internal/oracle"
	"github.com/makwansoran/futrledger/internal/service"
	"github.com/makwansoran/futrledger/internal/store/postgres"
	"github.com/makwansoran/futrledger/internal/wallet"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Durable state
	Ledger domain.Ledger
	Stores domain.Stores

	// Caches and coordination
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Chain and pricing
	Chain       domain.ChainClient
	Oracle      domain.Oracle
	PriceStream *oracle.PriceStream

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
	Relay    *notify.Relay

	// Services facade (nil in archive mode, which only reads the stores)
	Services *service.Ledger
}

// needsLedgerServices returns true for modes that run the trading services and
// therefore need Redis, the chain client, the oracle, and the wallet seed.
func needsLedgerServices(mode string) bool {
	switch mode {
	case "scan", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that export statements to object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (every mode persists or reads the ledger) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	ledger := postgres.NewLedger(pgClient.Pool())
	deps.Ledger = ledger
	deps.Stores = ledger.Stores()

	// --- Notifications (alerts fire from any mode) ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Redis, chain, oracle, wallet, services ---
	if needsLedgerServices(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)

		chainClient, err := chain.New(ctx, chain.Config{
			RPCURL:         cfg.Chain.RPCURL,
			ChainID:        cfg.Chain.ChainID,
			USDCContract:   cfg.Chain.USDCContract,
			GasLimitNative: cfg.Chain.GasLimitNative,
			GasLimitERC20:  cfg.Chain.GasLimitERC20,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.Chain = chainClient

		deps.Oracle = oracle.New(oracle.Config{
			BaseURL:  cfg.Oracle.BaseURL,
			Timeout:  cfg.Oracle.Timeout.Duration,
			PriceTTL: cfg.Oracle.PriceTTL.Duration,
		}, deps.PriceCache, logger)

		if cfg.Oracle.WsURL != "" && len(cfg.Oracle.StreamAssets) > 0 {
			assets := make([]domain.Asset, 0, len(cfg.Oracle.StreamAssets))
			for _, raw := range cfg.Oracle.StreamAssets {
				asset, ok := domain.ParseAsset(raw)
				if !ok {
					cleanup()
					return nil, nil, fmt.Errorf("wire: unknown stream asset %q", raw)
				}
				assets = append(assets, asset)
			}
			deps.PriceStream = oracle.NewPriceStream(cfg.Oracle.WsURL, assets, deps.PriceCache, logger)
		}

		mnemonic, generated, err := wallet.LoadOrCreateSeed(wallet.SeedConfig{
			RawMnemonic:       cfg.Wallet.RawMnemonic,
			EncryptedSeedPath: cfg.Wallet.EncryptedSeedPath,
			SeedPassword:      cfg.Wallet.SeedPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet seed: %w", err)
		}
		if generated {
			// The mnemonic itself is never logged.
			logger.WarnContext(ctx, "generated a new master seed; back up the encrypted seed file",
				slog.String("path", cfg.Wallet.EncryptedSeedPath),
			)
		}
		deriver, err := wallet.NewDeriver(mnemonic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet deriver: %w", err)
		}

		lockTTL := cfg.Ledger.LockTTL.Duration
		accounts := service.NewAccountService(deps.Ledger, deriver, logger)
		contracts := service.NewContractService(deps.Ledger, deps.LockManager, deps.SignalBus, lockTTL, logger)
		orders := service.NewOrderService(
			deps.Ledger, deps.LockManager, deps.RateLimiter, deps.SignalBus,
			cfg.Ledger.OrderRateLimit, cfg.Ledger.OrderRateWindow.Duration, lockTTL, logger,
		)
		deposits := service.NewDepositService(
			deps.Ledger, deps.Chain, deps.Oracle, deriver, deps.LockManager, deps.SignalBus,
			cfg.Chain.Confirmations, cfg.Chain.ScanBlockWindow, lockTTL, logger,
		)
		withdrawals := service.NewWithdrawalService(
			deps.Ledger, deps.Chain, deps.Oracle, deriver, deps.LockManager, deps.SignalBus,
			deps.Notifier, decimal.NewFromFloat(cfg.Ledger.WithdrawalMinUSD), lockTTL, logger,
		)
		deps.Services = service.NewLedger(accounts, contracts, orders, deposits, withdrawals)

		// The relay tails the durable event stream and forwards new ledger
		// events through the notifier.
		deps.Relay = notify.NewRelay(deps.SignalBus, deps.Notifier, logger)
	}

	// --- S3 blob storage (statement exports) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		// Verify the statement bucket up front; a misconfigured bucket
		// should fail startup, not the first export.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.BlobReader,
			deps.Stores.Orders,
			deps.Stores.Deposits,
			deps.Stores.Transactions,
			deps.Stores.Audit,
			logger,
		)
	}

	return deps, cleanup, nil
}
