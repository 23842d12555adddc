package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/oraclebot/internal/cache/redis"
	"github.com/alanyoungcy/oraclebot/internal/config"
	"github.com/alanyoungcy/oraclebot/internal/domain"
	"github.com/alanyoungcy/oraclebot/internal/ledger"
	"github.com/alanyoungcy/oraclebot/internal/metric"
	"github.com/alanyoungcy/oraclebot/internal/notify"
	"github.com/alanyoungcy/oraclebot/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	MarketStore domain.MarketStore
	Gateway     domain.LedgerGateway
	Registry    *metric.Registry
	Leases      domain.LeaseManager
	Samples     domain.SampleCache
	Notifier    *notify.Notifier
}

// needsRedis returns true for modes that use the lease or the sample cache.
// The one-shot modes talk only to Postgres and the ledger.
func needsRedis(mode string) bool {
	return strings.ToLower(mode) == "worker"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.MarketStore = postgres.NewMarketStore(pgClient.Pool())

	// --- Redis (worker mode only) ---
	if needsRedis(cfg.Mode) {
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

		deps.Leases = redis.NewLeaseManager(redisClient)
		deps.Samples = redis.NewSampleCache(redisClient)
	}

	// --- Ledger gateway ---
	deps.Gateway = ledger.New(ledger.ClientConfig{
		NodeURL:     cfg.Aleo.NodeURL,
		ExecutorURL: cfg.Aleo.ExecutorURL,
		ProgramID:   cfg.Aleo.ProgramID,
		PrivateKey:  cfg.Aleo.PrivateKey,
		PriorityFee: cfg.Aleo.PriorityFee,
	})

	// --- Metric providers ---
	deps.Registry = metric.NewRegistry(
		metric.NewEthPriceProvider(cfg.Metrics.CoinGeckoHost),
		metric.NewStablecoinPegProvider(cfg.Metrics.CoinGeckoHost),
		metric.NewBTCDominanceProvider(cfg.Metrics.CoinGeckoHost),
		metric.NewGasPriceProvider(cfg.Metrics.EtherscanHost, cfg.Metrics.EtherscanAPIKey),
		metric.NewEthStakingRateProvider(cfg.Metrics.EtherscanHost, cfg.Metrics.BeaconchainHost, cfg.Metrics.EtherscanAPIKey),
		metric.NewFearGreedProvider(cfg.Metrics.FearGreedHost),
	)

	// --- Notifications ---
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

	return deps, cleanup, nil
}
