// Package config defines the top-level configuration for the resolution
// oracle and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ORACLE_* environment variables.
type Config struct {
	Aleo      AleoConfig      `toml:"aleo"`
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// AleoConfig holds the ledger endpoints and submission credentials.
type AleoConfig struct {
	// NodeURL is the REST endpoint used for mapping reads, e.g.
	// "https://api.explorer.provable.com/v1/testnet".
	NodeURL string `toml:"node_url"`
	// ExecutorURL is the transaction execution service that signs and
	// broadcasts program calls on the oracle's behalf.
	ExecutorURL string `toml:"executor_url"`
	ProgramID   string `toml:"program_id"`
	PrivateKey  string `toml:"private_key"`
	// PriorityFee in microcredits, added to every submitted transaction.
	PriorityFee uint64 `toml:"priority_fee"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
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

// MetricsConfig holds the upstream endpoints and credentials for metric
// providers. Host overrides exist mostly for tests and self-hosted mirrors;
// the defaults point at the public APIs.
type MetricsConfig struct {
	CoinGeckoHost   string `toml:"coingecko_host"`
	EtherscanHost   string `toml:"etherscan_host"`
	EtherscanAPIKey string `toml:"etherscan_api_key"`
	BeaconchainHost string `toml:"beaconchain_host"`
	FearGreedHost   string `toml:"feargreed_host"`
}

// SchedulerConfig holds lifecycle scheduler parameters.
type SchedulerConfig struct {
	// Interval between ticks.
	Interval duration `toml:"interval"`
	// OpTimeout bounds each individual fetch, store, and ledger call.
	OpTimeout duration `toml:"op_timeout"`
	// LeaseKey names the Redis lease guarding single-instance operation.
	LeaseKey string `toml:"lease_key"`
	// LeaseTTL is how long the lease survives without renewal. Renewal
	// happens at a third of this value.
	LeaseTTL duration `toml:"lease_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
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
		Aleo: AleoConfig{
			NodeURL:     "https://api.explorer.provable.com/v1/testnet",
			ExecutorURL: "http://localhost:3030",
			ProgramID:   "prediction_market.aleo",
			PriorityFee: 0,
		},
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "oracle",
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
		Metrics: MetricsConfig{
			CoinGeckoHost:   "https://api.coingecko.com/api/v3",
			EtherscanHost:   "https://api.etherscan.io/api",
			BeaconchainHost: "https://beaconcha.in/api/v1",
			FearGreedHost:   "https://api.alternative.me",
		},
		Scheduler: SchedulerConfig{
			Interval:  duration{5 * time.Minute},
			OpTimeout: duration{30 * time.Second},
			LeaseKey:  "oracle-scheduler",
			LeaseTTL:  duration{90 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"market_locked", "market_resolved", "lock_failed", "resolve_failed", "config_defect"},
		},
		Mode:     "worker",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"worker": true,
	"sync":   true,
	"create": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: worker, sync, create)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Aleo
	if c.Aleo.NodeURL == "" {
		errs = append(errs, "aleo: node_url must not be empty")
	}
	if c.Aleo.ProgramID == "" {
		errs = append(errs, "aleo: program_id must not be empty")
	}
	// Worker and create modes submit transactions; sync only reads.
	if c.Mode == "worker" || c.Mode == "create" {
		if c.Aleo.ExecutorURL == "" {
			errs = append(errs, "aleo: executor_url is required for mode "+c.Mode)
		}
		if c.Aleo.PrivateKey == "" {
			errs = append(errs, "aleo: private_key is required for mode "+c.Mode)
		}
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Metrics
	if c.Metrics.CoinGeckoHost == "" {
		errs = append(errs, "metrics: coingecko_host must not be empty")
	}
	if c.Metrics.EtherscanHost == "" {
		errs = append(errs, "metrics: etherscan_host must not be empty")
	}

	// Scheduler
	if c.Scheduler.Interval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("scheduler: interval must be >= 1s, got %s", c.Scheduler.Interval.Duration))
	}
	if c.Scheduler.OpTimeout.Duration <= 0 {
		errs = append(errs, "scheduler: op_timeout must be > 0")
	}
	if c.Scheduler.LeaseKey == "" {
		errs = append(errs, "scheduler: lease_key must not be empty")
	}
	if c.Scheduler.LeaseTTL.Duration < 3*time.Second {
		errs = append(errs, fmt.Sprintf("scheduler: lease_ttl must be >= 3s, got %s", c.Scheduler.LeaseTTL.Duration))
	}

	// Notify — both Telegram fields must be set together, or neither.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
