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
// built-in defaults, applies ORACLE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known ORACLE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Aleo ──
	setStr(&cfg.Aleo.NodeURL, "ORACLE_ALEO_NODE_URL")
	setStr(&cfg.Aleo.ExecutorURL, "ORACLE_ALEO_EXECUTOR_URL")
	setStr(&cfg.Aleo.ProgramID, "ORACLE_ALEO_PROGRAM_ID")
	setStr(&cfg.Aleo.PrivateKey, "ORACLE_ALEO_PRIVATE_KEY")
	setUint64(&cfg.Aleo.PriorityFee, "ORACLE_ALEO_PRIORITY_FEE")

	// ── Database ──
	setStr(&cfg.Database.DSN, "ORACLE_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "ORACLE_DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "ORACLE_DATABASE_HOST")
	setInt(&cfg.Database.Port, "ORACLE_DATABASE_PORT")
	setStr(&cfg.Database.Database, "ORACLE_DATABASE_NAME")
	setStr(&cfg.Database.User, "ORACLE_DATABASE_USER")
	setStr(&cfg.Database.Password, "ORACLE_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "ORACLE_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "ORACLE_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "ORACLE_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "ORACLE_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORACLE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORACLE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORACLE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORACLE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORACLE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORACLE_REDIS_TLS_ENABLED")

	// ── Metrics ──
	setStr(&cfg.Metrics.CoinGeckoHost, "ORACLE_METRICS_COINGECKO_HOST")
	setStr(&cfg.Metrics.EtherscanHost, "ORACLE_METRICS_ETHERSCAN_HOST")
	setStr(&cfg.Metrics.EtherscanAPIKey, "ORACLE_METRICS_ETHERSCAN_API_KEY")
	setStr(&cfg.Metrics.BeaconchainHost, "ORACLE_METRICS_BEACONCHAIN_HOST")
	setStr(&cfg.Metrics.FearGreedHost, "ORACLE_METRICS_FEARGREED_HOST")

	// ── Scheduler ──
	setDuration(&cfg.Scheduler.Interval, "ORACLE_SCHEDULER_INTERVAL")
	setDuration(&cfg.Scheduler.OpTimeout, "ORACLE_SCHEDULER_OP_TIMEOUT")
	setStr(&cfg.Scheduler.LeaseKey, "ORACLE_SCHEDULER_LEASE_KEY")
	setDuration(&cfg.Scheduler.LeaseTTL, "ORACLE_SCHEDULER_LEASE_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ORACLE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ORACLE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ORACLE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ORACLE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ORACLE_MODE")
	setStr(&cfg.LogLevel, "ORACLE_LOG_LEVEL")
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

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
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
