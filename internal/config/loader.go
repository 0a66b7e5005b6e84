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
// built-in defaults, applies FXBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known FXBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Broker ──
	setStr(&cfg.Broker.BaseURL, "FXBOT_BROKER_BASE_URL")
	setStr(&cfg.Broker.APIKey, "FXBOT_BROKER_API_KEY")
	setStr(&cfg.Broker.AccountID, "FXBOT_BROKER_ACCOUNT_ID")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "FXBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FXBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FXBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FXBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FXBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FXBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FXBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FXBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FXBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FXBOT_POSTGRES_RUN_MIGRATIONS")
	setInt(&cfg.Postgres.ConnAttempts, "FXBOT_POSTGRES_CONN_ATTEMPTS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "FXBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FXBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FXBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FXBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FXBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FXBOT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "FXBOT_REDIS_QUOTE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FXBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FXBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FXBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FXBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FXBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FXBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FXBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FXBOT_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FXBOT_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FXBOT_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FXBOT_ARCHIVE_INTERVAL")

	// ── Engine ──
	setDuration(&cfg.Engine.TickInterval, "FXBOT_ENGINE_TICK_INTERVAL")
	setDuration(&cfg.Engine.ReconcileInterval, "FXBOT_ENGINE_RECONCILE_INTERVAL")
	setInt(&cfg.Engine.Workers, "FXBOT_ENGINE_WORKERS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FXBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FXBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FXBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "FXBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "FXBOT_SERVER_RATE_LIMIT")

	// ── Auth ──
	setStr(&cfg.Auth.Username, "FXBOT_AUTH_USERNAME")
	setStr(&cfg.Auth.PasswordHash, "FXBOT_AUTH_PASSWORD_HASH")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FXBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FXBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FXBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FXBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FXBOT_MODE")
	setStr(&cfg.LogLevel, "FXBOT_LOG_LEVEL")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

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
