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
// built-in defaults, applies ENGINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known ENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setBool(&cfg.Principal.RequireHexAddress, "ENGINE_PRINCIPAL_REQUIRE_HEX_ADDRESS")

	setStr(&cfg.Postgres.DSN, "ENGINE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ENGINE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ENGINE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ENGINE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ENGINE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ENGINE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ENGINE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ENGINE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ENGINE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ENGINE_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "ENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ENGINE_REDIS_TLS_ENABLED")

	setStr(&cfg.S3.Endpoint, "ENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ENGINE_S3_FORCE_PATH_STYLE")

	setUint64(&cfg.Engine.MinStake, "ENGINE_MIN_STAKE")
	setUint64(&cfg.Engine.MaxStake, "ENGINE_MAX_STAKE")
	setUint64(&cfg.Engine.FeeBP, "ENGINE_FEE_BP")
	setUint64(&cfg.Engine.SmoothBP, "ENGINE_SMOOTH_BP")
	setUint64(&cfg.Engine.ClampLowBP, "ENGINE_CLAMP_LOW_BP")
	setUint64(&cfg.Engine.ClampHighBP, "ENGINE_CLAMP_HIGH_BP")
	setDuration(&cfg.Engine.ArchiveAfter, "ENGINE_ARCHIVE_AFTER")
	setStr(&cfg.Engine.ArchiveCron, "ENGINE_ARCHIVE_CRON")

	setBool(&cfg.Server.Enabled, "ENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ENGINE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ENGINE_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "ENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ENGINE_NOTIFY_EVENTS")

	setStr(&cfg.Mode, "ENGINE_MODE")
	setStr(&cfg.LogLevel, "ENGINE_LOG_LEVEL")
}

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
