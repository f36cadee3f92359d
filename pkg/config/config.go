package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/vault-client-go"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	AppEnv     string `mapstructure:"APP_ENV"`
	AppName    string `mapstructure:"APP_NAME" validate:"required"`
	AppVersion string `mapstructure:"APP_VERSION"`
	NodeID     int64  `mapstructure:"NODE_ID" validate:"gte=0,lte=1023"`
	TLS        struct {
		Enable   bool   `mapstructure:"ENABLE"`
		CertPath string `mapstructure:"CERT_PATH"`
		KeyPath  string `mapstructure:"KEY_PATH"`
	} `mapstructure:"TLS"`
	Server struct {
		Addr         string        `mapstructure:"ADDR" validate:"required"`
		ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
		WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
		IdleTimeout  time.Duration `mapstructure:"IDLE_TIMEOUT"`
	} `mapstructure:"HTTP_SERVER"`
	Database struct {
		Type           string `mapstructure:"TYPE" validate:"oneof=postgres mysql sqlite"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME" validate:"required"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		AutoMigrate    bool   `mapstructure:"AUTO_MIGRATE"`
		Metrics        bool   `mapstructure:"METRICS"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Vault struct {
		Path  string `mapstructure:"PATH"`
		Mount string `mapstructure:"MOUNT"`
	} `mapstructure:"VAULT"`
	// SecretAES seeds the credential cipher key. Changing it makes every
	// stored credential unreadable.
	SecretAES string `mapstructure:"SECRET_AES" validate:"required"`
	Expiry    struct {
		MaxAge     time.Duration `mapstructure:"MAX_AGE"`
		Expression string        `mapstructure:"EXPRESSION"`
		RunAt      string        `mapstructure:"RUN_AT"`
		Enable     bool          `mapstructure:"ENABLE"`
	} `mapstructure:"EXPIRY"`
	Audit struct {
		MaxRetries int           `mapstructure:"MAX_RETRIES" validate:"gte=0"`
		Backoff    time.Duration `mapstructure:"BACKOFF"`
	} `mapstructure:"AUDIT"`
	Inventory struct {
		CacheTTL time.Duration `mapstructure:"CACHE_TTL"`
	} `mapstructure:"INVENTORY"`
}

// RedisEnabled reports whether a Redis address is configured. Inventory
// caching and background tasks are only wired when it is.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

type Params struct {
	fx.In
	Vault *vault.Client `optional:"true"`
}

var defaults = map[string]any{
	"APP_ENV":                   "development",
	"APP_NAME":                  "rewardvault",
	"APP_VERSION":               "dev",
	"NODE_ID":                   1,
	"TLS.ENABLE":                false,
	"TLS.CERT_PATH":             "",
	"TLS.KEY_PATH":              "",
	"HTTP_SERVER.ADDR":          ":8080",
	"HTTP_SERVER.READ_TIMEOUT":  "15s",
	"HTTP_SERVER.WRITE_TIMEOUT": "15s",
	"HTTP_SERVER.IDLE_TIMEOUT":  "60s",
	"DATABASE.TYPE":             "postgres",
	"DATABASE.HOST":             "localhost",
	"DATABASE.PORT":             "5432",
	"DATABASE.DBNAME":           "rewardvault",
	"DATABASE.USER":             "",
	"DATABASE.PASSWORD":         "",
	"DATABASE.SSLMODE":          "disable",
	"DATABASE.TIMEZONE":         "UTC",
	"DATABASE.AUTO_MIGRATE":     false,
	"DATABASE.METRICS":          false,
	"REDIS.ADDR":                "",
	"REDIS.PASSWORD":            "",
	"REDIS.DB":                  0,
	"REDIS.POOL_SIZE":           10,
	"REDIS.POOL_TIMEOUT":        "4s",
	"VAULT.PATH":                "",
	"VAULT.MOUNT":               "secret",
	"SECRET_AES":                "",
	"EXPIRY.ENABLE":             true,
	"EXPIRY.MAX_AGE":            "0s",
	"EXPIRY.EXPRESSION":         "",
	"EXPIRY.RUN_AT":             "02:00",
	"AUDIT.MAX_RETRIES":         3,
	"AUDIT.BACKOFF":             "100ms",
	"INVENTORY.CACHE_TTL":       "30s",
}

var poolDefaults = map[string]any{
	"DATABASE.CONNECTION_POOL.MAX_IDLE_CONN":      5,
	"DATABASE.CONNECTION_POOL.MAX_OPEN_CONNS":     25,
	"DATABASE.CONNECTION_POOL.CONN_MAX_LIFETIME":  "30m",
	"DATABASE.CONNECTION_POOL.CONN_MAX_IDLE_TIME": "5m",
}

// Load reads config.yaml from the given paths (if present) and overlays the
// environment. Nested keys map to env vars with "." replaced by "_", so
// DATABASE.HOST is read from DATABASE_HOST.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	for _, m := range []map[string]any{defaults, poolDefaults} {
		for k, val := range m {
			v.SetDefault(k, val)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &cfg, nil
}

// Validate checks required settings once every source has been applied.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func LoadConfig(p Params) (*Config, error) {
	cfg, err := Load(".")
	if err != nil {
		return nil, err
	}

	if p.Vault != nil && cfg.Vault.Path != "" {
		if err := applyVault(context.Background(), p.Vault, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyVault(ctx context.Context, client *vault.Client, cfg *Config) error {
	zap.L().Info("Starting Get Secrets", zap.String("path", cfg.Vault.Path))
	secret, err := client.Secrets.KvV2Read(ctx, cfg.Vault.Path, vault.WithMountPath(cfg.Vault.Mount))
	if err != nil {
		zap.L().Error("failed get secret from vault", zap.Error(err))
		return fmt.Errorf("config: vault read: %w", err)
	}
	zap.L().Info("Success Get Secret")

	overlay(cfg, secret.Data.Data)
	return nil
}

// overlay replaces secrets with the values found in data. Missing keys leave
// the file/env value in place.
func overlay(cfg *Config, data map[string]interface{}) {
	get := func(key, fallback string) string {
		if val, ok := data[key].(string); ok && val != "" {
			return val
		}
		return fallback
	}

	cfg.Database.User = get("db_user", cfg.Database.User)
	cfg.Database.Password = get("db_password", cfg.Database.Password)
	cfg.Redis.Password = get("redis_password", cfg.Redis.Password)
	cfg.SecretAES = get("secret_aes", cfg.SecretAES)
}
