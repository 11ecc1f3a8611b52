package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CardGateway CardGatewayConfig
	Telegram    TelegramConfig
	Billing     BillingConfig
	Sentry      SentryConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds the pgx pool settings. The API and the worker each
// open their own pool.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MinConnections int
	MaxLifetime    time.Duration
	MaxIdleTime    time.Duration
	HealthCheck    time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
	Issuer    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// CardGatewayConfig holds the acquiring terminal credentials and callback URLs
type CardGatewayConfig struct {
	BaseURL         string
	TerminalKey     string
	Password        string
	NotificationURL string
	SuccessURL      string
	FailURL         string
	Timeout         time.Duration
}

// TelegramConfig holds bot credentials for in-chat payments and notifications
type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
	APIBaseURL    string
	Timeout       time.Duration
}

// BillingConfig holds the recurring billing policy
type BillingConfig struct {
	MaxFailedAttempts int
	RetryDelay        time.Duration
	SweepCron         string
	SweepBatchSize    int
	ChargeTimeout     time.Duration
	RefundWindow      time.Duration
}

// SentryConfig holds Sentry configuration
type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// Load loads configuration from .env and environment variables
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// .env file is optional for production (env vars are used)
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := fromViper(viper.GetViper())

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:            v.GetInt("server_port"),
			ReadTimeout:     v.GetDuration("server_read_timeout"),
			WriteTimeout:    v.GetDuration("server_write_timeout"),
			ShutdownTimeout: v.GetDuration("server_shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("database_url"),
			MaxConnections: v.GetInt("database_max_connections"),
			MinConnections: v.GetInt("database_min_connections"),
			MaxLifetime:    v.GetDuration("database_max_lifetime"),
			MaxIdleTime:    v.GetDuration("database_max_idle_time"),
			HealthCheck:    v.GetDuration("database_health_check"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis_url"),
			PoolSize:     v.GetInt("redis_pool_size"),
			MinIdleConns: v.GetInt("redis_min_idle_conns"),
			DialTimeout:  v.GetDuration("redis_dial_timeout"),
			ReadTimeout:  v.GetDuration("redis_read_timeout"),
			WriteTimeout: v.GetDuration("redis_write_timeout"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("jwt_secret"),
			AccessTTL: v.GetDuration("jwt_access_ttl"),
			Issuer:    v.GetString("jwt_issuer"),
		},
		CardGateway: CardGatewayConfig{
			BaseURL:         v.GetString("card_gateway_base_url"),
			TerminalKey:     v.GetString("card_gateway_terminal_key"),
			Password:        v.GetString("card_gateway_password"),
			NotificationURL: v.GetString("card_gateway_notification_url"),
			SuccessURL:      v.GetString("card_gateway_success_url"),
			FailURL:         v.GetString("card_gateway_fail_url"),
			Timeout:         v.GetDuration("card_gateway_timeout"),
		},
		Telegram: TelegramConfig{
			BotToken:      v.GetString("telegram_bot_token"),
			WebhookSecret: v.GetString("telegram_webhook_secret"),
			APIBaseURL:    v.GetString("telegram_api_base_url"),
			Timeout:       v.GetDuration("telegram_timeout"),
		},
		Billing: BillingConfig{
			MaxFailedAttempts: v.GetInt("billing_max_failed_attempts"),
			RetryDelay:        v.GetDuration("billing_retry_delay"),
			SweepCron:         v.GetString("billing_sweep_cron"),
			SweepBatchSize:    v.GetInt("billing_sweep_batch_size"),
			ChargeTimeout:     v.GetDuration("billing_charge_timeout"),
			RefundWindow:      v.GetDuration("billing_refund_window"),
		},
		Sentry: SentryConfig{
			DSN:         v.GetString("sentry_dsn"),
			Environment: v.GetString("sentry_environment"),
			Release:     v.GetString("sentry_release"),
		},
	}
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", 10*time.Second)
	viper.SetDefault("server_write_timeout", 10*time.Second)
	viper.SetDefault("server_shutdown_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database_max_connections", 20)
	viper.SetDefault("database_min_connections", 2)
	viper.SetDefault("database_max_lifetime", time.Hour)
	viper.SetDefault("database_max_idle_time", 15*time.Minute)
	viper.SetDefault("database_health_check", time.Minute)

	// JWT defaults
	viper.SetDefault("jwt_access_ttl", 15*time.Minute)
	viper.SetDefault("jwt_issuer", "paygate")

	// Redis defaults
	viper.SetDefault("redis_pool_size", 10)
	viper.SetDefault("redis_min_idle_conns", 3)
	viper.SetDefault("redis_dial_timeout", 5*time.Second)
	viper.SetDefault("redis_read_timeout", 3*time.Second)
	viper.SetDefault("redis_write_timeout", 3*time.Second)

	// Gateway defaults
	viper.SetDefault("card_gateway_base_url", "https://securepay.tinkoff.ru")
	viper.SetDefault("card_gateway_timeout", 15*time.Second)
	viper.SetDefault("telegram_api_base_url", "https://api.telegram.org")
	viper.SetDefault("telegram_timeout", 10*time.Second)

	// Billing policy
	viper.SetDefault("billing_max_failed_attempts", 3)
	viper.SetDefault("billing_retry_delay", 24*time.Hour)
	viper.SetDefault("billing_sweep_cron", "0 3 * * *")
	viper.SetDefault("billing_sweep_batch_size", 500)
	viper.SetDefault("billing_charge_timeout", 30*time.Second)
	viper.SetDefault("billing_refund_window", 24*time.Hour)

	viper.SetDefault("sentry_environment", "production")
}

func validate(cfg *Config) error {
	if cfg.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(cfg.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Database.MaxConnections < 1 || cfg.Database.MinConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("DATABASE_MIN_CONNECTIONS must not exceed DATABASE_MAX_CONNECTIONS")
	}
	if cfg.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.CardGateway.TerminalKey == "" || cfg.CardGateway.Password == "" {
		return fmt.Errorf("CARD_GATEWAY_TERMINAL_KEY and CARD_GATEWAY_PASSWORD are required")
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.Billing.MaxFailedAttempts < 1 {
		return fmt.Errorf("BILLING_MAX_FAILED_ATTEMPTS must be at least 1")
	}
	if cfg.Billing.RetryDelay <= 0 {
		return fmt.Errorf("BILLING_RETRY_DELAY must be positive")
	}
	if cfg.Billing.SweepBatchSize < 1 {
		return fmt.Errorf("BILLING_SWEEP_BATCH_SIZE must be at least 1")
	}
	return nil
}
