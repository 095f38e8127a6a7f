/**
 * @description
 * This package handles the configuration management for the bank-service. It uses
 * the Viper library to read configuration from environment variables and an optional
 * `.env` file, providing a centralized way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultRateLimitPrefix = "bank:rate_limit"
	defaultEventsExchange  = "bank_events"
	defaultLockTimeoutMs   = 5000
	defaultMaxRetries      = 3
	defaultMaxConns        = 10
)

// Config holds all the configuration variables for the bank-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	DatabaseMaxConns           int32  `mapstructure:"DATABASE_MAX_CONNS"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	EventsExchange             string `mapstructure:"EVENTS_EXCHANGE"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	JWTIssuer                  string `mapstructure:"JWT_ISSUER"`
	TransferMaxRetries         int    `mapstructure:"TRANSFER_MAX_RETRIES"`
	TransferLockTimeoutMs      int    `mapstructure:"TRANSFER_LOCK_TIMEOUT_MS"`
	LedgerAuditSchedule        string `mapstructure:"LEDGER_AUDIT_SCHEDULE"`
	CORSAllowedOrigins         string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LockTimeout is how long a transfer waits for an account row lock.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.TransferLockTimeoutMs) * time.Millisecond
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DATABASE_MAX_CONNS", defaultMaxConns)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("JWT_ISSUER", "")
	viper.SetDefault("TRANSFER_MAX_RETRIES", defaultMaxRetries)
	viper.SetDefault("TRANSFER_LOCK_TIMEOUT_MS", defaultLockTimeoutMs)
	viper.SetDefault("LEDGER_AUDIT_SCHEDULE", "@every 15m")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DATABASE_MAX_CONNS")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BANK_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("TRANSFER_MAX_RETRIES")
	_ = viper.BindEnv("TRANSFER_LOCK_TIMEOUT_MS")
	_ = viper.BindEnv("LEDGER_AUDIT_SCHEDULE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	config.EventsExchange = strings.TrimSpace(config.EventsExchange)
	if config.EventsExchange == "" {
		config.EventsExchange = defaultEventsExchange
	}
	config.LedgerAuditSchedule = strings.TrimSpace(config.LedgerAuditSchedule)

	if config.DatabaseMaxConns <= 0 {
		config.DatabaseMaxConns = defaultMaxConns
	}
	if config.TransferMaxRetries < 0 {
		log.Printf("level=warn component=config msg=\"negative transfer retry count configured; coercing to zero\" retries=%d", config.TransferMaxRetries)
		config.TransferMaxRetries = 0
	}
	if config.TransferLockTimeoutMs <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive lock timeout configured; using default\" lock_timeout_ms=%d", config.TransferLockTimeoutMs)
		config.TransferLockTimeoutMs = defaultLockTimeoutMs
	}
	if config.TransferRateLimitPerMinute < 0 {
		config.TransferRateLimitPerMinute = 0
	}

	return
}
