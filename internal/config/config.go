/**
 * @description
 * This package handles configuration for both binaries. It uses Viper to read
 * environment variables (and an optional .env file), applies defaults, and
 * normalises values so the rest of the code can trust them.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and env binding.
 */

package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the settings of the wallet API (walletd).
type ServerConfig struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	WalletEventsExchange       string `mapstructure:"WALLET_EVENTS_EXCHANGE"`
	SessionJWTSecret           string `mapstructure:"SESSION_JWT_SECRET"`
	CSRFSecret                 string `mapstructure:"CSRF_SECRET"`
	MutationRateLimitPerMinute int    `mapstructure:"MUTATION_RATE_LIMIT_PER_MINUTE"`
	ReconcileSchedule          string `mapstructure:"RECONCILE_SCHEDULE"`
	DefaultCurrency            string `mapstructure:"DEFAULT_CURRENCY"`
	CORSAllowedOrigins         string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LedgerTimezone             string `mapstructure:"LEDGER_TIMEZONE"`
	LogLevel                   string `mapstructure:"LOG_LEVEL"`
	LogFormat                  string `mapstructure:"LOG_FORMAT"`
}

// ConsoleConfig holds the settings of the operator console (walletctl).
type ConsoleConfig struct {
	WalletAPIURL          string `mapstructure:"WALLET_API_URL"`
	WalletAPIToken        string `mapstructure:"WALLET_API_TOKEN"`
	WalletCSRFToken       string `mapstructure:"WALLET_CSRF_TOKEN"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	WalletEventsExchange  string `mapstructure:"WALLET_EVENTS_EXCHANGE"`
	CurrencySymbol        string `mapstructure:"CURRENCY_SYMBOL"`
	ThousandsSeparator    string `mapstructure:"THOUSANDS_SEPARATOR"`
	DecimalSeparator      string `mapstructure:"DECIMAL_SEPARATOR"`
	LedgerTimezone        string `mapstructure:"LEDGER_TIMEZONE"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	LogFormat             string `mapstructure:"LOG_FORMAT"`
}

const (
	defaultServerPort        = "8080"
	defaultRateLimitPrefix   = "wallet:rate_limit"
	defaultEventsExchange    = "wallet_events"
	defaultMutationRateLimit = 30
	defaultReconcileSchedule = "@every 1h"
	defaultCurrency          = "PHP"
	defaultTimezone          = "UTC"
	defaultRequestTimeout    = 15
)

// RequestTimeout returns the per-request timeout of the gateway.
func (c ConsoleConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Location resolves the ledger timezone; unknown zones fall back to UTC.
func (c ServerConfig) Location() *time.Location {
	return loadLocation(c.LedgerTimezone)
}

// Location resolves the ledger timezone; unknown zones fall back to UTC.
func (c ConsoleConfig) Location() *time.Location {
	return loadLocation(c.LedgerTimezone)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func prepare(path string) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

func readOptionalFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// LoadServerConfig reads walletd configuration from the environment and an optional
// .env file in path.
func LoadServerConfig(path string) (config ServerConfig, err error) {
	prepare(path)

	viper.SetDefault("SERVER_PORT", defaultServerPort)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", defaultRateLimitPrefix)
	viper.SetDefault("WALLET_EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("MUTATION_RATE_LIMIT_PER_MINUTE", defaultMutationRateLimit)
	viper.SetDefault("RECONCILE_SCHEDULE", defaultReconcileSchedule)
	viper.SetDefault("DEFAULT_CURRENCY", defaultCurrency)
	viper.SetDefault("LEDGER_TIMEZONE", defaultTimezone)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	// Bind environment variables explicitly so they appear in Unmarshal.
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENTS_EXCHANGE")
	_ = viper.BindEnv("SESSION_JWT_SECRET")
	_ = viper.BindEnv("CSRF_SECRET")
	_ = viper.BindEnv("MUTATION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("DEFAULT_CURRENCY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("LEDGER_TIMEZONE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")

	if err = readOptionalFile(); err != nil {
		return
	}
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	config.SessionJWTSecret = strings.TrimSpace(config.SessionJWTSecret)
	config.CSRFSecret = strings.TrimSpace(config.CSRFSecret)
	if config.CSRFSecret == "" {
		config.CSRFSecret = config.SessionJWTSecret
	}
	config.RedisRateLimitPrefix = strings.TrimSuffix(strings.TrimSpace(config.RedisRateLimitPrefix), ":")
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = defaultRateLimitPrefix
	}
	if strings.TrimSpace(config.WalletEventsExchange) == "" {
		config.WalletEventsExchange = defaultEventsExchange
	}
	if config.MutationRateLimitPerMinute < 0 {
		config.MutationRateLimitPerMinute = 0
	}
	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = defaultReconcileSchedule
	}
	config.DefaultCurrency = strings.ToUpper(strings.TrimSpace(config.DefaultCurrency))
	if config.DefaultCurrency == "" {
		config.DefaultCurrency = defaultCurrency
	}

	return
}

// LoadConsoleConfig reads walletctl configuration from the environment and an
// optional .env file in path.
func LoadConsoleConfig(path string) (config ConsoleConfig, err error) {
	prepare(path)

	viper.SetDefault("WALLET_API_URL", "http://localhost:8080")
	viper.SetDefault("REQUEST_TIMEOUT_SECONDS", defaultRequestTimeout)
	viper.SetDefault("WALLET_EVENTS_EXCHANGE", defaultEventsExchange)
	viper.SetDefault("CURRENCY_SYMBOL", "₱")
	viper.SetDefault("THOUSANDS_SEPARATOR", ",")
	viper.SetDefault("DECIMAL_SEPARATOR", ".")
	viper.SetDefault("LEDGER_TIMEZONE", defaultTimezone)
	viper.SetDefault("LOG_LEVEL", "warn")
	viper.SetDefault("LOG_FORMAT", "console")

	_ = viper.BindEnv("WALLET_API_URL")
	_ = viper.BindEnv("WALLET_API_TOKEN")
	_ = viper.BindEnv("WALLET_CSRF_TOKEN")
	_ = viper.BindEnv("REQUEST_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("WALLET_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CURRENCY_SYMBOL")
	_ = viper.BindEnv("THOUSANDS_SEPARATOR")
	_ = viper.BindEnv("DECIMAL_SEPARATOR")
	_ = viper.BindEnv("LEDGER_TIMEZONE")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("LOG_FORMAT")

	if err = readOptionalFile(); err != nil {
		return
	}
	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.WalletAPIURL = strings.TrimRight(strings.TrimSpace(config.WalletAPIURL), "/")
	config.WalletAPIToken = strings.TrimSpace(config.WalletAPIToken)
	config.WalletCSRFToken = strings.TrimSpace(config.WalletCSRFToken)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)
	if config.RequestTimeoutSeconds <= 0 {
		config.RequestTimeoutSeconds = defaultRequestTimeout
	}
	if config.DecimalSeparator == "" {
		config.DecimalSeparator = "."
	}

	return
}

func loadLocation(name string) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
