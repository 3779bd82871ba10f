// Package config provides configuration management for the snapshot
// ingestor. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	apperrors "github.com/wallet-snapshots/internal/errors"
	"github.com/wallet-snapshots/internal/models"
	"github.com/wallet-snapshots/internal/retry"
)

// Config holds all application configuration.
type Config struct {
	Database    DatabaseConfig
	DeBank      DeBankConfig
	Hyperliquid HyperliquidConfig
	Fetch       FetchConfig
	Write       WriteConfig
	Cache       CacheConfig
	Mirror      MirrorConfig
	Server      ServerConfig
	Logging     LoggingConfig
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration for the snapshot mirror.
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration for the raw-payload cache.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DeBankConfig holds the DeBank upstream configuration.
type DeBankConfig struct {
	APIURL  string
	APIKey  string
	Table   string
	Wallets []string
}

// HyperliquidConfig holds the Hyperliquid upstream configuration.
type HyperliquidConfig struct {
	APIURL     string
	Table      string
	Wallets    []string
	EquityPath string // optional dot-path hint for the equity metric
}

// FetchConfig holds retry/backoff tuning shared by the upstream clients.
type FetchConfig struct {
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Timeout        time.Duration
	RequestsPerSec float64
}

// RetryConfig translates fetch settings into a retry policy.
func (c FetchConfig) RetryConfig() *retry.Config {
	cfg := retry.DefaultConfig()
	if c.MaxRetries > 0 {
		cfg.MaxAttempts = c.MaxRetries
	}
	if c.BackoffInitial > 0 {
		cfg.InitialDelay = c.BackoffInitial
	}
	if c.BackoffMax > 0 {
		cfg.MaxDelay = c.BackoffMax
	}
	return cfg
}

// WriteConfig holds snapshot write settings.
type WriteConfig struct {
	Mode      models.WriteMode
	BatchSize int
}

// CacheConfig holds raw-payload cache settings.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// MirrorConfig holds ClickHouse mirror settings.
type MirrorConfig struct {
	Enabled bool
	Table   string
}

// ServerConfig holds the read API server configuration.
type ServerConfig struct {
	Host string
	Port string
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from a .env file and environment variables.
func LoadConfig() (*Config, error) {
	// .env is optional; environment variables can be set directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "wallet_snapshots"),
				User:           getEnv("POSTGRES_USER", "snapshots"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "wallet_snapshots"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		DeBank: DeBankConfig{
			APIURL:  getEnv("DEBANK_API_URL", "https://pro-openapi.debank.com"),
			APIKey:  getEnv("DEBANK_API_KEY", ""),
			Table:   getEnv("DEBANK_TABLE", "debank_protocols"),
			Wallets: splitWallets(getEnv("WALLETS", "")),
		},
		Hyperliquid: HyperliquidConfig{
			APIURL:     getEnv("HL_API_URL", "https://api.hyperliquid.xyz/info"),
			Table:      getEnv("HL_TABLE", "hyperliquid_state"),
			Wallets:    splitWallets(getEnv("WALLETS_HL", getEnv("WALLETS", ""))),
			EquityPath: getEnv("HL_EQUITY_PATH", ""),
		},
		Fetch: FetchConfig{
			MaxRetries:     getEnvAsInt("FETCH_MAX_RETRIES", 5),
			BackoffInitial: getEnvAsDuration("FETCH_BACKOFF_INITIAL", 1*time.Second),
			BackoffMax:     getEnvAsDuration("FETCH_BACKOFF_MAX", 16*time.Second),
			Timeout:        getEnvAsDuration("FETCH_TIMEOUT", 30*time.Second),
			RequestsPerSec: getEnvAsFloat("FETCH_RATE_LIMIT_RPS", 3.0),
		},
		Write: WriteConfig{
			Mode:      models.WriteMode(getEnv("WRITE_MODE", string(models.ModeAppend))),
			BatchSize: getEnvAsInt("WRITE_BATCH_SIZE", 500),
		},
		Cache: CacheConfig{
			Enabled: getEnvAsBool("CACHE_ENABLED", false),
			TTL:     getEnvAsDuration("CACHE_TTL", 5*time.Minute),
		},
		Mirror: MirrorConfig{
			Enabled: getEnvAsBool("MIRROR_ENABLED", false),
			Table:   getEnv("MIRROR_TABLE", "snapshot_rows"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if !cfg.Write.Mode.Valid() {
		return nil, apperrors.NewConfigurationError("WRITE_MODE",
			fmt.Sprintf("unknown write mode %q (want %q or %q)", cfg.Write.Mode, models.ModeAppend, models.ModeUpsertSnapshot))
	}

	return cfg, nil
}

// ValidateDeBank checks the configuration needed for a DeBank run. Wallets
// passed on the command line override the environment list.
func (c *Config) ValidateDeBank(walletsOverride string) ([]string, error) {
	if c.DeBank.APIKey == "" {
		return nil, apperrors.NewConfigurationError("DEBANK_API_KEY", "is required")
	}
	return resolveWallets(walletsOverride, c.DeBank.Wallets, "WALLETS")
}

// ValidateHyperliquid checks the configuration needed for a Hyperliquid run.
func (c *Config) ValidateHyperliquid(walletsOverride string) ([]string, error) {
	return resolveWallets(walletsOverride, c.Hyperliquid.Wallets, "WALLETS_HL")
}

func resolveWallets(override string, fromEnv []string, envName string) ([]string, error) {
	wallets := fromEnv
	if override != "" {
		wallets = splitWallets(override)
	}
	if len(wallets) == 0 {
		return nil, apperrors.NewConfigurationError(envName,
			"no wallets provided; use --wallets or set "+envName+" in .env")
	}
	for _, w := range wallets {
		if !common.IsHexAddress(w) {
			return nil, apperrors.NewConfigurationError(envName,
				fmt.Sprintf("invalid wallet address %q", w))
		}
	}
	return wallets, nil
}

func splitWallets(s string) []string {
	var wallets []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			wallets = append(wallets, w)
		}
	}
	return wallets
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
