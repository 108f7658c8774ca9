package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Points   PointsConfig
	Gate     TokenGateConfig
	Redis    RedisConfig
	Jobs     JobsConfig
	Prices   PricesConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port string
}

// PointsConfig holds the OP economy settings
type PointsConfig struct {
	SignupBonus int64
	DailyBonus  int64
}

// TokenGateConfig gates entry into prize-bearing markets behind a minimum
// token balance. AdminWallets bypass the check.
type TokenGateConfig struct {
	Network      string
	MintAddress  string
	MinBalance   uint64
	AdminWallets []string
}

// RedisConfig holds leaderboard cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JobsConfig holds batch job schedules
type JobsConfig struct {
	SettlementSpec string // cron expression for the settlement sweep
}

// PricesConfig holds price feed settings
type PricesConfig struct {
	BaseURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	signupBonus, err := getEnvInt64("SIGNUP_BONUS_OP", 1000)
	if err != nil {
		return nil, err
	}
	dailyBonus, err := getEnvInt64("DAILY_BONUS_OP", 50)
	if err != nil {
		return nil, err
	}
	minBalance, err := getEnvInt64("GATE_MIN_BALANCE", 0)
	if err != nil {
		return nil, err
	}

	redisDB, err := getEnvInt64("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "oracle"),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Points: PointsConfig{
			SignupBonus: signupBonus,
			DailyBonus:  dailyBonus,
		},
		Gate: TokenGateConfig{
			Network:      getEnv("SOLANA_NETWORK", "mainnet-beta"),
			MintAddress:  getEnv("GATE_TOKEN_MINT", ""),
			MinBalance:   uint64(minBalance),
			AdminWallets: splitList(getEnv("ADMIN_WALLETS", "")),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       int(redisDB),
		},
		Jobs: JobsConfig{
			SettlementSpec: getEnv("SETTLE_CRON", "@every 1m"),
		},
		Prices: PricesConfig{
			BaseURL: getEnv("COINGECKO_URL", "https://api.coingecko.com/api/v3"),
		},
	}

	if config.Points.SignupBonus < 0 || config.Points.DailyBonus < 0 {
		return nil, fmt.Errorf("bonus amounts must not be negative")
	}

	return config, nil
}

// GetDSN returns the PostgreSQL connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// IsAdminWallet reports whether wallet is in the configured admin set.
func (c *Config) IsAdminWallet(wallet string) bool {
	for _, w := range c.Gate.AdminWallets {
		if w == wallet {
			return true
		}
	}
	return false
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
