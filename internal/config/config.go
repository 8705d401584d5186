// Package config loads runtime configuration for the portfolio engine from
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradesim/portfolio-engine/internal/store"
)

// Storage backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendDynamo   = "dynamodb"
)

// Config holds all runtime configuration for the portfolio engine.
type Config struct {
	Port     int
	LogLevel string

	StorageKey   string
	StoreBackend string
	DataFile     string
	DatabaseURL  string
	RedisURL     string
	CacheTTL     time.Duration
	DynamoTable  string
	AWSRegion    string
	JournalPath  string

	QuotesFile      string
	AlpacaAPIKey    string
	AlpacaSecretKey string

	InitialCash          decimal.Decimal
	MaxPositionPerSymbol int64

	RequestTimeout  time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	backend := getStr("STORE_BACKEND", BackendMemory)
	databaseURL := os.Getenv("DATABASE_URL")
	redisURL := os.Getenv("REDIS_URL")
	switch backend {
	case BackendMemory, BackendFile, BackendDynamo:
	case BackendPostgres:
		if databaseURL == "" {
			return nil, fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if redisURL == "" {
			return nil, fmt.Errorf("STORE_BACKEND=redis requires REDIS_URL")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND: %q, must be one of: memory, file, postgres, redis, dynamodb", backend)
	}

	cacheTTL, err := getDuration("CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	initialCash, err := getDecimal("INITIAL_CASH", decimal.NewFromInt(10000000))
	if err != nil {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %w", err)
	}
	if initialCash.IsNegative() {
		return nil, fmt.Errorf("invalid INITIAL_CASH: %s is negative", initialCash)
	}

	maxPosition, err := getInt("MAX_POSITION_PER_SYMBOL", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_POSITION_PER_SYMBOL: %w", err)
	}
	if maxPosition < 0 {
		return nil, fmt.Errorf("invalid MAX_POSITION_PER_SYMBOL: %d is negative", maxPosition)
	}

	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	return &Config{
		Port:                 port,
		LogLevel:             logLevel,
		StorageKey:           getStr("STORAGE_KEY", store.DefaultKey),
		StoreBackend:         backend,
		DataFile:             getStr("DATA_FILE", "tradesim.json"),
		DatabaseURL:          databaseURL,
		RedisURL:             redisURL,
		CacheTTL:             cacheTTL,
		DynamoTable:          getStr("DYNAMO_TABLE", "tradesim-ledger"),
		AWSRegion:            getStr("AWS_REGION", "us-east-1"),
		JournalPath:          os.Getenv("JOURNAL_PATH"),
		QuotesFile:           getStr("QUOTES_FILE", "stockData.json"),
		AlpacaAPIKey:         os.Getenv("ALPACA_API_KEY"),
		AlpacaSecretKey:      os.Getenv("ALPACA_SECRET_KEY"),
		InitialCash:          initialCash,
		MaxPositionPerSymbol: int64(maxPosition),
		RequestTimeout:       requestTimeout,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		ShutdownTimeout:      shutdownTimeout,
	}, nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
