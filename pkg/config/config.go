package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (transaction feed + result store)
	Database DatabaseConfig

	// Redis (provider result cache)
	Redis RedisConfig

	// Kafka (raw filing stream)
	Kafka KafkaConfig

	// External market data provider
	MarketData MarketDataConfig

	// Filing scraper (openinsider)
	Scraper ScraperConfig

	// Scoring pipeline
	Scoring ScoringConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

// KafkaConfig holds the filing stream consumer configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// MarketDataConfig holds the market data HTTP API configuration
type MarketDataConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec float64
}

// ScraperConfig holds the filing scraper configuration
type ScraperConfig struct {
	BaseURL        string
	RequestsPerSec float64
	LookbackDays   int
	Schedule       string
}

// ScoringConfig holds batch and context-signal parameters
type ScoringConfig struct {
	PolicyPath             string
	SequentialThreshold    int
	MaxWorkers             int
	AccumulationWindowDays int
	MaxSignalAgeDays       int
	Schedule               string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			CacheTTL: getEnvAsDuration("REDIS_CACHE_TTL", "1h"),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getEnv("KAFKA_TOPIC", "insider.filings.raw"),
			GroupID: getEnv("KAFKA_GROUP_ID", "conviction-scorer"),
		},

		MarketData: MarketDataConfig{
			BaseURL:        getEnv("MARKET_DATA_BASE_URL", ""),
			APIKey:         getEnv("MARKET_DATA_API_KEY", ""),
			Timeout:        getEnvAsDuration("MARKET_DATA_TIMEOUT", "10s"),
			RequestsPerSec: getEnvAsFloat("MARKET_DATA_RPS", 5),
		},

		Scraper: ScraperConfig{
			BaseURL:        getEnv("SCRAPER_BASE_URL", ""),
			RequestsPerSec: getEnvAsFloat("SCRAPER_RPS", 1),
			LookbackDays:   getEnvAsInt("SCRAPER_LOOKBACK_DAYS", 3),
			Schedule:       getEnv("SCRAPER_SCHEDULE", "0 0 * * * *"),
		},

		Scoring: ScoringConfig{
			PolicyPath:             getEnv("SCORING_POLICY_PATH", ""),
			SequentialThreshold:    getEnvAsInt("SCORING_SEQUENTIAL_THRESHOLD", 5),
			MaxWorkers:             getEnvAsInt("SCORING_MAX_WORKERS", 5),
			AccumulationWindowDays: getEnvAsInt("SCORING_ACCUMULATION_WINDOW_DAYS", 30),
			MaxSignalAgeDays:       getEnvAsInt("SCORING_MAX_SIGNAL_AGE_DAYS", 90),
			Schedule:               getEnv("SCORING_SCHEDULE", "0 */30 * * * *"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are usable
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scoring.MaxWorkers < 1 {
		return fmt.Errorf("SCORING_MAX_WORKERS must be >= 1, got %d", c.Scoring.MaxWorkers)
	}
	if c.Scoring.SequentialThreshold < 0 {
		return fmt.Errorf("SCORING_SEQUENTIAL_THRESHOLD must be >= 0, got %d", c.Scoring.SequentialThreshold)
	}
	if c.Scoring.AccumulationWindowDays < 1 {
		return fmt.Errorf("SCORING_ACCUMULATION_WINDOW_DAYS must be >= 1, got %d", c.Scoring.AccumulationWindowDays)
	}
	if c.MarketData.RequestsPerSec <= 0 {
		return fmt.Errorf("MARKET_DATA_RPS must be > 0")
	}
	if c.Scraper.RequestsPerSec <= 0 {
		return fmt.Errorf("SCRAPER_RPS must be > 0")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
