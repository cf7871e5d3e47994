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

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Ranking pipeline
	Ranking  RankingConfig
	Snapshot SnapshotConfig

	// Notifications
	Kafka KafkaConfig

	// API protection
	RateLimit RateLimitConfig

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string // empty = stdout only

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
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

// RankingConfig holds job queue and worker settings
type RankingConfig struct {
	ConfigPath           string        // scoring YAML, empty = embedded default
	DedupWindow          time.Duration // duplicate enqueue collapse window
	JobTimeout           time.Duration // running jobs older than this are reclaimed
	MaxRetries           int
	RetryBackoff         time.Duration
	PollInterval         time.Duration
	WorkerConcurrency    int
	EstimatedJobDuration time.Duration
	JobRetention         time.Duration
	WatchlistSymbols     []string
	WatchlistSchedule    string // cron (with seconds)
}

// SnapshotConfig holds options chain source settings
type SnapshotConfig struct {
	Source          string // http, postgres, file
	BaseURL         string
	FileDir         string // <dir>/<SYMBOL>.json
	Timeout         time.Duration
	RequestsPerSec  int
	BreakerFailures int
}

// KafkaConfig holds event publisher settings
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// RateLimitConfig holds API rate limits
type RateLimitConfig struct {
	EnqueuePerMinute int
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
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Ranking: RankingConfig{
			ConfigPath:           getEnv("RANK_CONFIG_PATH", ""),
			DedupWindow:          getEnvAsDuration("RANK_DEDUP_WINDOW", "5m"),
			JobTimeout:           getEnvAsDuration("RANK_JOB_TIMEOUT", "5m"),
			MaxRetries:           getEnvAsInt("RANK_MAX_RETRIES", 3),
			RetryBackoff:         getEnvAsDuration("RANK_RETRY_BACKOFF", "5s"),
			PollInterval:         getEnvAsDuration("RANK_POLL_INTERVAL", "1s"),
			WorkerConcurrency:    getEnvAsInt("RANK_WORKER_CONCURRENCY", 3),
			EstimatedJobDuration: getEnvAsDuration("RANK_ESTIMATED_JOB_DURATION", "10s"),
			JobRetention:         getEnvAsDuration("RANK_JOB_RETENTION", "168h"),
			WatchlistSymbols:     getEnvAsList("RANK_WATCHLIST", nil),
			WatchlistSchedule:    getEnv("RANK_WATCHLIST_SCHEDULE", "0 */15 * * * *"),
		},

		Snapshot: SnapshotConfig{
			Source:          getEnv("SNAPSHOT_SOURCE", "postgres"),
			BaseURL:         getEnv("SNAPSHOT_BASE_URL", "http://localhost:8090"),
			FileDir:         getEnv("SNAPSHOT_FILE_DIR", "testdata/chains"),
			Timeout:         getEnvAsDuration("SNAPSHOT_TIMEOUT", "15s"),
			RequestsPerSec:  getEnvAsInt("SNAPSHOT_REQUESTS_PER_SEC", 5),
			BreakerFailures: getEnvAsInt("SNAPSHOT_BREAKER_FAILURES", 3),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsList("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_TOPIC", "optionrank.events"),
		},

		RateLimit: RateLimitConfig{
			EnqueuePerMinute: getEnvAsInt("RATE_LIMIT_ENQUEUE_PER_MINUTE", 60),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		LogFile:   getEnv("LOG_FILE", ""),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Snapshot.Source {
	case "http", "postgres", "file":
	default:
		return fmt.Errorf("SNAPSHOT_SOURCE must be one of: http, postgres, file")
	}

	if c.Ranking.MaxRetries < 0 {
		return fmt.Errorf("RANK_MAX_RETRIES must not be negative")
	}

	if c.Ranking.WorkerConcurrency < 1 {
		return fmt.Errorf("RANK_WORKER_CONCURRENCY must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

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
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
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

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
