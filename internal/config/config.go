package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application
type Config struct {
	// Chain provider configuration
	Providers ProviderConfig

	// Swap feed configuration
	SwapFeed SwapFeedConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// API server configuration
	API APIConfig

	// Indexer configuration
	Indexer IndexerConfig

	// Logging configuration
	Log LogConfig
}

// ProviderConfig holds chain provider pool settings
type ProviderConfig struct {
	// RPCURLs lists the provider endpoints (comma-separated)
	RPCURLs []string `envconfig:"PROVIDER_RPC_URLS" default:"http://localhost:8545"`

	// ChainID, when non-zero, is verified against every provider at startup
	ChainID int64 `envconfig:"PROVIDER_CHAIN_ID" default:"0"`

	// Strategy is "race" (query all, first answer wins) or "priority"
	// (ordered fallback)
	Strategy    string        `envconfig:"PROVIDER_STRATEGY" default:"race"`
	CallTimeout time.Duration `envconfig:"PROVIDER_CALL_TIMEOUT" default:"10s"`
	DialTimeout time.Duration `envconfig:"PROVIDER_DIAL_TIMEOUT" default:"10s"`
}

// SwapFeedConfig holds swap feed client settings
type SwapFeedConfig struct {
	BaseURL        string        `envconfig:"SWAP_FEED_BASE_URL" default:"http://localhost:9545"`
	APIKey         string        `envconfig:"SWAP_FEED_API_KEY" default:""`
	PageSize       int           `envconfig:"SWAP_FEED_PAGE_SIZE" default:"100"`
	MaxPages       int           `envconfig:"SWAP_FEED_MAX_PAGES" default:"50"`
	MaxRetries     int           `envconfig:"SWAP_FEED_MAX_RETRIES" default:"3"`
	RetryDelay     time.Duration `envconfig:"SWAP_FEED_RETRY_DELAY" default:"500ms"`
	RequestTimeout time.Duration `envconfig:"SWAP_FEED_REQUEST_TIMEOUT" default:"30s"`
	RateLimitRPS   float64       `envconfig:"SWAP_FEED_RATE_LIMIT_RPS" default:"5"`
	RateLimitBurst int           `envconfig:"SWAP_FEED_RATE_LIMIT_BURST" default:"10"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"indexer"`
	Password        string        `envconfig:"DB_PASSWORD" default:"indexer"`
	Name            string        `envconfig:"DB_NAME" default:"pnl_indexer"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Host            string        `envconfig:"API_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"API_PORT" default:"8081"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    int           `envconfig:"API_RATE_LIMIT_RPS" default:"100"`
	CacheTTL        time.Duration `envconfig:"API_CACHE_TTL" default:"30s"`
}

// IndexerConfig holds indexing service settings
type IndexerConfig struct {
	// Port serves the trigger API, job registry, health and metrics
	Port int `envconfig:"INDEXER_PORT" default:"8080"`

	// WorkerCount is the number of concurrent indexing jobs
	WorkerCount int `envconfig:"INDEXER_WORKER_COUNT" default:"4"`

	// QueueSize bounds the pending-job queue; a full queue rejects triggers
	QueueSize int `envconfig:"INDEXER_QUEUE_SIZE" default:"64"`

	// JobTimeout caps one wallet indexing job end to end
	JobTimeout time.Duration `envconfig:"INDEXER_JOB_TIMEOUT" default:"5m"`

	// TrackerCapacity bounds the in-memory job registry
	TrackerCapacity int `envconfig:"INDEXER_TRACKER_CAPACITY" default:"256"`

	// DefaultGenesisBlock seeds tokens registered without one
	DefaultGenesisBlock int64 `envconfig:"INDEXER_DEFAULT_GENESIS_BLOCK" default:"0"`

	// ShutdownTimeout bounds the drain of running jobs on exit
	ShutdownTimeout time.Duration `envconfig:"INDEXER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
