package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds all data directory and file path configuration.
// These paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (DRIVEMAP_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the SQLite database file path (DRIVEMAP_SQLITE_PATH, default: ${DataDir}/drivemap.db)
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Config holds all configuration for the drivemap service
type Config struct {
	// DataPaths holds all data directory configuration
	DataPaths DataPaths `mapstructure:"data_paths"`

	API struct {
		Port           int      `mapstructure:"port"`
		Host           string   `mapstructure:"host"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"api"`

	Embedding struct {
		// ServiceURL is the embedding HTTP service endpoint. Empty selects the
		// local hashing embedder instead of the remote service.
		ServiceURL string        `mapstructure:"service_url"`
		Timeout    time.Duration `mapstructure:"timeout"`
		CacheSize  int           `mapstructure:"cache_size"`
	} `mapstructure:"embedding"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Notify struct {
		// WriteTimeout bounds a single websocket write to a subscriber
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		PingInterval time.Duration `mapstructure:"ping_interval"`
	} `mapstructure:"notify"`
}

// setDefaults sets default configuration values
func setDefaults() {
	// Data paths with environment variable overrides
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir

	viper.SetDefault("api.port", 8000)
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 200)
	viper.SetDefault("api.read_timeout", 15*time.Second)
	viper.SetDefault("api.write_timeout", 15*time.Second)
	viper.SetDefault("api.shutdown_timeout", 10*time.Second)

	viper.SetDefault("embedding.service_url", "")
	viper.SetDefault("embedding.timeout", 5*time.Second)
	viper.SetDefault("embedding.cache_size", 1024)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("notify.write_timeout", 10*time.Second)
	viper.SetDefault("notify.ping_interval", 30*time.Second)
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("DRIVEMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicit bindings for shorter, cleaner env var names
	_ = viper.BindEnv("data_paths.data_dir", "DRIVEMAP_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "DRIVEMAP_SQLITE_PATH")
	_ = viper.BindEnv("api.port", "DRIVEMAP_API_PORT")
	_ = viper.BindEnv("embedding.service_url", "DRIVEMAP_EMBEDDING_URL")
	_ = viper.BindEnv("redis.addr", "DRIVEMAP_REDIS_ADDR")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir if not explicitly set
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "drivemap.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	c.DataPaths.DataDir = dataDir
}

// GetSQLitePath returns the resolved SQLite database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.DataPaths.DataDir, "drivemap.db")
	}
	return c.DataPaths.SQLitePath
}

// validateConfig validates the configuration for correctness
func validateConfig(config *Config) error {
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}
	if config.API.Host == "" {
		return fmt.Errorf("API host cannot be empty")
	}

	if config.API.RateLimit.RequestsPerSecond < 1 {
		return fmt.Errorf("api.rate_limit.requests_per_second must be positive, got %d", config.API.RateLimit.RequestsPerSecond)
	}
	if config.API.RateLimit.Burst < config.API.RateLimit.RequestsPerSecond {
		return fmt.Errorf("api.rate_limit.burst must be at least requests_per_second")
	}

	if config.Embedding.ServiceURL != "" {
		parsed, err := url.Parse(config.Embedding.ServiceURL)
		if err != nil {
			return fmt.Errorf("invalid embedding service URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("invalid embedding service URL: scheme must be http or https, got %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("invalid embedding service URL: missing host")
		}
	}
	if config.Embedding.Timeout < 100*time.Millisecond {
		return fmt.Errorf("embedding.timeout must be at least 100ms, got %v", config.Embedding.Timeout)
	}
	if config.Embedding.CacheSize < 1 {
		return fmt.Errorf("embedding.cache_size must be positive, got %d", config.Embedding.CacheSize)
	}

	if config.Redis.Enabled {
		if config.Redis.Addr == "" {
			return fmt.Errorf("redis.addr cannot be empty when redis is enabled")
		}
		if config.Redis.PoolSize < 1 {
			return fmt.Errorf("redis.pool_size must be positive, got %d", config.Redis.PoolSize)
		}
	}

	if config.Notify.WriteTimeout < time.Second {
		return fmt.Errorf("notify.write_timeout must be at least 1s, got %v", config.Notify.WriteTimeout)
	}

	return nil
}
