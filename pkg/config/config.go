// Package config loads and validates engine configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Persistence, Index, Prefetch, Memory, Logging, Metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level engine configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Index       IndexConfig       `yaml:"index"`
	Prefetch    PrefetchConfig    `yaml:"prefetch"`
	Memory      MemoryConfig      `yaml:"memory"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings for the serving surface.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PersistenceConfig selects and configures the snapshot store backing the
// engine components. Driver is one of: memory, badger, sqlite, redis,
// postgres.
type PersistenceConfig struct {
	Driver       string         `yaml:"driver"`
	SaveDebounce time.Duration  `yaml:"saveDebounce"`
	Badger       BadgerConfig   `yaml:"badger"`
	SQLite       SQLiteConfig   `yaml:"sqlite"`
	Redis        RedisConfig    `yaml:"redis"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

// BadgerConfig holds the embedded BadgerDB store settings.
type BadgerConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"inMemory"`
}

// SQLiteConfig holds the SQLite store settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"poolSize"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// IndexConfig controls tokenization for the content index.
type IndexConfig struct {
	MinWordLength   int      `yaml:"minWordLength"`
	MaxWordsPerItem int      `yaml:"maxWordsPerItem"`
	Stopwords       []string `yaml:"stopwords"`
}

// PrefetchConfig controls the transition predictor and speculative loading.
type PrefetchConfig struct {
	MaxPrefetch    int           `yaml:"maxPrefetch"`
	MinProbability float64       `yaml:"minProbability"`
	PrefetchDelay  time.Duration `yaml:"prefetchDelay"`
}

// MemoryConfig controls the memory pressure evictor.
type MemoryConfig struct {
	SoftLimitMB   float64       `yaml:"softLimitMB"`
	HardLimitMB   float64       `yaml:"hardLimitMB"`
	CheckInterval time.Duration `yaml:"checkInterval"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// defaultStopwords is the baseline stop-word set applied when the config
// file does not provide one.
var defaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where", "who", "which", "their",
	"if", "each", "do", "not", "no", "so", "can",
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Persistence: PersistenceConfig{
			Driver:       "memory",
			SaveDebounce: 2 * time.Second,
			Badger: BadgerConfig{
				Dir: "./data/engine",
			},
			SQLite: SQLiteConfig{
				Path: "./data/engine.db",
			},
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				DB:       0,
				PoolSize: 10,
			},
			Postgres: PostgresConfig{
				Host:            "localhost",
				Port:            5432,
				Database:        "appshell",
				User:            "appshell",
				Password:        "localdev",
				SSLMode:         "disable",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 5 * time.Minute,
			},
		},
		Index: IndexConfig{
			MinWordLength:   2,
			MaxWordsPerItem: 100,
			Stopwords:       defaultStopwords,
		},
		Prefetch: PrefetchConfig{
			MaxPrefetch:    3,
			MinProbability: 0.15,
			PrefetchDelay:  500 * time.Millisecond,
		},
		Memory: MemoryConfig{
			SoftLimitMB:   120,
			HardLimitMB:   200,
			CheckInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads AE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AE_PERSISTENCE_DRIVER"); v != "" {
		cfg.Persistence.Driver = v
	}
	if v := os.Getenv("AE_BADGER_DIR"); v != "" {
		cfg.Persistence.Badger.Dir = v
	}
	if v := os.Getenv("AE_SQLITE_PATH"); v != "" {
		cfg.Persistence.SQLite.Path = v
	}
	if v := os.Getenv("AE_REDIS_ADDR"); v != "" {
		cfg.Persistence.Redis.Addr = v
	}
	if v := os.Getenv("AE_REDIS_PASSWORD"); v != "" {
		cfg.Persistence.Redis.Password = v
	}
	if v := os.Getenv("AE_POSTGRES_HOST"); v != "" {
		cfg.Persistence.Postgres.Host = v
	}
	if v := os.Getenv("AE_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Persistence.Postgres.Port = port
		}
	}
	if v := os.Getenv("AE_POSTGRES_DATABASE"); v != "" {
		cfg.Persistence.Postgres.Database = v
	}
	if v := os.Getenv("AE_POSTGRES_USER"); v != "" {
		cfg.Persistence.Postgres.User = v
	}
	if v := os.Getenv("AE_POSTGRES_PASSWORD"); v != "" {
		cfg.Persistence.Postgres.Password = v
	}
	if v := os.Getenv("AE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("AE_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
