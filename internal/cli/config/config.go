package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// FileName is the base name of the config file looked up in the working directory
const FileName = "halopress"

// EnvPrefix prefixes every environment override, e.g. HALOPRESS_DATABASE_URL
const EnvPrefix = "HALOPRESS"

// Config represents the halopress configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Migration MigrationConfig `mapstructure:"migration"`
	Summary   SummaryConfig   `mapstructure:"summary"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	URL          string `mapstructure:"url"`
	TablePrefix  string `mapstructure:"table_prefix"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig represents the version cache backend. An empty Addr selects the in-memory cache.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`

	// MaxEntries bounds the in-memory cache
	MaxEntries int `mapstructure:"max_entries"`
}

// LogConfig represents logger configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MigrationConfig represents document walk configuration
type MigrationConfig struct {
	PageSize int `mapstructure:"page_size"`
}

// SummaryConfig represents summary builder configuration
type SummaryConfig struct {
	DescriptionLimit int    `mapstructure:"description_limit"`
	AssetURLPattern  string `mapstructure:"asset_url_pattern"`
}

// WorkerConfig represents the reconcile scheduler configuration
type WorkerConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load loads the configuration from halopress.yml or halopress.yaml in the working
// directory, then applies HALOPRESS_* environment overrides
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads the configuration from path, or from the working directory when path is empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "halopress.db")
	v.SetDefault("database.table_prefix", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "halopress:")
	v.SetDefault("redis.ttl", time.Hour)
	v.SetDefault("redis.max_entries", 512)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("migration.page_size", 100)
	v.SetDefault("summary.description_limit", 200)
	v.SetDefault("summary.asset_url_pattern", "/assets/%s/raw")
	v.SetDefault("worker.schedule", "@every 5m")
	v.SetDefault("worker.timeout", 10*time.Minute)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if root, err := GetProjectRoot(); err == nil {
			v.AddConfigPath(root)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL of cfg. DATABASE_URL replaces it unless
// HALOPRESS_DATABASE_URL is set, which the loader already applied.
func GetDatabaseURL(cfg *Config) string {
	if os.Getenv(EnvPrefix+"_DATABASE_URL") != "" {
		return cfg.Database.URL
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return cfg.Database.URL
}

// GetProjectRoot walks up from the working directory to the first halopress config file
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			if _, err := os.Stat(filepath.Join(dir, FileName+ext)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s.yml found in any parent directory", FileName)
		}
		dir = parent
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "sqlite3", "pgx", "postgres":
	default:
		return fmt.Errorf("database.driver must be one of sqlite3, pgx, postgres, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	if cfg.Migration.PageSize <= 0 {
		return fmt.Errorf("migration.page_size must be positive, got: %d", cfg.Migration.PageSize)
	}
	if cfg.Summary.DescriptionLimit <= 0 {
		return fmt.Errorf("summary.description_limit must be positive, got: %d", cfg.Summary.DescriptionLimit)
	}
	if strings.Count(cfg.Summary.AssetURLPattern, "%s") != 1 {
		return fmt.Errorf("summary.asset_url_pattern must contain exactly one %%s, got: %s", cfg.Summary.AssetURLPattern)
	}
	if _, err := cron.ParseStandard(cfg.Worker.Schedule); err != nil {
		return fmt.Errorf("worker.schedule is invalid: %w", err)
	}
	if cfg.Worker.Timeout < 0 {
		return fmt.Errorf("worker.timeout must not be negative, got: %s", cfg.Worker.Timeout)
	}
	return nil
}
