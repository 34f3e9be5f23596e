// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"propshare-wallet/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string    `yaml:"server_port"`
	LogLevel   string    `yaml:"log_level"`
	DB         db.Config `yaml:"db"`
	Cache      Cache     `yaml:"cache"`
	PriceFeed  PriceFeed `yaml:"price_feed"`
}

// Cache holds the device-local scratch cache configuration.
type Cache struct {
	Path string `yaml:"path"`
}

// PriceFeed holds the live price feed configuration.
type PriceFeed struct {
	URL             string `yaml:"url"`
	DefaultPriceUSD string `yaml:"default_price_usd"`
	PollInterval    string `yaml:"poll_interval"` // Go duration string, e.g. "30s"
}

// Interval parses PollInterval, falling back to 30s on a bad value.
func (p PriceFeed) Interval() time.Duration {
	d, err := time.ParseDuration(p.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// defaults returns the configuration used when neither file nor environment
// overrides a value. The DB defaults target local development.
func defaults() *AppConfig {
	return &AppConfig{
		ServerPort: "8080",
		LogLevel:   "info",
		DB: db.Config{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "password",
			DBName:   "walletdb",
			SSLMode:  "disable",
		},
		Cache: Cache{Path: "scratch.db"},
		PriceFeed: PriceFeed{
			DefaultPriceUSD: "2500",
			PollInterval:    "30s",
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// (path taken from CONFIG_FILE), and environment variable overrides, in that
// order of precedence.
func LoadConfig() (*AppConfig, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.ServerPort, "SERVER_PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DB.Host, "DB_HOST")
	setString(&cfg.DB.User, "DB_USER")
	setString(&cfg.DB.Password, "DB_PASSWORD")
	setString(&cfg.DB.DBName, "DB_NAME")
	setString(&cfg.DB.SSLMode, "DB_SSLMODE")
	setString(&cfg.Cache.Path, "CACHE_PATH")
	setString(&cfg.PriceFeed.URL, "PRICE_FEED_URL")
	setString(&cfg.PriceFeed.DefaultPriceUSD, "PRICE_FEED_DEFAULT_USD")

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DB.Port = port
	}
	setString(&cfg.PriceFeed.PollInterval, "PRICE_FEED_POLL_INTERVAL")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
