package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Polygon   PolygonConfig  `mapstructure:"polygon"`
	Server    ServerConfig   `mapstructure:"server"`
	Analysis  AnalysisConfig `mapstructure:"analysis"`
	Scan      ScanConfig     `mapstructure:"scan"`
	Watchlist []string       `mapstructure:"watchlist"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

type PolygonConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	TimeoutSec    int    `mapstructure:"timeout_sec"`
	RetryCount    int    `mapstructure:"retry_count"`
	RetryDelaySec int    `mapstructure:"retry_delay_sec"`
	RatePerSecond int    `mapstructure:"rate_per_second"`
}

type ServerConfig struct {
	Port             string `mapstructure:"port"`
	CacheTTLSec      int    `mapstructure:"cache_ttl_sec"`
	WSEnabled        bool   `mapstructure:"ws_enabled"`
	WSIntervalSec    int    `mapstructure:"ws_interval_sec"`
	ShutdownGraceSec int    `mapstructure:"shutdown_grace_sec"`
}

type AnalysisConfig struct {
	MaxExpiryDays   int    `mapstructure:"max_expiry_days"`
	MinOpenInterest int64  `mapstructure:"min_open_interest"`
	ContractLimit   int    `mapstructure:"contract_limit"`
	Timezone        string `mapstructure:"timezone"`
}

type ScanConfig struct {
	Workers int `mapstructure:"workers"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func (p PolygonConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSec) * time.Second
}

func (p PolygonConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelaySec) * time.Second
}

func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSec) * time.Second
}

func (s ServerConfig) WSInterval() time.Duration {
	return time.Duration(s.WSIntervalSec) * time.Second
}

func (s ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceSec) * time.Second
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("polygon.base_url", "https://api.polygon.io")
	v.SetDefault("polygon.timeout_sec", 30)
	v.SetDefault("polygon.retry_count", 3)
	v.SetDefault("polygon.retry_delay_sec", 2)
	v.SetDefault("polygon.rate_per_second", 4)
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cache_ttl_sec", 60)
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("server.ws_interval_sec", 30)
	v.SetDefault("server.shutdown_grace_sec", 30)
	v.SetDefault("analysis.max_expiry_days", 60)
	v.SetDefault("analysis.min_open_interest", 100)
	v.SetDefault("analysis.contract_limit", 250)
	v.SetDefault("analysis.timezone", "America/New_York")
	v.SetDefault("scan.workers", 3)
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("TRADEPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("polygon.api_key", "POLYGON_API_KEY")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Polygon.APIKey == "" {
		return fmt.Errorf("api_key is required (set POLYGON_API_KEY env var)")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan workers must be >= 1")
	}
	if err := ValidateParams(c.Analysis.MaxExpiryDays, c.Analysis.MinOpenInterest); err != nil {
		return err
	}
	if err := ValidateWatchlist(c.Watchlist); err != nil {
		return err
	}
	return nil
}
