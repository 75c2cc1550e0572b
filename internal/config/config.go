// Package config handles configuration loading for StockDeck.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	News    NewsConfig    `mapstructure:"news"    yaml:"news"`
	Market  MarketConfig  `mapstructure:"market"  yaml:"market"`
	LLM     LLMConfig     `mapstructure:"llm"     yaml:"llm"`
	Auth    AuthConfig    `mapstructure:"auth"    yaml:"auth"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// NewsConfig holds news provider credentials and widget settings.
type NewsConfig struct {
	AlphaVantageKey string `mapstructure:"alphavantage_key" yaml:"alphavantage_key"`
	NewsAPIKey      string `mapstructure:"newsapi_key"      yaml:"newsapi_key"`
	WireEnabled     bool   `mapstructure:"wire_enabled"     yaml:"wire_enabled"`
	WireLimit       int    `mapstructure:"wire_limit"       yaml:"wire_limit"`
}

// MarketConfig holds market data settings.
type MarketConfig struct {
	HistoryDays int `mapstructure:"history_days" yaml:"history_days"`
}

// LLMConfig holds the chat assistant backend configuration.
type LLMConfig struct {
	APIKey      string  `mapstructure:"api_key"     yaml:"api_key"`
	BaseURL     string  `mapstructure:"base_url"    yaml:"base_url"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"`
}

// AuthConfig holds session and user store settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	DBPath    string `mapstructure:"db_path"    yaml:"db_path"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockdeck/config.yaml (home directory)
//  3. /etc/stockdeck/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKDECK_<SECTION>_<KEY>, e.g., STOCKDECK_NEWS_NEWSAPI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockdeck"))
	v.AddConfigPath("/etc/stockdeck")

	v.SetEnvPrefix("STOCKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("STOCKDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// News defaults
	v.SetDefault("news.wire_enabled", true)
	v.SetDefault("news.wire_limit", 20)

	// Market defaults
	v.SetDefault("market.history_days", 90)

	// LLM defaults
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.max_tokens", 1024)

	// Auth defaults
	v.SetDefault("auth.db_path", filepath.Join(homeDir(), ".stockdeck", "users.db"))

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("STOCKDECK_NEWS_ALPHAVANTAGE_KEY"); key != "" {
		cfg.News.AlphaVantageKey = key
	}
	if key := os.Getenv("STOCKDECK_NEWS_NEWSAPI_KEY"); key != "" {
		cfg.News.NewsAPIKey = key
	}
	if key := os.Getenv("STOCKDECK_LLM_API_KEY"); key != "" {
		cfg.LLM.APIKey = key
	}
	if key := os.Getenv("STOCKDECK_AUTH_JWT_SECRET"); key != "" {
		cfg.Auth.JWTSecret = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
