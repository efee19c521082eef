package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research service.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig points at an OpenAI-compatible completion endpoint (vLLM or hosted).
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if l.BaseURL == "" {
		return fmt.Errorf("llm.base_url must be configured")
	}
	if l.Model == "" {
		return fmt.Errorf("llm.model must be configured")
	}
	return nil
}

// SearchConfig selects and configures the web-search provider.
type SearchConfig struct {
	Provider   string        `mapstructure:"provider"` // searxng | tavily
	BaseURL    string        `mapstructure:"base_url"` // searxng instance URL
	APIKey     string        `mapstructure:"api_key"`  // tavily key
	MaxResults int           `mapstructure:"max_results"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// FetchConfig selects the crawl/extract fetcher.
type FetchConfig struct {
	Provider string        `mapstructure:"provider"` // static | chromedp
	MaxChars int           `mapstructure:"max_chars"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // inmemory | redis
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig carries connection settings for the redis cache backend.
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Pass string `mapstructure:"pass"`
	DB   int    `mapstructure:"db"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "inmemory":
	case "redis":
		if c.Redis.Host == "" || c.Redis.Port == "" {
			return fmt.Errorf("cache.redis.host/port must be configured for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported cache backend: %s", c.Backend)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	return nil
}

// WorkerConfig bounds pipeline concurrency.
type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size"`
}

// ArchiveConfig configures the optional Postgres archive of terminal jobs.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"` // postgres DSN
}

// LoadConfig reads configuration from file and MARKETSCOUT_* environment
// variables. Path may be empty, in which case config.json is searched in the
// usual locations.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.base_url", "http://localhost:8000/v1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("llm.model", "nvidia/NVIDIA-Nemotron-3-Nano-30B-A3B-BF16")
	viper.SetDefault("search.provider", "searxng")
	viper.SetDefault("search.base_url", "http://localhost:8888")
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("search.timeout", 30*time.Second)
	viper.SetDefault("fetch.provider", "static")
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("fetch.timeout", 45*time.Second)
	viper.SetDefault("cache.backend", "inmemory")
	viper.SetDefault("cache.ttl", time.Hour)
	viper.SetDefault("worker.pool_size", 4)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("MARKETSCOUT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; defaults plus env cover the common case.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if config.Worker.PoolSize <= 0 {
		config.Worker.PoolSize = 4
	}
	return &config
}
