package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Search providers selectable with SEARCH_PROVIDER.
const (
	SearchProviderDuckDuckGo = "duckduckgo"
	SearchProviderSearXNG    = "searxng"
	SearchProviderNone       = "none"
)

type Config struct {
	AppPort             int    `mapstructure:"APP_PORT"`
	DatabasePath        string `mapstructure:"DATABASE_PATH"`
	OllamaURL           string `mapstructure:"OLLAMA_URL"`
	InitialSystemPrompt string `mapstructure:"INITIAL_SYSTEM_PROMPT"`
	LogLevel            string `mapstructure:"LOG_LEVEL"`

	SearchProvider    string        `mapstructure:"SEARCH_PROVIDER"`
	SearXNGURL        string        `mapstructure:"SEARXNG_URL"`
	SearXNGUsername   string        `mapstructure:"SEARXNG_USERNAME"`
	SearXNGPassword   string        `mapstructure:"SEARXNG_PASSWORD"`
	SearchResultLimit int           `mapstructure:"SEARCH_RESULT_LIMIT"`
	SearchRateLimit   float64       `mapstructure:"SEARCH_RATE_LIMIT"`
	SearchCacheTTL    time.Duration `mapstructure:"SEARCH_CACHE_TTL"`
	// RedisAddr enables the search cache when set.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`

	configFile string
}

// LoadConfig reads the configuration from an optional .env file and the
// environment. Environment variables take precedence over the file.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("APP_PORT", 8000)
	v.SetDefault("DATABASE_PATH", "/data/chat.db")
	v.SetDefault("OLLAMA_URL", "http://ollama:11434")
	v.SetDefault("INITIAL_SYSTEM_PROMPT", "You are a helpful assistant.")
	v.SetDefault("LOG_LEVEL", "INFO")
	v.SetDefault("SEARCH_PROVIDER", SearchProviderDuckDuckGo)
	v.SetDefault("SEARXNG_URL", "")
	v.SetDefault("SEARXNG_USERNAME", "")
	v.SetDefault("SEARXNG_PASSWORD", "")
	v.SetDefault("SEARCH_RESULT_LIMIT", 5)
	v.SetDefault("SEARCH_RATE_LIMIT", 1.0)
	v.SetDefault("SEARCH_CACHE_TTL", time.Hour)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", 15*time.Second)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.SearchProvider = strings.ToLower(strings.TrimSpace(cfg.SearchProvider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.configFile = v.ConfigFileUsed()

	return &cfg, nil
}

// ConfigFile returns the .env file the configuration was read from, or "".
func (c *Config) ConfigFile() string {
	return c.configFile
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("APP_PORT must be between 1 and 65535, got %d", c.AppPort)
	}
	switch c.SearchProvider {
	case SearchProviderDuckDuckGo, SearchProviderNone:
	case SearchProviderSearXNG:
		if c.SearXNGURL == "" {
			return fmt.Errorf("SEARXNG_URL is required when SEARCH_PROVIDER is %q", SearchProviderSearXNG)
		}
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider)
	}
	if c.SearchResultLimit < 1 || c.SearchResultLimit > 20 {
		return fmt.Errorf("SEARCH_RESULT_LIMIT must be between 1 and 20, got %d", c.SearchResultLimit)
	}
	if c.SearchRateLimit <= 0 {
		return fmt.Errorf("SEARCH_RATE_LIMIT must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}
