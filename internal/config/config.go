package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	koanfjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type ServerConfig struct {
	Port                int `json:"port"`
	ReadTimeoutSeconds  int `json:"readTimeoutSeconds"`
	WriteTimeoutSeconds int `json:"writeTimeoutSeconds"`
}

type DatabaseConfig struct {
	URL string `json:"url"`
}

type RedisConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

type ProviderConfig struct {
	BaseURL        string `json:"baseUrl"`
	APIKey         string `json:"apiKey"`
	Profile        string `json:"profile"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxAttempts    int    `json:"maxAttempts"`
}

type CacheConfig struct {
	Precision            int     `json:"precision"`
	LiveTTLMinutes       int     `json:"liveTtlMinutes"`
	EstimatedTTLHours    int     `json:"estimatedTtlHours"`
	FetchTimeoutSeconds  int     `json:"fetchTimeoutSeconds"`
	MaxConcurrentFetches int     `json:"maxConcurrentFetches"`
	FallbackSpeedKmh     float64 `json:"fallbackSpeedKmh"`
}

type OptimizerConfig struct {
	MaxImprovementPasses   int    `json:"maxImprovementPasses"`
	MaxParallelTechnicians int    `json:"maxParallelTechnicians"`
	Timezone               string `json:"timezone"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Provider  ProviderConfig  `json:"provider"`
	Cache     CacheConfig     `json:"cache"`
	Optimizer OptimizerConfig `json:"optimizer"`
	Logging   LoggingConfig   `json:"logging"`
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		// Cold-cache recomputes wait on external matrix calls.
		c.Server.WriteTimeoutSeconds = 120
	}
	if c.Provider.Profile == "" {
		c.Provider.Profile = "driving-car"
	}
	if c.Provider.TimeoutSeconds == 0 {
		c.Provider.TimeoutSeconds = 10
	}
	if c.Provider.MaxAttempts == 0 {
		c.Provider.MaxAttempts = 4
	}
	if c.Cache.Precision == 0 {
		c.Cache.Precision = 4
	}
	if c.Cache.LiveTTLMinutes == 0 {
		c.Cache.LiveTTLMinutes = 10
	}
	if c.Cache.EstimatedTTLHours == 0 {
		c.Cache.EstimatedTTLHours = 6
	}
	if c.Cache.FetchTimeoutSeconds == 0 {
		c.Cache.FetchTimeoutSeconds = 5
	}
	if c.Cache.MaxConcurrentFetches == 0 {
		c.Cache.MaxConcurrentFetches = 5
	}
	if c.Cache.FallbackSpeedKmh == 0 {
		c.Cache.FallbackSpeedKmh = 40
	}
	if c.Optimizer.MaxImprovementPasses == 0 {
		c.Optimizer.MaxImprovementPasses = 3
	}
	if c.Optimizer.MaxParallelTechnicians == 0 {
		c.Optimizer.MaxParallelTechnicians = 5
	}
	if c.Optimizer.Timezone == "" {
		c.Optimizer.Timezone = "UTC"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: database.url is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("config: provider.apiKey is required")
	}
	if c.Provider.BaseURL == "" {
		return fmt.Errorf("config: provider.baseUrl is required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if _, err := time.LoadLocation(c.Optimizer.Timezone); err != nil {
		return fmt.Errorf("config: optimizer.timezone: %w", err)
	}
	return nil
}

// Load reads configuration from an optional YAML/JSON file, then applies
// TD_-prefixed environment overrides (TD_DATABASE__URL -> database.url).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = koanfjson.Parser()
		default:
			return nil, fmt.Errorf("config: unsupported format: %s", path)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("config: load %q: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("TD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "td_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("config: env overrides: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Location resolves the optimizer timezone. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Optimizer.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
