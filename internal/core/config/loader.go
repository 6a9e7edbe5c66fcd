package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/nutriscan/internal/infra/cache"
	"github.com/vietddude/nutriscan/internal/infra/gemini"
	"github.com/vietddude/nutriscan/internal/infra/nutrition"
	"github.com/vietddude/nutriscan/internal/infra/resilience"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${ENV} references and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		// Covers a full scan: identification, lookup and verdict with retries.
		c.Server.WriteTimeout = 2 * time.Minute
	}

	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = gemini.DefaultBaseURL
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = gemini.DefaultModel
	}
	if c.Gemini.Timeout == 0 {
		c.Gemini.Timeout = 30 * time.Second
	}
	if c.Gemini.APIKey == "" {
		c.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.Nutrition.BaseURL == "" {
		c.Nutrition.BaseURL = nutrition.DefaultBaseURL
	}
	if c.Nutrition.Timeout == 0 {
		c.Nutrition.Timeout = 10 * time.Second
	}
	if c.Nutrition.APIKey == "" {
		c.Nutrition.APIKey = os.Getenv("NUTRITION_API_KEY")
	}

	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = cache.DefaultTTL
	}
	if c.Cache.Size == 0 {
		c.Cache.Size = cache.DefaultSize
	}

	def := resilience.DefaultRetryConfig()
	if c.Retry.MaxRetries == nil {
		n := def.MaxRetries
		c.Retry.MaxRetries = &n
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = def.InitialDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = def.MaxDelay
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = def.BackoffMultiplier
	}
	if len(c.Retry.RetryableStatusCodes) == 0 {
		c.Retry.RetryableStatusCodes = slices.Clone(def.RetryableStatusCodes)
	}
	if c.Retry.Jitter == "" {
		c.Retry.Jitter = string(def.Jitter)
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that the service can start with this configuration.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini.api_key is required (or set GEMINI_API_KEY)"))
	}
	if c.Nutrition.APIKey == "" {
		errs = append(errs, errors.New("nutrition.api_key is required (or set NUTRITION_API_KEY)"))
	}
	if c.Cache.Size < 0 {
		errs = append(errs, fmt.Errorf("cache.size must be >= 0, got %d", c.Cache.Size))
	}
	if err := c.Retry.Policy().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retry: %w", err))
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}
	return errors.Join(errs...)
}
