package config

import (
	"time"

	"github.com/vietddude/nutriscan/internal/infra/cache"
	"github.com/vietddude/nutriscan/internal/infra/gemini"
	"github.com/vietddude/nutriscan/internal/infra/nutrition"
	"github.com/vietddude/nutriscan/internal/infra/resilience"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig      `yaml:"server"`
	Gemini    gemini.Config     `yaml:"gemini"`
	Nutrition nutrition.Config  `yaml:"nutrition"`
	Redis     cache.RedisConfig `yaml:"redis"`
	Cache     cache.Config      `yaml:"cache"`
	Retry     RetryConfig       `yaml:"retry"`
	Analysis  AnalysisConfig    `yaml:"analysis"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetryConfig is the YAML form of resilience.RetryConfig.
type RetryConfig struct {
	MaxRetries           *int          `yaml:"max_retries"` // nil = default, 0 disables retries
	InitialDelay         time.Duration `yaml:"initial_delay"`
	MaxDelay             time.Duration `yaml:"max_delay"`
	BackoffMultiplier    float64       `yaml:"backoff_multiplier"`
	RetryableStatusCodes []int         `yaml:"retryable_status_codes"`
	Jitter               string        `yaml:"jitter"` // none, full
}

// Policy converts to the runtime retry policy.
func (r RetryConfig) Policy() resilience.RetryConfig {
	p := resilience.RetryConfig{
		InitialDelay:         r.InitialDelay,
		MaxDelay:             r.MaxDelay,
		BackoffMultiplier:    r.BackoffMultiplier,
		RetryableStatusCodes: r.RetryableStatusCodes,
		Jitter:               resilience.JitterMode(r.Jitter),
	}
	if r.MaxRetries != nil {
		p.MaxRetries = *r.MaxRetries
	}
	return p
}

// AnalysisConfig controls model answer validation.
type AnalysisConfig struct {
	Strict bool `yaml:"strict"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}
