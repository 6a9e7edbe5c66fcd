// Package cache stores nutrition lookups. Redis is used when configured;
// otherwise an in-process LRU keeps the service usable on its own.
package cache

import (
	"context"
	"strings"
	"time"
)

// DefaultTTL is how long a nutrition lookup stays cached.
const DefaultTTL = 24 * time.Hour

// Store is a string key/value store with per-key expiry.
type Store interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Ping(ctx context.Context) error
	Close() error
}

// Config selects and tunes the store.
type Config struct {
	TTL      time.Duration `yaml:"ttl"`
	Size     int           `yaml:"size"`     // LRU capacity when Redis is not used
	Coalesce bool          `yaml:"coalesce"` // share one lookup between concurrent misses
}

// NutritionKey builds the cache key for a food query:
// "nutrition:" + lower-cased, trimmed, whitespace-collapsed query.
func NutritionKey(food string) string {
	return "nutrition:" + Normalize(food)
}

// Normalize lower-cases s and collapses runs of whitespace to one space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
