// Package resilience wraps outbound calls with per-attempt timeouts and
// exponential-backoff retries.
package resilience

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

// JitterMode selects how backoff delays are randomized.
type JitterMode string

const (
	JitterNone JitterMode = "none"
	JitterFull JitterMode = "full"
)

// RetryConfig defines retry behavior.
type RetryConfig struct {
	MaxRetries           int
	InitialDelay         time.Duration
	MaxDelay             time.Duration
	BackoffMultiplier    float64
	RetryableStatusCodes []int
	Jitter               JitterMode
}

// DefaultRetryableStatusCodes are the HTTP statuses worth retrying.
var DefaultRetryableStatusCodes = []int{408, 429, 500, 502, 503, 504}

// DefaultRetryConfig returns the defaults: 3 retries, 1s doubling to 10s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:           3,
		InitialDelay:         1 * time.Second,
		MaxDelay:             10 * time.Second,
		BackoffMultiplier:    2,
		RetryableStatusCodes: slices.Clone(DefaultRetryableStatusCodes),
		Jitter:               JitterNone,
	}
}

// Validate reports every invalid field at once.
func (c RetryConfig) Validate() error {
	var errs []error
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries))
	}
	if c.InitialDelay <= 0 {
		errs = append(errs, fmt.Errorf("initial_delay must be > 0, got %s", c.InitialDelay))
	}
	if c.MaxDelay < c.InitialDelay {
		errs = append(errs, fmt.Errorf("max_delay (%s) must be >= initial_delay (%s)", c.MaxDelay, c.InitialDelay))
	}
	if c.BackoffMultiplier < 1 {
		errs = append(errs, fmt.Errorf("backoff_multiplier must be >= 1, got %g", c.BackoffMultiplier))
	}
	switch c.Jitter {
	case "", JitterNone, JitterFull:
	default:
		errs = append(errs, fmt.Errorf("unknown jitter mode %q", c.Jitter))
	}
	return errors.Join(errs...)
}

// retryableCodes are transport codes for calls that never got a response.
var retryableCodes = []string{
	transport.CodeAborted,
	transport.CodeDNS,
	transport.CodeRefused,
	transport.CodeTimedOut,
}

// IsRetryable reports whether a raw, unclassified error is transient.
func IsRetryable(err error, statusCodes []int) bool {
	if err == nil {
		return false
	}
	code, resp := transport.Inspect(err)
	if resp == nil {
		return slices.Contains(retryableCodes, code)
	}
	return slices.Contains(statusCodes, resp.Status)
}

// BackoffDelay returns min(initial * multiplier^attempt, max).
func BackoffDelay(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	return time.Duration(delay)
}

// FullJitter picks a delay uniformly in [0, d].
func FullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d) + 1))
}

// Schedule lists the delays waited before each retry.
func Schedule(cfg RetryConfig) []time.Duration {
	out := make([]time.Duration, 0, cfg.MaxRetries)
	for i := 0; i < cfg.MaxRetries; i++ {
		out = append(out, BackoffDelay(i, cfg))
	}
	return out
}
