package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/nutriscan/internal/metrics"
)

// Attempt describes one finished attempt of a logical operation.
type Attempt struct {
	Index   int
	Err     error
	Delay   time.Duration // waited before this attempt
	Latency time.Duration
}

// RunOptions configures Run.
type RunOptions struct {
	Config RetryConfig
	// Timeout bounds each attempt individually. <= 0 disables it.
	Timeout time.Duration
	// Source names the upstream in logs, metrics and timeout messages.
	Source string
	// OnAttempt, if set, is called after every attempt.
	OnAttempt func(Attempt)
	Logger    *slog.Logger
}

// Run executes op up to Config.MaxRetries+1 times. Each attempt is bounded by
// Timeout. Failures that IsRetryable rejects are returned at once; retryable
// ones are retried after BackoffDelay. The last error is returned unchanged.
// There is no deadline across attempts other than ctx.
func Run[T any](
	ctx context.Context,
	op func(ctx context.Context) (T, error),
	opts RunOptions,
) (T, error) {
	cfg := opts.Config
	if cfg.InitialDelay == 0 && cfg.MaxDelay == 0 && cfg.BackoffMultiplier == 0 {
		cfg = DefaultRetryConfig()
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	source := opts.Source
	if source == "" {
		source = "upstream"
	}
	timeoutMsg := fmt.Sprintf("%s request timed out after %s", source, opts.Timeout)

	var (
		result T
		index  int
		waited time.Duration
	)

	// index has already moved past the failed attempt when Next is called.
	next := retry.BackoffFunc(func() (time.Duration, bool) {
		d := BackoffDelay(index-1, cfg)
		if cfg.Jitter == JitterFull {
			d = FullJitter(d)
		}
		waited = d
		return d, false
	})
	backoff := retry.WithMaxRetries(uint64(cfg.MaxRetries), next)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		i := index
		index++
		if i > 0 {
			metrics.UpstreamRetries.WithLabelValues(source).Inc()
		}
		metrics.UpstreamAttempts.WithLabelValues(source).Inc()

		start := time.Now()
		v, err := WithTimeout(ctx, op, opts.Timeout, timeoutMsg)
		latency := time.Since(start)
		metrics.UpstreamLatency.WithLabelValues(source).Observe(latency.Seconds())

		if opts.OnAttempt != nil {
			opts.OnAttempt(Attempt{Index: i, Err: err, Delay: waited, Latency: latency})
		}

		if err == nil {
			result = v
			return nil
		}

		if i >= cfg.MaxRetries {
			log.Debug("Upstream attempts exhausted", "source", source, "attempt", i, "error", err)
			return err
		}
		if !IsRetryable(err, cfg.RetryableStatusCodes) {
			log.Debug("Upstream error is not retryable", "source", source, "attempt", i, "error", err)
			return err
		}

		log.Debug("Retrying upstream call",
			"source", source,
			"attempt", i,
			"next_delay", BackoffDelay(i, cfg),
			"error", err,
		)
		return retry.RetryableError(err)
	})

	if err != nil {
		metrics.UpstreamCalls.WithLabelValues(source, "failure").Inc()
		var zero T
		return zero, err
	}
	metrics.UpstreamCalls.WithLabelValues(source, "success").Inc()
	return result, nil
}
