package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

func TestBackoffDelay_Defaults(t *testing.T) {
	cfg := DefaultRetryConfig()
	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, BackoffDelay(i, cfg), "attempt %d", i)
	}
}

func TestBackoffDelay_Monotonic(t *testing.T) {
	configs := []RetryConfig{
		DefaultRetryConfig(),
		{InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffMultiplier: 1.5},
		{InitialDelay: time.Second, MaxDelay: time.Second, BackoffMultiplier: 3},
		{InitialDelay: 250 * time.Millisecond, MaxDelay: time.Minute, BackoffMultiplier: 1},
	}

	for _, cfg := range configs {
		prev := BackoffDelay(0, cfg)
		for i := 1; i < 20; i++ {
			cur := BackoffDelay(i, cfg)
			assert.GreaterOrEqual(t, cur, prev, "attempt %d with %+v", i, cfg)
			assert.LessOrEqual(t, cur, cfg.MaxDelay)
			prev = cur
		}
	}
}

func TestSchedule(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, Schedule(cfg))
}

func TestFullJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := FullJitter(time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	assert.Equal(t, time.Duration(0), FullJitter(0))
}

func TestRetryConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultRetryConfig().Validate())

	bad := RetryConfig{
		MaxRetries:        -1,
		InitialDelay:      2 * time.Second,
		MaxDelay:          time.Second,
		BackoffMultiplier: 0.5,
		Jitter:            "sometimes",
	}
	err := bad.Validate()
	require.Error(t, err)
	for _, part := range []string{"max_retries", "max_delay", "backoff_multiplier", "jitter"} {
		assert.Contains(t, err.Error(), part)
	}
}

func statusErr(code int) error {
	return transport.FromResponse("GET /x", &http.Response{StatusCode: code, Header: http.Header{}}, nil, nil)
}

func TestIsRetryable(t *testing.T) {
	codes := DefaultRetryableStatusCodes

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"aborted", transport.FromErr("GET /x", context.DeadlineExceeded), true},
		{"dns", transport.FromErr("GET /x", &net.DNSError{Err: "no such host"}), true},
		{"timeout error", &TimeoutError{Message: "slow"}, true},
		{"no code", transport.FromErr("GET /x", errors.New("tls failure")), false},
		{"plain error", errors.New("boom"), false},
		{"408", statusErr(408), true},
		{"429", statusErr(429), true},
		{"500", statusErr(500), true},
		{"503", statusErr(503), true},
		{"400", statusErr(400), false},
		{"401", statusErr(401), false},
		{"501", statusErr(501), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err, codes))
		})
	}
}

func TestIsRetryable_CustomCodes(t *testing.T) {
	assert.False(t, IsRetryable(statusErr(503), []int{429}))
	assert.True(t, IsRetryable(statusErr(429), []int{429}))
}
