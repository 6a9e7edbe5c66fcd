package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

// TimeoutError is returned when an attempt outlives its deadline.
// It reports transport.CodeAborted so retry and classification treat it
// like an aborted request.
type TimeoutError struct {
	Message string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("operation timed out after %s", e.After)
}

func (e *TimeoutError) TransportCode() string { return transport.CodeAborted }

// Timeout lets the error satisfy net.Error-style checks.
func (e *TimeoutError) Timeout() bool { return true }

// WithTimeout runs op and stops waiting once timeout elapses. The context
// handed to op is cancelled when WithTimeout returns, so a timed out HTTP
// request is aborted too. A timeout <= 0 runs op without a deadline.
func WithTimeout[T any](
	ctx context.Context,
	op func(ctx context.Context) (T, error),
	timeout time.Duration,
	message string,
) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := op(opCtx)
		done <- outcome{val: v, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case o := <-done:
		return o.val, o.err
	case <-timer.C:
		return zero, &TimeoutError{Message: message, After: timeout}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
