package fetch

import (
	"errors"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// RetryPolicy controls how transient download failures are retried. The
// policy is a plain value handed to the Downloader; there is no retry
// logic anywhere else.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; subsequent waits
	// double until MaxDelay.
	BaseDelay time.Duration
	// MaxDelay caps the exponential growth.
	MaxDelay time.Duration
	// Jitter is the maximum random addition to each wait, spreading out
	// concurrent retries.
	Jitter time.Duration
}

// DefaultRetryPolicy matches the dist server's rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Jitter:      500 * time.Millisecond,
	}
}

// Delay returns the wait before the given attempt (attempt 1 is the retry
// after the first failure).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt-1)
	if d > p.MaxDelay || d <= 0 {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

// transientError marks a failure worth retrying.
type transientError struct {
	cause error
}

func (e *transientError) Error() string {
	return e.cause.Error()
}

func (e *transientError) Unwrap() error {
	return e.cause
}

// isTransient reports whether an error is a retryable network condition:
// timeouts, connection resets, refused connections, and truncated bodies.
// HTTP status handling happens in the downloader; this covers transport
// errors only.
func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	return false
}
