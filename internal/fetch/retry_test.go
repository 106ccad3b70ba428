package fetch

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second}, // capped
		{6, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d): got %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicyJitterBounds(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Second,
		Jitter:      100 * time.Millisecond,
	}

	for i := 0; i < 50; i++ {
		d := p.Delay(1)
		if d < time.Second || d >= time.Second+100*time.Millisecond {
			t.Fatalf("jittered delay %v outside [1s, 1.1s)", d)
		}
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"conn_reset", syscall.ECONNRESET, true},
		{"conn_refused", syscall.ECONNREFUSED, true},
		{"wrapped_reset", fmt.Errorf("dial: %w", syscall.ECONNRESET), true},
		{"marked_transient", &transientError{cause: errors.New("truncated body")}, true},
		{"plain_error", errors.New("no such host"), false},
		{"nil_is_not_transient", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient(%v): got %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
