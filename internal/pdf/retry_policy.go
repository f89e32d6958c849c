package pdf

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"
)

// RetryPolicy decides whether a failed download attempt is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, status int, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy retries transport failures and throttling/server
// statuses with a doubling delay.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	statuses   map[int]bool
}

// RetryableStatuses are the HTTP statuses that trigger another attempt.
var RetryableStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// NewExponentialRetryPolicy builds a policy allowing maxRetries retries after the first attempt.
func NewExponentialRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	statuses := make(map[int]bool, len(RetryableStatuses))
	for _, s := range RetryableStatuses {
		statuses[s] = true
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		statuses:   statuses,
	}
}

// ShouldRetry reports whether attempt (0-based count of retries already made)
// may be followed by another. Cancellation is never retried.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, status int, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return p.statuses[status]
}

// Backoff returns base * 2^attempt, capped at the policy maximum.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}
