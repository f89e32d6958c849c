package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/metrics"
)

var robotsRetryBackoff = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// robotsFallbackTransport retries robots.txt probes that time out and, when
// they keep timing out, answers with an allow-all file so that a flaky TLS
// endpoint does not block the page itself.
type robotsFallbackTransport struct {
	base   http.RoundTripper
	logger *zap.Logger
	sleep  func(context.Context, time.Duration) error
}

func newRobotsFallbackTransport(base http.RoundTripper, logger *zap.Logger) *robotsFallbackTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &robotsFallbackTransport{base: base, logger: logger, sleep: sleepWithContext}
}

func (t *robotsFallbackTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("robots transport received nil request")
	}
	if !isRobotsTxtRequest(req) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, fmt.Errorf("base roundtrip: %w", err)
		}
		return resp, nil
	}
	return t.roundTripWithRetry(req)
}

func (t *robotsFallbackTransport) roundTripWithRetry(req *http.Request) (*http.Response, error) {
	maxAttempts := len(robotsRetryBackoff) + 1
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := t.base.RoundTrip(req.Clone(req.Context()))
		if err == nil {
			return resp, nil
		}
		if !isTransientTLSError(err) || req.Context().Err() != nil {
			return nil, fmt.Errorf("robots roundtrip: %w", err)
		}
		if attempt == maxAttempts-1 {
			t.logger.Warn("robots.txt unreachable, assuming allow-all",
				zap.String("host", req.URL.Host), zap.Error(err))
			metrics.ObserveRobotsFallback(req.URL.Host)
			return syntheticRobotsAllowAllResponse(req), nil
		}
		if err := t.sleep(req.Context(), robotsRetryBackoff[attempt]); err != nil {
			return nil, fmt.Errorf("robots roundtrip backoff sleep: %w", err)
		}
	}
	return nil, fmt.Errorf("robots roundtrip exhausted retries")
}

func isRobotsTxtRequest(req *http.Request) bool {
	if req == nil || req.URL == nil {
		return false
	}
	return strings.EqualFold(req.URL.Path, "/robots.txt")
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("robots backoff sleep context: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func syntheticRobotsAllowAllResponse(req *http.Request) *http.Response {
	const body = "User-agent: *\nAllow: /"
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Header:        make(http.Header),
		Request:       req,
	}
}

func isTransientTLSError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "tls: handshake timeout")
}
