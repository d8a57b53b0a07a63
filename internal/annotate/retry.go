package annotate

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"
)

// RetryPolicy controls how many attempts a call gets and how long to wait
// between them. Backoff timing is a pure function of the attempt number so
// it can be tested without a clock.
type RetryPolicy struct {
	// MaxAttempts is the total number of call attempts, not the number of
	// retries after the first.
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the wait before the attempt following zero-indexed attempt:
// BaseDelay * 2^attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt < 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return "annotation request: http " + http.StatusText(e.StatusCode)
}

// retryable classifies a failed attempt. Transport-level trouble (network
// errors, timeouts, 408/429/5xx) is retryable; anything the service rejected
// outright (auth, malformed request) is fatal and spends no retry budget.
// Caller cancellation is handled by Annotate before this runs: per-attempt
// timeouts from http.Client.Timeout match context.DeadlineExceeded but arrive
// wrapped in url.Error, so classification here goes by transport type.
func retryable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return false
}
