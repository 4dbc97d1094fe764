package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// Error taxonomy shared by every source adapter.
var (
	// ErrSourceUnavailable marks a source that could not be reached or
	// returned an unusable response. The tier continues without it.
	ErrSourceUnavailable = eris.New("source unavailable")

	// ErrRateLimited marks a source that refused the call because of a
	// rate limit. The source enters cooldown.
	ErrRateLimited = eris.New("rate limit exceeded")
)

// TransientError wraps an error that is safe to retry (429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError is returned by adapters when a source answers 429 or an
// equivalent quota error. RetryAfter is zero when the source gave no hint.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limit exceeded (retry after %s)", e.Source, e.RetryAfter)
	}
	return e.Source + ": rate limit exceeded"
}

// Is lets errors.Is(err, ErrRateLimited) match any RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// NewRateLimitError builds a RateLimitError, reading Retry-After from h when
// present (delta-seconds or HTTP date).
func NewRateLimitError(source string, h http.Header) *RateLimitError {
	e := &RateLimitError{Source: source}
	if h == nil {
		return e
	}
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return e
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			e.RetryAfter = d
		}
	}
	return e
}

// RetryAfter extracts the cooldown hint from a rate limit error, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// IsRateLimited reports whether err is, or wraps, a rate limit error.
func IsRateLimited(err error) bool {
	return err != nil && errors.Is(err, ErrRateLimited)
}

// HTTPStatusError classifies a non-2xx response from source. 429 becomes a
// RateLimitError, retryable statuses become transient, and everything else
// wraps ErrSourceUnavailable.
func HTTPStatusError(source string, resp *http.Response) error {
	if resp.StatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(source, resp.Header)
	}
	err := eris.Wrapf(ErrSourceUnavailable, "%s: unexpected status %d", source, resp.StatusCode)
	if IsTransientHTTPStatus(resp.StatusCode) {
		return NewTransientError(err, resp.StatusCode)
	}
	return err
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// HTTP clients often flatten the syscall error into text.
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"unexpected eof",
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry. 429 is excluded: rate
// limits put the source in cooldown instead of being retried in place.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsFallbackWorthy reports whether a failed preferred strategy should hand
// over to its fallback: transient failures, unavailable or rate-limited
// sources, an open breaker, or a per-call deadline. Caller cancellation and
// anything else are terminal.
func IsFallbackWorthy(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, ErrSourceUnavailable),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrCircuitOpen):
		return true
	default:
		return IsTransient(err)
	}
}

// TripsBreaker reports whether err counts as a source failure for circuit
// breaking. Rate limits have their own cooldown, and a cancelled caller says
// nothing about the source's health.
func TripsBreaker(err error) bool {
	if err == nil {
		return false
	}
	return !IsRateLimited(err) && !errors.Is(err, context.Canceled)
}
