// Package retry classifies model-call errors and computes backoff delays
// for the agent loop's per-iteration retry (spec.md §4.4), grounded in the
// teacher's toolRetryDelays/parseRetryAfter pattern in internal/mcp/proxy.go.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxAttempts is the default number of attempts for the per-iteration
// model call (spec.md §4.10). The agent loop takes its bound from
// EngineConfig.MaxRetryAttempts, which defaults to the same value.
const MaxAttempts = 5

const (
	initialDelay = 2 * time.Second
	factor       = 2
	defaultCap   = 30 * time.Second
)

// Code is a structured provider error code, carried on ProviderError.
type Code string

const (
	CodeAuthError      Code = "AUTH_ERROR"
	CodeInvalidRequest Code = "INVALID_REQUEST"
	CodeAborted        Code = "ABORTED"
	CodeOverloaded     Code = "OVERLOADED"
	CodeRateLimit      Code = "RATE_LIMIT"
	CodeServerError    Code = "SERVER_ERROR"
)

// ProviderError is the typed error shape a provider adapter may return so
// the classifier can make a precise retry decision without string matching.
type ProviderError struct {
	Code       Code
	Status     int
	Headers    http.Header
	Message    string
	ContextMax bool // true when this is a context-window overflow, never retried
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("provider error (code=%s status=%d)", e.Code, e.Status)
}

var retryableMessage = regexp.MustCompile(`(?i)overloaded|rate limit|429|exhausted|unavailable`)

// Classify returns the human-readable retry reason, or "" if err should not
// be retried. Cancellation, context overflow and the permanent provider
// codes are never retryable.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ""
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.ContextMax {
			return ""
		}
		switch perr.Code {
		case CodeAuthError, CodeInvalidRequest, CodeAborted:
			return ""
		case CodeOverloaded:
			return "overloaded"
		case CodeRateLimit:
			return "rate limited"
		case CodeServerError:
			return "server error"
		}
		if perr.Status == 429 {
			return "rate limited"
		}
		if perr.Status == 529 || (perr.Status >= 500 && perr.Status < 600) {
			return "server error"
		}
		if perr.Status >= 400 && perr.Status < 500 {
			return ""
		}
	}

	if retryableMessage.MatchString(err.Error()) {
		return "transient error"
	}
	return ""
}

// Delay computes how long to wait before attempt (1-based) given the last
// error, in the priority order of spec.md §4.4: retry-after-ms header,
// retry-after header (seconds or HTTP date), then exponential backoff.
func Delay(err error, attempt int) time.Duration {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.Headers != nil {
		if d, ok := delayFromHeaders(perr.Headers); ok {
			return d
		}
	}
	return exponentialDelay(attempt, defaultCap)
}

func delayFromHeaders(h http.Header) (time.Duration, bool) {
	if v := h.Get("retry-after-ms"); v != "" {
		if ms, err := strconv.ParseFloat(v, 64); err == nil && ms >= 0 {
			return time.Duration(ms * float64(time.Millisecond)), true
		}
	}
	if v := h.Get("retry-after"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := time.Until(t); d > 0 {
				return d, true
			}
			return 0, true
		}
	}
	return 0, false
}

func exponentialDelay(attempt int, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(initialDelay)
	for i := 1; i < attempt; i++ {
		d *= factor
	}
	delay := time.Duration(d)
	if delay > cap {
		delay = cap
	}
	return delay
}

// Sleep waits for d or returns early with ctx.Err() if ctx is cancelled
// first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reason strips the "reason" portion for status messages, e.g.
// "Retrying (rate limited)...".
func Reason(reason string) string {
	return strings.TrimSpace(reason)
}
