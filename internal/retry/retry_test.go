package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestClassify_NonRetryable(t *testing.T) {
	cases := []error{
		context.Canceled,
		&ProviderError{Code: CodeAuthError},
		&ProviderError{Code: CodeInvalidRequest},
		&ProviderError{Code: CodeAborted},
		&ProviderError{ContextMax: true},
		&ProviderError{Status: 404},
		errors.New("boom"),
	}
	for _, err := range cases {
		if got := Classify(err); got != "" {
			t.Errorf("Classify(%v) = %q, want non-retryable", err, got)
		}
	}
}

func TestClassify_Retryable(t *testing.T) {
	cases := []error{
		&ProviderError{Code: CodeOverloaded},
		&ProviderError{Code: CodeRateLimit},
		&ProviderError{Code: CodeServerError},
		&ProviderError{Status: 429},
		&ProviderError{Status: 529},
		&ProviderError{Status: 503},
		errors.New("service unavailable, retry later"),
		errors.New("429 Too Many Requests"),
	}
	for _, err := range cases {
		if got := Classify(err); got == "" {
			t.Errorf("Classify(%v) = \"\", want retryable", err)
		}
	}
}

func TestDelay_ExponentialMonotonic(t *testing.T) {
	err := &ProviderError{Code: CodeOverloaded}
	var prev time.Duration
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		d := Delay(err, attempt)
		if d < 0 || d > defaultCap {
			t.Fatalf("attempt %d: delay %v out of [0, %v]", attempt, d, defaultCap)
		}
		if d < prev {
			t.Errorf("attempt %d: delay %v < previous %v", attempt, d, prev)
		}
		prev = d
	}
}

func TestDelay_RetryAfterMsHeader(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after-ms", "1500")
	err := &ProviderError{Headers: h}
	if got := Delay(err, 1); got != 1500*time.Millisecond {
		t.Errorf("delay = %v, want 1.5s", got)
	}
}

func TestDelay_RetryAfterSecondsHeader(t *testing.T) {
	h := http.Header{}
	h.Set("retry-after", "3")
	err := &ProviderError{Headers: h}
	if got := Delay(err, 1); got != 3*time.Second {
		t.Errorf("delay = %v, want 3s", got)
	}
}

func TestSleep_CancelsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestSleep_CompletesNormally(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
