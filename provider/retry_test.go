package provider

import (
	"context"
	"errors"
	"testing"
)

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	result, err := Retry(context.Background(), DefaultRetryPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil || result != "ok" || calls != 1 {
		t.Fatalf("got (%q, %v), calls=%d", result, err, calls)
	}
}

func TestRetryGivesUpOnNonRetryableError(t *testing.T) {
	calls := 0
	nonRetryable := ErrorFromStatusCode("test", 401, "unauthorized", nil)
	_, err := Retry(context.Background(), DefaultRetryPolicy(), func(ctx context.Context) (string, error) {
		calls++
		return "", nonRetryable
	})
	if calls != 1 {
		t.Fatalf("expected exactly one attempt for a non-retryable error, got %d", calls)
	}
	if !errors.Is(err, nonRetryable) && err != nonRetryable {
		t.Fatalf("expected the non-retryable error to propagate, got %v", err)
	}
}

func TestRetryRetriesRetryableErrorUntilSuccess(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 0.001, MaxDelay: 0.01, BackoffMultiplier: 1, Jitter: false}
	calls := 0
	retryable := ErrorFromStatusCode("test", 503, "unavailable", nil)
	result, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", retryable
		}
		return "recovered", nil
	})
	if err != nil || result != "recovered" {
		t.Fatalf("got (%q, %v)", result, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestRetryExhaustsMaxRetries(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, MaxDelay: 0.01, BackoffMultiplier: 1, Jitter: false}
	calls := 0
	retryable := ErrorFromStatusCode("test", 429, "rate limited", nil)
	_, err := Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		calls++
		return "", retryable
	})
	if calls != 3 {
		t.Fatalf("expected 1 initial attempt + 2 retries = 3 calls, got %d", calls)
	}
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
}

func TestErrorFromStatusCodeClassification(t *testing.T) {
	cases := map[int]bool{
		400: false,
		401: false,
		429: true,
		500: true,
		503: true,
	}
	for code, want := range cases {
		e := ErrorFromStatusCode("test", code, "x", nil)
		if e.Retryable != want {
			t.Errorf("status %d: retryable = %v, want %v", code, e.Retryable, want)
		}
	}
}

func TestIsRetryableNilError(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil error should not be retryable")
	}
}
