package provider

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff with jitter.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         float64
	MaxDelay          float64
	BackoffMultiplier float64
	Jitter            bool
}

// DefaultRetryPolicy returns the default retry policy: two retries, one
// second base delay, doubling, capped at a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d * float64(time.Second))
}

// Retry executes fn, retrying only retryable errors per policy.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if !IsRetryable(err) {
			return zero, err
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(policy.delay(attempt)):
		}
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
	}
	return zero, err
}
