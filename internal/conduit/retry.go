package conduit

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// Policy defines the client-side retry behavior for generation calls.
// The execution engine never retries the network call itself; this is
// where that responsibility lives.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultPolicy returns the retry policy used against the local model
// server.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// retryable reports whether an error is worth another attempt. Auth and
// malformed-request failures are deterministic and never retried.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "401"),
		strings.Contains(s, "403"),
		strings.Contains(s, "unauthorized"),
		strings.Contains(s, "forbidden"),
		strings.Contains(s, "invalid api key"),
		strings.Contains(s, "400"),
		strings.Contains(s, "bad request"),
		strings.Contains(s, "malformed"):
		return false
	}
	return true
}

// withRetry executes fn with exponential backoff per the policy.
func withRetry[T any](ctx context.Context, policy Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !retryable(err) || attempt >= policy.MaxRetries {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(backoffDelay(policy, attempt)):
		}
	}
}

func backoffDelay(policy Policy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}
	return time.Duration(delay)
}
