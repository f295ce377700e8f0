// Package retry provides a generic retrying executor driven by an explicit
// policy and an error classifier. Retryable failures back off exponentially;
// terminal failures surface immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Class int

const (
	// Retryable failures are retried with backoff until the attempt cap.
	Retryable Class = iota
	// Terminal failures stop the executor on first sight.
	Terminal
)

// Classifier decides whether a failure is worth another attempt.
// A nil classifier treats every failure as terminal.
type Classifier func(error) Class

// Policy bounds the executor. Timeouts are attempt-capped, not
// wall-clock-capped: MaxRetries retries after the first attempt.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultPolicy matches the token-operation policy: 3 retries (4 attempts),
// 1s initial delay doubling up to a 10s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   3,
		InitialDelay: 1000 * time.Millisecond,
		Multiplier:   2,
		MaxDelay:     10000 * time.Millisecond,
	}
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialDelay
	exp.Multiplier = p.Multiplier
	exp.MaxInterval = p.MaxDelay
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
}

// Do runs op until it succeeds, a terminal failure occurs, the attempt cap is
// reached, or ctx is cancelled. It returns the last value, the number of
// attempts actually made, and the last error.
func Do[T any](ctx context.Context, policy Policy, classify Classifier, op func(context.Context) (T, error)) (T, int, error) {
	attempts := 0
	value, err := backoff.RetryWithData(func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if classify == nil || classify(err) == Terminal {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, policy.backoff(ctx))
	return value, attempts, err
}
