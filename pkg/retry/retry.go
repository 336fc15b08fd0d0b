// Package retry re-runs source operations that fail transiently. Readers
// wrap their connect and fetch calls in it so a flaky network or a busy
// database does not fail a whole reconciliation run.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"
)

// Policy controls how often and how fast an operation is re-run.
type Policy struct {
	// Attempts is the total number of tries, the first one included.
	Attempts int

	// BaseDelay is the wait before the second try. Each later wait
	// doubles, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter widens each wait by a random fraction either way, so
	// parallel readers hitting the same source do not reconnect in
	// lockstep.
	Jitter float64
}

// DefaultPolicy suits reader I/O: four tries over roughly a second.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  4,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  2 * time.Second,
		Jitter:    0.1,
	}
}

// TransientError lets reader errors state their own retryability instead
// of relying on message matching.
type TransientError interface {
	error
	Transient() bool
}

// transientMarkers are messages the postgres and sqlserver drivers and
// the object store SDK emit for conditions that clear up on their own.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"i/o timeout",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"deadlock",
	"429",
	"500",
	"502",
	"503",
	"504",
	"rate limit",
	"too many requests",
	"service unavailable",
	"reduce your request rate",
}

// IsTransient reports whether an error is worth another attempt. An error
// implementing TransientError anywhere in its chain decides for itself;
// everything else is matched against transientMarkers. Auth failures, bad
// SQL, and missing objects all fall through to false.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te TransientError
	if errors.As(err, &te) {
		return te.Transient()
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// OnTransient re-runs fn until it succeeds, fails permanently, or the
// policy is spent. Permanent errors return at once. Waits between tries
// respect ctx.
func OnTransient(ctx context.Context, p Policy, fn func() error) error {
	_, err := Value(ctx, p, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Value is OnTransient for functions that produce a result, such as
// opening a connection pool. On failure the zero value is returned.
func Value[T any](ctx context.Context, p Policy, fn func() (T, error)) (T, error) {
	var zero T
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}
		if attempt == p.Attempts {
			break
		}

		select {
		case <-time.After(jittered(delay, p.Jitter)):
		case <-ctx.Done():
			return zero, ctx.Err()
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return zero, lastErr
}

func jittered(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	spread := float64(d) * fraction * (rand.Float64()*2 - 1)
	return time.Duration(float64(d) + spread)
}
