// Package retry runs an operation with bounded attempts and exponential
// backoff. Only errors classified as errkind.Transient are retried.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
)

var ErrInvalidAttempts = errors.New("retry attempts must be > 0")

type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Timeout bounds each individual attempt. Zero means no per-attempt limit.
	Timeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 500 * time.Millisecond,
		MaxDelay:  10 * time.Second,
		Timeout:   60 * time.Second,
	}
}

// Delay returns the backoff before attempt n+1, given n failed attempts.
func (p Policy) Delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls op until it succeeds, returns a non-transient error, or the
// attempts are used up. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		return ErrInvalidAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		lastErr = run(ctx, p.Timeout, op)
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !errkind.IsTransient(lastErr) || attempt == p.Attempts {
			break
		}

		delay := p.Delay(attempt)
		slog.Warn("transient failure, retrying", "attempt", attempt, "max_attempts", p.Attempts, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}

func run(ctx context.Context, timeout time.Duration, op func(ctx context.Context) error) error {
	if timeout <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(ctx)
}
