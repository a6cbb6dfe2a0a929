package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetryDelay    = 2 * time.Second
	defaultRetryTimeout  = 12 * time.Second
	defaultRetryAttempts = 3
)

type Policy struct {
	Delay    time.Duration
	Timeout  time.Duration
	Attempts int
}

func (p Policy) normalized() Policy {
	if p.Delay <= 0 {
		p.Delay = defaultRetryDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = defaultRetryTimeout
	}
	if p.Attempts <= 0 {
		p.Attempts = defaultRetryAttempts
	}
	return p
}

// AsyncRetry runs fn in the background up to policy.Attempts times, waiting
// Delay before the first attempt and doubling it after each failure. Each
// attempt gets its own Timeout. The returned channel receives the final
// error (nil on success) and is then closed.
func AsyncRetry(ctx context.Context, logger *slog.Logger, name string, policy Policy, fn func(ctx context.Context) error) <-chan error {
	done := make(chan error, 1)
	if fn == nil {
		close(done)
		return done
	}
	if ctx == nil {
		ctx = context.Background()
	}
	policy = policy.normalized()
	if logger != nil {
		logger.Info(name+"_retry_scheduled", "delay", policy.Delay.String(), "timeout", policy.Timeout.String(), "attempts", policy.Attempts)
	}
	go func() {
		defer close(done)
		delay := policy.Delay
		var lastErr error
		for attempt := 1; attempt <= policy.Attempts; attempt++ {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				done <- ctx.Err()
				return
			case <-timer.C:
			}

			attemptCtx, cancel := context.WithTimeout(ctx, policy.Timeout)
			lastErr = fn(attemptCtx)
			cancel()
			if lastErr == nil {
				if logger != nil {
					logger.Info(name+"_retry_ok", "attempt", attempt)
				}
				done <- nil
				return
			}
			if logger != nil {
				logger.Warn(name+"_retry_failed", "attempt", attempt, "error", lastErr.Error())
			}
			delay *= 2
		}
		done <- lastErr
	}()
	return done
}
