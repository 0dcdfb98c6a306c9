package synth

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/googleapis/gax-go/v2"

	"github.com/dgnsrekt/tts-cli/internal/tts"
)

// RetryPolicy controls how transient provider failures are retried. Only
// NetworkFailure errors are retried; every other kind is final.
type RetryPolicy struct {
	// Attempts is the total number of calls, including the first. Values
	// below 1 mean a single attempt.
	Attempts int

	// Backoff produces the delay before each retry. It is copied per
	// invocation, so one policy can be shared.
	Backoff gax.Backoff

	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the retry behavior used by the CLI.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 3,
		Backoff: gax.Backoff{
			Initial:    500 * time.Millisecond,
			Max:        5 * time.Second,
			Multiplier: 2,
		},
	}
}

// NoRetry makes exactly one attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{Attempts: 1}
}

// do calls fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. It returns the number of calls made.
func (p RetryPolicy) do(ctx context.Context, fn func(context.Context) (tts.Audio, error)) (tts.Audio, int, error) {
	total := p.Attempts
	if total < 1 {
		total = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepWithCtx
	}
	bo := p.Backoff

	var lastErr error
	for attempt := 1; attempt <= total; attempt++ {
		audio, err := fn(ctx)
		if err == nil {
			return audio, attempt, nil
		}
		lastErr = err

		if attempt == total || !tts.IsRetryable(err) {
			return tts.Audio{}, attempt, err
		}

		delay := bo.Pause()
		log.Debug("Retrying synthesis", "attempt", attempt, "of", total, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			return tts.Audio{}, attempt, lastErr
		}
	}
	return tts.Audio{}, total, lastErr
}

func sleepWithCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
