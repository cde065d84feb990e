package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/zephyrtronium/calcpipe"
)

// Retry is a policy for retrying evaluations whose arithmetic service failed.
// The zero value tries once.
type Retry struct {
	// Attempts is the maximum number of tries, including the first.
	Attempts int
	// Backoff is the wait before the first retry. Each later wait doubles.
	Backoff time.Duration
	// MaxBackoff caps the wait between tries if it is positive.
	MaxBackoff time.Duration
}

// Do calls f until it succeeds, returns an error that calcpipe.Retryable
// rejects, runs out of attempts, or ctx ends. It returns f's last error.
func (r Retry) Do(ctx context.Context, f func(ctx context.Context) error) error {
	wait := r.Backoff
	for i := 1; ; i++ {
		err := f(ctx)
		if err == nil || !calcpipe.Retryable(err) || i >= r.Attempts || ctx.Err() != nil {
			return err
		}
		slog.Warn("retrying evaluation",
			slog.Int("attempt", i),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return err
			}
		}
		wait *= 2
		if r.MaxBackoff > 0 && wait > r.MaxBackoff {
			wait = r.MaxBackoff
		}
	}
}
