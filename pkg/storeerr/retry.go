package storeerr

import (
	"context"
	"time"
)

type Policy struct {
	Attempts int
	Delay    time.Duration
}

var DefaultPolicy = Policy{Attempts: 3, Delay: time.Millisecond * 200}

// Retry calls fn until it succeeds, fails with a non-retryable error or attempts are over.
// Delay before attempt n+1 is Delay*n.
func Retry(ctx context.Context, p Policy, fn func() error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}

	var err error

	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt >= p.Attempts || !IsRetryable(err) {
			return err
		}

		t := time.NewTimer(p.Delay * time.Duration(attempt))

		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
}
