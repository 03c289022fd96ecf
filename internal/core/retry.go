package core

import (
	"context"
	"time"
)

var retryBaseDelay = 200 * time.Millisecond

// retry calls fn up to attempts times, doubling the delay between tries. It
// returns the last error, or ctx's error if ctx ends first.
func retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
