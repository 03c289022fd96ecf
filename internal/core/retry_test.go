package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetrySuccessFirst(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, func() error { calls++; return nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaust(t *testing.T) {
	old := retryBaseDelay
	retryBaseDelay = time.Millisecond
	defer func() { retryBaseDelay = old }()

	calls := 0
	err := retry(context.Background(), 2, func() error { calls++; return errors.New("fail") })
	assert.EqualError(t, err, "fail")
	assert.Equal(t, 2, calls)
}

func TestRetryCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := retry(ctx, 5, func() error { return errors.New("fail") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
