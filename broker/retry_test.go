package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryTransientThenSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return Transient("place order", errors.New("connection reset"))
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPermanentNotRetried(t *testing.T) {
	t.Parallel()

	permanent := errors.New("insufficient margin")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return Transient("place order", errors.New("timeout"))
	})
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, calls)
}

func TestRetryCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 10, time.Hour, func() error {
		return Transient("place order", errors.New("timeout"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransientUnwrap(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := Transient("op", inner)
	assert.True(t, IsTransient(err))
	assert.ErrorIs(t, err, inner)
	assert.False(t, IsTransient(inner))
}
