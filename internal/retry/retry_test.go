package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter-labs/jobhunter/internal/logger"
	"github.com/jobhunter-labs/jobhunter/internal/retry"
)

func TestDo_SucceedsAfterFailures(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	calls := 0
	attempts, err := h.Do(context.Background(), retry.Config{Attempts: 3, Delay: time.Millisecond, OnError: true}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("agent timed out")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsLastError(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	sentinel := errors.New("boom")
	attempts, err := h.Do(context.Background(), retry.Config{Attempts: 2, OnError: true}, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, attempts)
}

func TestDo_NoRetryWhenOnErrorFalse(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	calls := 0
	attempts, err := h.Do(context.Background(), retry.Config{Attempts: 5}, func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestDo_DefaultsToSingleAttempt(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	attempts, err := h.Do(context.Background(), retry.Config{}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledDuringDelay(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	attempts, err := h.Do(ctx, retry.Config{Attempts: 3, Delay: time.Hour, OnError: true}, func(ctx context.Context) error {
		cancel()
		return errors.New("password=hunter2")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "hunter2")
	assert.Equal(t, 1, attempts)
}

func TestDo_CancelledBeforeStart(t *testing.T) {
	h := retry.NewHelper(logger.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts, err := h.Do(ctx, retry.Config{Attempts: 2}, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
