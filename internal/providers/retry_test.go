package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aristath/aegis/internal/errs"
)

func TestDoSucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	err := Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return errs.New(errs.KindTransient, "test", errors.New("boom"))
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestDoStopsImmediatelyOnAuthError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryPolicy, func(ctx context.Context) error {
		calls++
		return errs.New(errs.KindAuth, "test", errors.New("nope"))
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDoExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	calls := 0
	err := Do(context.Background(), policy, func(ctx context.Context) error {
		calls++
		return errs.New(errs.KindTransient, "test", errors.New("still broken"))
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, DefaultRetryPolicy, func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	require.Equal(t, 0, calls)
}
