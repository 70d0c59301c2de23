package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestExecuteDisabledRunsOnce(t *testing.T) {
	calls := 0
	err := Execute(context.Background(), &Config{Enabled: false}, zaptest.NewLogger(t), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteSucceedsAfterTransientFailure(t *testing.T) {
	cfg := &Config{Enabled: true, MaxAttempts: 3, Interval: time.Millisecond}

	calls := 0
	err := Execute(context.Background(), cfg, zaptest.NewLogger(t), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteExhaustsAttempts(t *testing.T) {
	cfg := &Config{Enabled: true, MaxAttempts: 2, Interval: time.Millisecond}

	sentinel := errors.New("broken")
	calls := 0
	err := Execute(context.Background(), cfg, zaptest.NewLogger(t), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 2, calls)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	cfg := &Config{Enabled: true, MaxAttempts: 10, Interval: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Execute(ctx, cfg, zaptest.NewLogger(t), func(ctx context.Context) error {
		calls++
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, (&Config{Enabled: false}).Validate())
	assert.Error(t, (&Config{Enabled: true, MaxAttempts: 0}).Validate())
	assert.Error(t, (&Config{Enabled: true, MaxAttempts: 1, Interval: -time.Second}).Validate())
	assert.NoError(t, (&Config{Enabled: true, MaxAttempts: 3, Interval: time.Second}).Validate())
}
