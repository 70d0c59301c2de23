// Package retry implements a bounded retry mechanism for transient upstream
// failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config defines the configuration for the retry mechanism
type Config struct {
	Enabled     bool          // Enable retry
	MaxAttempts int           // Total number of attempts
	Interval    time.Duration // Interval between attempts
}

// Func defines the function signature for a retryable operation
type Func func(ctx context.Context) error

// Validate validates the retry configuration
func (cfg *Config) Validate() error {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		return errors.New("MaxAttempts must be greater than zero")
	}
	if cfg.Interval < 0 {
		return errors.New("Interval cannot be negative")
	}
	return nil
}

// Execute performs an operation with a retry mechanism. Retries stop as soon
// as the operation succeeds or the context is canceled; the last error is
// returned once attempts are exhausted.
func Execute(ctx context.Context, cfg *Config, logger *zap.Logger, op Func) error {
	if cfg == nil || !cfg.Enabled {
		return op(ctx)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lastErr = op(ctx); lastErr == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn("retryable operation failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("interval", cfg.Interval),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Interval):
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", cfg.MaxAttempts, lastErr)
}
