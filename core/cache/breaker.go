package cache

import (
	"errors"
	"fmt"
	"time"

	"lsadf-backend/core/apperror"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the circuit breaker guarding a backend.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Cooldown         time.Duration
}

// NewBreaker creates a circuit breaker that opens after FailureThreshold consecutive failures.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Cache breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// guard runs fn through the breaker and maps any failure to ErrCacheUnavailable.
func guard[R any](cb *gobreaker.CircuitBreaker[any], op string, fn func() (R, error)) (R, error) {
	var zero R
	if cb == nil {
		r, err := fn()
		if err != nil {
			return zero, fmt.Errorf("cache %s: %w: %v", op, apperror.ErrCacheUnavailable, err)
		}
		return r, nil
	}

	res, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("cache %s: %w: breaker %s", op, apperror.ErrCacheUnavailable, cb.State())
		}
		return zero, fmt.Errorf("cache %s: %w: %v", op, apperror.ErrCacheUnavailable, err)
	}
	if res == nil {
		return zero, nil
	}
	return res.(R), nil
}
