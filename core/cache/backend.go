package cache

import (
	"fmt"

	"lsadf-backend/core/clock"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// NewBackend creates the backend selected by cfg.Driver along with its circuit breaker.
func NewBackend(cfg Config, logger *zap.Logger) (Backend, *gobreaker.CircuitBreaker[any], error) {
	breaker := NewBreaker(BreakerConfig{
		Name:             "cache-" + cfg.Driver,
		FailureThreshold: cfg.BreakerFailures,
		Cooldown:         cfg.BreakerCooldown,
	}, logger)

	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryBackend(clock.System{}), breaker, nil
	case DriverRedis, "":
		backend, err := NewRedisBackend(cfg)
		if err != nil {
			return nil, nil, err
		}
		return backend, breaker, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}
