package cache

import "time"

// Config holds configuration for the cache layer.
type Config struct {
	// Enabled toggles the cache at startup. A disabled cache always misses.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Driver selects the backend (redis, memory).
	Driver string `mapstructure:"driver" default:"redis"`
	// Addr is the Redis address.
	Addr string `mapstructure:"addr" default:"localhost:6379"`
	// Password is the Redis password.
	Password string `mapstructure:"password" default:""`
	// DB is the Redis database number.
	DB int `mapstructure:"db" default:"0"`
	// KeyPrefix namespaces every key written by this service.
	KeyPrefix string `mapstructure:"key_prefix" default:"lsadf"`
	// Expiration is the default TTL for clean entries.
	Expiration time.Duration `mapstructure:"expiration" default:"1h"`
	// Timeout bounds each backend round trip.
	Timeout time.Duration `mapstructure:"timeout" default:"2s"`
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32 `mapstructure:"breaker_failures" default:"5"`
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" default:"10s"`
}

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"
)
