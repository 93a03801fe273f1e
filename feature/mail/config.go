package mail

import "time"

// Config holds configuration for in-game mail.
type Config struct {
	// TTL is the lifetime of a mail when none is given.
	TTL time.Duration `mapstructure:"ttl" default:"720h"`
	// CleanupInterval is how often expired mails are deleted.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" default:"1h"`
}
