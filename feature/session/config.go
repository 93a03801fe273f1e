package session

import "time"

// Config holds configuration for game sessions.
type Config struct {
	// ReapAfter is how long terminal sessions are kept. Zero disables the reaper.
	ReapAfter time.Duration `mapstructure:"reap_after" default:"168h"`
	// ReapInterval is how often the reaper runs.
	ReapInterval time.Duration `mapstructure:"reap_interval" default:"1h"`
	// MaxDuration caps how far in the future an end time may be.
	MaxDuration time.Duration `mapstructure:"max_duration" default:"12h"`
	// CancelRetries bounds the retries of a cancel racing with extensions.
	CancelRetries int `mapstructure:"cancel_retries" default:"5"`
}
