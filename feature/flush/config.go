package flush

import "time"

// Config holds configuration for the flush scheduler.
type Config struct {
	// Enabled toggles the periodic flush.
	Enabled bool `mapstructure:"enabled" default:"true"`
	// Interval is the delay between two scans of dirty entries.
	Interval time.Duration `mapstructure:"interval" default:"1m"`
}
