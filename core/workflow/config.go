package workflow

import (
	"fmt"
	"time"

	"lsadf-backend/core/apperror"
)

// Cancel policies for the final checkpoint of a cancelled run.
const (
	CancelPolicyFlush   = "flush"
	CancelPolicyDiscard = "discard"
)

// Config holds configuration for the workflow engine.
type Config struct {
	// Path is the badger directory of the run log. Empty keeps the log in memory.
	Path string `mapstructure:"path" default:""`
	// CheckpointInterval is the delay between two checkpoints of a run.
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" default:"30s"`
	// PollInterval is how often due runs are looked for.
	PollInterval time.Duration `mapstructure:"poll_interval" default:"1s"`
	// MaxAttempts bounds the executions of one step per checkpoint.
	MaxAttempts int `mapstructure:"max_attempts" default:"5"`
	// InitialBackoff is the delay before the first retry of a step.
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"200ms"`
	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration `mapstructure:"max_backoff" default:"5s"`
	// Concurrency bounds the runs processed in parallel.
	Concurrency int `mapstructure:"concurrency" default:"8"`
	// CancelPolicy is flush or discard.
	CancelPolicy string `mapstructure:"cancel_policy" default:"flush"`
}

// Validate rejects settings that withDefaults cannot repair. An empty cancel policy means flush.
func (c Config) Validate() error {
	switch c.CancelPolicy {
	case "", CancelPolicyFlush, CancelPolicyDiscard:
		return nil
	default:
		return fmt.Errorf("%w: cancel_policy %q must be %q or %q",
			apperror.ErrInvalidValue, c.CancelPolicy, CancelPolicyFlush, CancelPolicyDiscard)
	}
}

func (c Config) withDefaults() Config {
	if c.CheckpointInterval <= 0 {
		c.CheckpointInterval = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.CancelPolicy == "" {
		c.CancelPolicy = CancelPolicyFlush
	}
	return c
}
