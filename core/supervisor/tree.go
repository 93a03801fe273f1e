// Package supervisor manages the suture supervisor tree of background services.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

// TreeConfig holds supervisor tree configuration.
type TreeConfig struct {
	// FailureThreshold is the number of failures before entering backoff.
	FailureThreshold float64 `mapstructure:"failure_threshold" default:"5"`
	// FailureDecay is the rate at which failures decay in seconds.
	FailureDecay float64 `mapstructure:"failure_decay" default:"30"`
	// FailureBackoff is the duration to wait when threshold is exceeded.
	FailureBackoff time.Duration `mapstructure:"failure_backoff" default:"15s"`
	// ShutdownTimeout is the maximum time to wait for a service to stop.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" default:"10s"`
}

// Tree is organized in two layers:
//   - workers: flush scheduler, cleanup jobs, workflow engine, event bus
//   - api: HTTP server
//
// A crashing worker is restarted without touching the API layer.
type Tree struct {
	root    *suture.Supervisor
	workers *suture.Supervisor
	api     *suture.Supervisor
}

// NewTree creates a supervisor tree. Zero config values take suture's defaults.
func NewTree(name string, config TreeConfig, logger *zap.Logger) *Tree {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5.0
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = 30.0
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = 15 * time.Second
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hook := func(e suture.Event) {
		logger.Warn("Supervisor event",
			zap.String("event", e.String()),
			zap.Any("details", e.Map()),
		)
	}

	spec := suture.Spec{
		EventHook:        hook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New(name, spec)
	workers := suture.New("workers", spec)
	api := suture.New("api", spec)
	root.Add(workers)
	root.Add(api)

	return &Tree{root: root, workers: workers, api: api}
}

// AddWorker adds a background service to the workers layer.
func (t *Tree) AddWorker(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

// AddAPI adds a service to the API layer.
func (t *Tree) AddAPI(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine and reports its exit on the returned channel.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that failed to stop within the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
