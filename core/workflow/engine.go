package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/metrics"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxRecordedFailures bounds the failure history kept in the run state.
const maxRecordedFailures = 20

// Step is one idempotent activity of a checkpoint.
type Step struct {
	Name string
	Run  func(ctx context.Context, run Run) error
}

// Definition is the behaviour the engine executes for every run.
type Definition interface {
	// Steps returns the ordered steps of a periodic checkpoint.
	Steps(run Run) []Step
	// FinalSteps returns the steps of the final checkpoint of a run ending with status.
	FinalSteps(run Run, status Status) []Step
	// StepFailed is called when a step exhausted its retries.
	StepFailed(ctx context.Context, run Run, err *StepFailedError)
	// Finished is called after the final checkpoint.
	Finished(ctx context.Context, run Run, status Status) error
}

// Watcher is implemented by definitions whose runs can end without an explicit signal,
// for example when the tracked session expired.
type Watcher interface {
	Watch(ctx context.Context, run Run) (Signal, error)
}

type handle struct {
	mu   sync.Mutex
	run  Run
	busy atomic.Bool
}

func (h *handle) snapshot() Run {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.clone()
}

func (h *handle) signal() Signal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.run.Signal
}

// Engine drives runs through Started -> {Checkpointing <-> Idle} -> Finalizing -> Completed|Cancelled.
// Every transition is persisted to the run log before the next activity starts.
type Engine struct {
	cfg    Config
	log    *Log
	def    Definition
	clock  clock.Clock
	logger *zap.Logger

	mu   sync.Mutex
	runs map[string]*handle
	wake chan struct{}
	// slots bounds the runs Serve drives in parallel.
	slots chan struct{}
}

// NewEngine creates an engine over a run log.
func NewEngine(cfg Config, log *Log, def Definition, clk clock.Clock, logger *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:    cfg.withDefaults(),
		log:    log,
		def:    def,
		clock:  clk,
		logger: logger.With(zap.String("component", "workflow")),
		runs:   make(map[string]*handle),
		wake:   make(chan struct{}, 1),
	}
	e.slots = make(chan struct{}, e.cfg.Concurrency)
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start persists a new run. Its first checkpoint is due one interval later.
func (e *Engine) Start(id, key string, data map[string]string) (Run, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.runs[id]; ok {
		return Run{}, fmt.Errorf("%w: run %s already active", apperror.ErrConflict, id)
	}
	if _, ok, err := e.log.Load(id); err != nil {
		return Run{}, err
	} else if ok {
		return Run{}, fmt.Errorf("%w: run %s already exists", apperror.ErrConflict, id)
	}

	now := e.clock.Now()
	run := Run{
		ID:             id,
		Key:            key,
		Status:         StatusStarted,
		Attempts:       map[string]int{},
		Data:           data,
		StartedAt:      now,
		UpdatedAt:      now,
		NextCheckpoint: now.Add(e.cfg.CheckpointInterval),
	}
	if err := e.log.Save(run); err != nil {
		return Run{}, err
	}
	e.runs[id] = &handle{run: run.clone()}
	metrics.WorkflowRunsActive.Inc()

	e.logger.Info("Workflow run started", zap.String("run_id", id), zap.String("key", key))
	return run, nil
}

// Complete asks a run to finish after its current activity.
func (e *Engine) Complete(id string) error {
	return e.Signal(id, SignalComplete)
}

// Cancel asks a run to stop after its current activity.
func (e *Engine) Cancel(id string) error {
	return e.Signal(id, SignalCancel)
}

// Signal records sig on a run and wakes the engine. Cancel takes precedence over complete;
// signalling a finished run is a no-op.
func (e *Engine) Signal(id string, sig Signal) error {
	h := e.lookup(id)
	if h == nil {
		run, ok, err := e.log.Load(id)
		if err != nil {
			return err
		}
		if ok && run.Status.Terminal() {
			return nil
		}
		return fmt.Errorf("%w: run %s", apperror.ErrNotFound, id)
	}

	h.mu.Lock()
	if h.run.Status.Terminal() || h.run.Status == StatusFinalizing || h.run.Signal == SignalCancel {
		h.mu.Unlock()
		return nil
	}
	h.run.Signal = sig
	h.run.UpdatedAt = e.clock.Now()
	err := e.log.Save(h.run.clone())
	h.mu.Unlock()

	e.notify()
	return err
}

// Get returns the current state of a run.
func (e *Engine) Get(id string) (Run, error) {
	if h := e.lookup(id); h != nil {
		return h.snapshot(), nil
	}
	run, ok, err := e.log.Load(id)
	if err != nil {
		return Run{}, err
	}
	if !ok {
		return Run{}, fmt.Errorf("%w: run %s", apperror.ErrNotFound, id)
	}
	return run, nil
}

// Active returns the runs currently driven by the engine, ordered by id.
func (e *Engine) Active() []Run {
	handles := e.handles()
	runs := make([]Run, 0, len(handles))
	for _, h := range handles {
		runs = append(runs, h.snapshot())
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID < runs[j].ID })
	return runs
}

// Resume loads the non-terminal runs of the log. It returns the number of runs picked up.
func (e *Engine) Resume() (int, error) {
	runs, err := e.log.List(true)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	resumed := 0
	for _, run := range runs {
		if _, ok := e.runs[run.ID]; ok {
			continue
		}
		e.runs[run.ID] = &handle{run: run}
		metrics.WorkflowRunsActive.Inc()
		resumed++
		e.logger.Info("Workflow run resumed",
			zap.String("run_id", run.ID),
			zap.String("status", string(run.Status)),
		)
	}
	return resumed, nil
}

// Serve resumes persisted runs and processes due runs until ctx is cancelled.
// Runs are driven in the background so a run stuck in retries never delays the others; it is
// skipped by later polls until it returns. Serve waits for in-flight runs before returning.
// It implements suture.Service.
func (e *Engine) Serve(ctx context.Context) error {
	if _, err := e.Resume(); err != nil {
		return err
	}

	var inflight sync.WaitGroup
	defer inflight.Wait()

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-e.wake:
		}
		e.dispatch(ctx, &inflight)
	}
}

func (e *Engine) String() string {
	return "workflow"
}

// dispatch starts every idle run in its own goroutine without waiting for it. When all slots
// are taken the remaining runs are left for the next poll.
func (e *Engine) dispatch(ctx context.Context, inflight *sync.WaitGroup) {
	now := e.clock.Now()
	for _, h := range e.handles() {
		if !h.busy.CompareAndSwap(false, true) {
			continue
		}
		select {
		case e.slots <- struct{}{}:
		default:
			h.busy.Store(false)
			return
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			defer func() { <-e.slots }()
			if err := e.drive(ctx, h, now); err != nil && ctx.Err() == nil {
				e.logger.Warn("Workflow run failed", zap.String("run_id", h.snapshot().ID), zap.Error(err))
			}
		}()
	}
}

// Tick processes every run once and waits for them: signalled runs are finalized and due runs
// checkpointed. Runs still busy elsewhere are skipped.
func (e *Engine) Tick(ctx context.Context) error {
	now := e.clock.Now()

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, h := range e.handles() {
		if !h.busy.CompareAndSwap(false, true) {
			continue
		}
		g.Go(func() error {
			return e.drive(ctx, h, now)
		})
	}
	return g.Wait()
}

func (e *Engine) handles() []*handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	handles := make([]*handle, 0, len(e.runs))
	for _, h := range e.runs {
		handles = append(handles, h)
	}
	return handles
}

// drive processes a run the caller marked busy and releases it.
func (e *Engine) drive(ctx context.Context, h *handle, now time.Time) (err error) {
	defer h.busy.Store(false)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workflow run panicked: %v", r)
		}
	}()
	return e.process(ctx, h, now)
}

func (e *Engine) process(ctx context.Context, h *handle, now time.Time) error {
	run := h.snapshot()
	if run.Status.Terminal() {
		e.forget(run.ID)
		return nil
	}

	if run.Signal == SignalNone {
		if w, ok := e.def.(Watcher); ok {
			sig, err := w.Watch(ctx, run)
			if err != nil {
				e.logger.Warn("Workflow watch failed", zap.String("run_id", run.ID), zap.Error(err))
			} else if sig != SignalNone {
				if err := e.Signal(run.ID, sig); err != nil {
					return err
				}
				run = h.snapshot()
			}
		}
	}

	if run.Signal != SignalNone {
		return e.finalize(ctx, h)
	}
	if now.Before(run.NextCheckpoint) {
		return nil
	}
	if err := e.checkpoint(ctx, h); err != nil {
		return err
	}
	if h.signal() != SignalNone {
		return e.finalize(ctx, h)
	}
	return nil
}

func (e *Engine) checkpoint(ctx context.Context, h *handle) error {
	start := time.Now()
	defer func() {
		metrics.CheckpointDuration.Observe(time.Since(start).Seconds())
	}()

	run, err := e.update(h, func(r *Run) {
		r.Status = StatusCheckpointing
		r.Checkpoints++
		r.Attempts = map[string]int{}
	})
	if err != nil {
		return err
	}

	for _, step := range e.def.Steps(run) {
		// Signals are honoured between activities only.
		if h.signal() != SignalNone {
			e.logger.Info("Checkpoint interrupted by signal", zap.String("run_id", run.ID), zap.String("next_step", step.Name))
			break
		}
		if err := e.runStep(ctx, h, run, step); err != nil {
			return err
		}
	}

	_, err = e.update(h, func(r *Run) {
		r.Status = StatusIdle
		r.NextCheckpoint = e.clock.Now().Add(e.cfg.CheckpointInterval)
	})
	return err
}

func (e *Engine) finalize(ctx context.Context, h *handle) error {
	run := h.snapshot()
	status := StatusCompleted
	if run.Signal == SignalCancel {
		status = StatusCancelled
	}

	if !run.FinalFlushDone {
		var err error
		run, err = e.update(h, func(r *Run) {
			r.Status = StatusFinalizing
			r.Attempts = map[string]int{}
		})
		if err != nil {
			return err
		}
		for _, step := range e.def.FinalSteps(run, status) {
			if err := e.runStep(ctx, h, run, step); err != nil {
				return err
			}
		}
		if run, err = e.update(h, func(r *Run) { r.FinalFlushDone = true }); err != nil {
			return err
		}
	}

	if err := e.def.Finished(context.WithoutCancel(ctx), run, status); err != nil {
		e.logger.Warn("Workflow finish hook failed", zap.String("run_id", run.ID), zap.Error(err))
	}

	if _, err := e.update(h, func(r *Run) {
		r.Status = status
		r.FinishedAt = e.clock.Now()
	}); err != nil {
		return err
	}
	e.forget(run.ID)

	e.logger.Info("Workflow run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("checkpoints", run.Checkpoints),
	)
	return nil
}

// runStep executes one step and records its outcome. It only returns an error when the
// engine is shutting down, leaving the step to be repeated after resume.
func (e *Engine) runStep(ctx context.Context, h *handle, run Run, step Step) error {
	attempts, err := e.execute(ctx, run, step)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	sf, failed := AsStepFailed(err)
	updated, uerr := e.update(h, func(r *Run) {
		if r.Attempts == nil {
			r.Attempts = map[string]int{}
		}
		r.Attempts[step.Name] = attempts
		if failed {
			r.LastError = sf.Error()
			r.Failures = append(r.Failures, StepFailure{
				Step:       step.Name,
				Checkpoint: r.Checkpoints,
				Attempts:   attempts,
				Error:      sf.Err.Error(),
				At:         e.clock.Now(),
			})
			if len(r.Failures) > maxRecordedFailures {
				r.Failures = r.Failures[len(r.Failures)-maxRecordedFailures:]
			}
		}
	})
	if uerr != nil {
		return uerr
	}

	if !failed {
		metrics.CheckpointSteps.WithLabelValues(step.Name, "ok").Inc()
		return nil
	}
	metrics.CheckpointSteps.WithLabelValues(step.Name, "failed").Inc()
	e.logger.Warn("Checkpoint step failed",
		zap.String("run_id", run.ID),
		zap.String("step", step.Name),
		zap.Int("attempts", attempts),
		zap.Error(sf.Err),
	)
	e.def.StepFailed(context.WithoutCancel(ctx), updated, sf)
	return nil
}

// execute retries step with exponential backoff. Activities run detached from ctx so they
// complete once started; ctx only stops further retries.
func (e *Engine) execute(ctx context.Context, run Run, step Step) (int, error) {
	activityCtx := context.WithoutCancel(ctx)
	attempts := 0

	op := func() error {
		attempts++
		err := step.Run(activityCtx, run)
		if err != nil && apperror.IsBusiness(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialBackoff
	bo.MaxInterval = e.cfg.MaxBackoff
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}
		return attempts, &StepFailedError{Step: step.Name, Attempts: attempts, Err: err}
	}
	return attempts, nil
}

func (e *Engine) update(h *handle, fn func(*Run)) (Run, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn(&h.run)
	h.run.UpdatedAt = e.clock.Now()
	snap := h.run.clone()
	if err := e.log.Save(snap); err != nil {
		e.logger.Error("Failed to persist run state", zap.String("run_id", snap.ID), zap.Error(err))
		return snap, err
	}
	return snap, nil
}

func (e *Engine) lookup(id string) *handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs[id]
}

func (e *Engine) forget(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.runs[id]; ok {
		delete(e.runs, id)
		metrics.WorkflowRunsActive.Dec()
	}
}

func (e *Engine) notify() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}
