package sessionflow

import (
	"context"
	"errors"
	"fmt"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/events"
	"lsadf-backend/core/resource"
	"lsadf-backend/core/workflow"
	"lsadf-backend/feature/gamesave"
	"lsadf-backend/feature/session"
	"lsadf-backend/feature/session/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Snapshotter reads the full state of a game save.
type Snapshotter interface {
	Snapshot(ctx context.Context, id uuid.UUID) (*gamesave.Snapshot, error)
}

// Archiver stores finished session snapshots.
type Archiver interface {
	Put(ctx context.Context, key string, v any) error
}

// Deps are the collaborators of a Flow. Archive may be nil.
type Deps struct {
	Flushers  []resource.Flusher
	Snapshots Snapshotter
	Sessions  *session.Manager
	Bus       *events.Bus
	Archive   Archiver
}

// Archived is the document written for a completed session.
type Archived struct {
	SessionID   string             `json:"session_id"`
	GameSaveID  string             `json:"game_save_id"`
	Status      workflow.Status    `json:"status"`
	Checkpoints int                `json:"checkpoints"`
	Failures    int                `json:"failures"`
	Snapshot    *gamesave.Snapshot `json:"snapshot"`
}

// Flow drives one workflow run per game session: periodic checkpoints of every resource kind
// while the session is live, then a final flush or discard when it ends.
type Flow struct {
	deps   Deps
	engine *workflow.Engine
	policy string
	logger *zap.Logger
}

// New creates the session flow and its workflow engine.
func New(cfg workflow.Config, log *workflow.Log, deps Deps, clk clock.Clock, logger *zap.Logger) *Flow {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &Flow{deps: deps, logger: logger.With(zap.String("component", "sessionflow"))}
	f.engine = workflow.NewEngine(cfg, log, f, clk, logger)
	f.policy = f.engine.Config().CancelPolicy
	return f
}

// Engine returns the workflow engine driving the runs.
func (f *Flow) Engine() *workflow.Engine {
	return f.engine
}

// Steps flushes every resource kind in checkpoint order.
func (f *Flow) Steps(workflow.Run) []workflow.Step {
	steps := make([]workflow.Step, 0, len(f.deps.Flushers))
	for _, fl := range f.deps.Flushers {
		steps = append(steps, flushStep(fl))
	}
	return steps
}

// FinalSteps flushes one last time, or drops the pending writes of a cancelled run under the
// discard policy.
func (f *Flow) FinalSteps(_ workflow.Run, status workflow.Status) []workflow.Step {
	if status != workflow.StatusCancelled || f.policy != workflow.CancelPolicyDiscard {
		return f.Steps(workflow.Run{})
	}
	steps := make([]workflow.Step, 0, len(f.deps.Flushers))
	for _, fl := range f.deps.Flushers {
		steps = append(steps, discardStep(fl))
	}
	return steps
}

func flushStep(fl resource.Flusher) workflow.Step {
	return workflow.Step{
		Name: fl.Kind(),
		Run: func(ctx context.Context, run workflow.Run) error {
			id, err := saveID(run)
			if err != nil {
				return err
			}
			_, err = fl.Flush(ctx, id)
			return err
		},
	}
}

func discardStep(fl resource.Flusher) workflow.Step {
	return workflow.Step{
		Name: "discard-" + fl.Kind(),
		Run: func(ctx context.Context, run workflow.Run) error {
			id, err := saveID(run)
			if err != nil {
				return err
			}
			return fl.Discard(ctx, id)
		},
	}
}

func saveID(run workflow.Run) (uuid.UUID, error) {
	id, err := uuid.Parse(run.Key)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: run %s has game save key %q", apperror.ErrInvalidValue, run.ID, run.Key)
	}
	return id, nil
}

// StepFailed publishes WorkflowStepFailed.
func (f *Flow) StepFailed(ctx context.Context, run workflow.Run, err *workflow.StepFailedError) {
	id, _ := uuid.Parse(run.Key)
	f.publish(ctx, events.WorkflowStepFailed, events.WorkflowStepFailedPayload{
		RunID:      run.ID,
		GameSaveID: id,
		Step:       err.Step,
		Attempts:   err.Attempts,
		Error:      err.Err.Error(),
	})
}

// Finished archives completed sessions and publishes SessionFinished.
func (f *Flow) Finished(ctx context.Context, run workflow.Run, status workflow.Status) error {
	saveID, _ := uuid.Parse(run.Key)
	sessionID, _ := uuid.Parse(run.ID)

	var archiveErr error
	if status == workflow.StatusCompleted && f.deps.Archive != nil && f.deps.Snapshots != nil {
		archiveErr = f.archive(ctx, run, status, saveID)
	}

	f.publish(ctx, events.SessionFinished, events.SessionFinishedPayload{
		SessionID:  sessionID,
		GameSaveID: saveID,
		Cancelled:  status == workflow.StatusCancelled,
	})
	return archiveErr
}

func (f *Flow) archive(ctx context.Context, run workflow.Run, status workflow.Status, saveID uuid.UUID) error {
	snap, err := f.deps.Snapshots.Snapshot(ctx, saveID)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", saveID, err)
	}
	doc := Archived{
		SessionID:   run.ID,
		GameSaveID:  run.Key,
		Status:      status,
		Checkpoints: run.Checkpoints,
		Failures:    len(run.Failures),
		Snapshot:    snap,
	}
	if err := f.deps.Archive.Put(ctx, ArchiveKey(run.Key, run.ID), doc); err != nil {
		return fmt.Errorf("archive session %s: %w", run.ID, err)
	}
	return nil
}

// ArchiveKey is the object key of a session archive.
func ArchiveKey(saveID, sessionID string) string {
	return fmt.Sprintf("sessions/%s/%s.json", saveID, sessionID)
}

// Watch ends runs whose session expired or was cancelled without a signal reaching the engine.
func (f *Flow) Watch(ctx context.Context, run workflow.Run) (workflow.Signal, error) {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return workflow.SignalCancel, nil
	}
	s, err := f.deps.Sessions.GetSession(ctx, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return workflow.SignalCancel, nil
	}
	if err != nil {
		return workflow.SignalNone, err
	}
	switch {
	case s.Cancelled:
		return workflow.SignalCancel, nil
	case s.IsExpired(f.deps.Sessions.Now()):
		return workflow.SignalComplete, nil
	}
	return workflow.SignalNone, nil
}

// SessionStarted starts the run of a new session.
func (f *Flow) SessionStarted(_ context.Context, s models.GameSession) error {
	_, err := f.engine.Start(s.ID.String(), s.GameSaveID.String(), map[string]string{
		"user_email": s.UserEmail,
	})
	return err
}

// SessionCancelled signals the run of a cancelled session.
func (f *Flow) SessionCancelled(_ context.Context, s models.GameSession) error {
	err := f.engine.Cancel(s.ID.String())
	if errors.Is(err, apperror.ErrNotFound) {
		f.logger.Debug("No workflow run for cancelled session", zap.String("session_id", s.ID.String()))
		return nil
	}
	return err
}

func (f *Flow) publish(ctx context.Context, t events.Type, payload any) {
	if f.deps.Bus == nil {
		return
	}
	e, err := events.New(t, f.deps.Sessions.Now(), payload)
	if err == nil {
		err = f.deps.Bus.Publish(ctx, e)
	}
	if err != nil {
		f.logger.Warn("Failed to publish workflow event", zap.String("type", string(t)), zap.Error(err))
	}
}

// RegisterListeners binds the workflow event listeners to the bus.
func RegisterListeners(bus *events.Bus, sessions *session.Manager, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	err := bus.Register(events.WorkflowStepFailed, events.Async, func(_ context.Context, e events.Event) error {
		var p events.WorkflowStepFailedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		logger.Error("Checkpoint step exhausted its retries",
			zap.String("run_id", p.RunID),
			zap.String("game_save_id", p.GameSaveID.String()),
			zap.String("step", p.Step),
			zap.Int("attempts", p.Attempts),
			zap.String("error", p.Error),
		)
		return nil
	})
	if err != nil {
		return err
	}

	return bus.Register(events.SessionFinished, events.Async, func(ctx context.Context, e events.Event) error {
		var p events.SessionFinishedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		sessions.Evict(ctx, p.SessionID)
		logger.Info("Session finished",
			zap.String("session_id", p.SessionID.String()),
			zap.String("game_save_id", p.GameSaveID.String()),
			zap.Bool("cancelled", p.Cancelled),
		)
		return nil
	})
}
