package sessionflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/database"
	"lsadf-backend/core/events"
	"lsadf-backend/core/resource"
	"lsadf-backend/core/storage"
	"lsadf-backend/core/storage/mocks"
	"lsadf-backend/core/workflow"
	"lsadf-backend/feature/gamesave"
	"lsadf-backend/feature/gamesave/models"
	"lsadf-backend/feature/session"
	sessionmodels "lsadf-backend/feature/session/models"
	"lsadf-backend/feature/sessionflow"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var t0 = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func i64(v int64) *int64 { return &v }

// countingFlusher counts Flush calls and optionally fails them.
type countingFlusher struct {
	resource.Flusher
	mu    sync.Mutex
	calls int
	err   error
}

func (c *countingFlusher) Flush(ctx context.Context, id uuid.UUID) (bool, error) {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return false, err
	}
	return c.Flusher.Flush(ctx, id)
}

func (c *countingFlusher) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type captured struct {
	mu     sync.Mutex
	failed []events.WorkflowStepFailedPayload
	ended  []events.SessionFinishedPayload
}

type harness struct {
	flow     *sessionflow.Flow
	engine   *workflow.Engine
	log      *workflow.Log
	svcs     *gamesave.Services
	sessions *session.Manager
	flushers map[string]*countingFlusher
	events   *captured
	clock    *clock.Fake
	db       *gorm.DB
	saveID   uuid.UUID
}

type options struct {
	policy  string
	archive sessionflow.Archiver
}

func setup(t *testing.T, opts options) *harness {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, append(models.All(), &sessionmodels.GameSession{})...))

	clk := clock.NewFake(t0)
	backend := cache.NewMemoryBackend(clk)
	svcs := gamesave.NewServices(db, backend, nil, cache.Config{Enabled: true, Expiration: time.Hour}, clk, zap.NewNop())

	sessionCache := cache.NewHashCache[sessionmodels.GameSession](session.CacheKind, backend, cache.JSONCodec[sessionmodels.GameSession]{}, nil, time.Hour)
	sessions := session.NewManager(session.NewStore(db), sessionCache, clk, session.Config{MaxDuration: 12 * time.Hour, CancelRetries: 3}, zap.NewNop())

	got := &captured{}
	bus := events.NewBus(events.Config{}, zap.NewNop())
	require.NoError(t, bus.Register(events.WorkflowStepFailed, events.Sync, func(_ context.Context, e events.Event) error {
		var p events.WorkflowStepFailedPayload
		require.NoError(t, e.Decode(&p))
		got.mu.Lock()
		defer got.mu.Unlock()
		got.failed = append(got.failed, p)
		return nil
	}))
	require.NoError(t, bus.Register(events.SessionFinished, events.Sync, func(_ context.Context, e events.Event) error {
		var p events.SessionFinishedPayload
		require.NoError(t, e.Decode(&p))
		got.mu.Lock()
		defer got.mu.Unlock()
		got.ended = append(got.ended, p)
		return nil
	}))

	counting := make(map[string]*countingFlusher)
	var flushers []resource.Flusher
	for _, f := range svcs.Flushers() {
		c := &countingFlusher{Flusher: f}
		counting[f.Kind()] = c
		flushers = append(flushers, c)
	}

	log, err := workflow.OpenLog("")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	cfg := workflow.Config{
		CheckpointInterval: 30 * time.Second,
		MaxAttempts:        3,
		InitialBackoff:     time.Millisecond,
		MaxBackoff:         2 * time.Millisecond,
		Concurrency:        2,
		CancelPolicy:       opts.policy,
	}
	flow := sessionflow.New(cfg, log, sessionflow.Deps{
		Flushers:  flushers,
		Snapshots: svcs,
		Sessions:  sessions,
		Bus:       bus,
		Archive:   opts.archive,
	}, clk, zap.NewNop())
	sessions.SetHooks(flow)

	saveID := uuid.New()
	require.NoError(t, db.Create(&models.GameSaveRecord{
		ID:        saveID,
		UserEmail: "player@lsadf.test",
		Nickname:  "player",
		CreatedAt: t0,
		UpdatedAt: t0,
	}).Error)

	return &harness{
		flow:     flow,
		engine:   flow.Engine(),
		log:      log,
		svcs:     svcs,
		sessions: sessions,
		flushers: counting,
		events:   got,
		clock:    clk,
		db:       db,
		saveID:   saveID,
	}
}

func (h *harness) start(t *testing.T) sessionmodels.GameSession {
	t.Helper()
	s, err := h.sessions.CreateSession(context.Background(), h.saveID, "player@lsadf.test", t0.Add(300*time.Second))
	require.NoError(t, err)
	return s
}

func TestFlow_SessionCheckpointCancel(t *testing.T) {
	h := setup(t, options{})
	ctx := context.Background()
	currency := gamesave.NewCurrencyStore(h.db)

	s := h.start(t)
	run, err := h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusStarted, run.Status)
	assert.Equal(t, h.saveID.String(), run.Key)

	require.NoError(t, h.svcs.Currency.Save(ctx, h.saveID, models.Currency{Gold: i64(100)}, true))
	_, err = currency.Get(ctx, h.saveID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	// Not due yet.
	require.NoError(t, h.engine.Tick(ctx))
	assert.Equal(t, 0, h.flushers[models.KindCurrency].Calls())

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.engine.Tick(ctx))

	durable, err := currency.Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), *durable.Gold)
	dirty, err := h.svcs.Currency.IsDirty(ctx, h.saveID)
	require.NoError(t, err)
	assert.False(t, dirty)

	run, err = h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusIdle, run.Status)
	assert.Equal(t, 1, run.Checkpoints)

	_, err = h.sessions.CancelSession(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, h.engine.Tick(ctx))

	run, err = h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, run.Status)
	assert.True(t, run.FinalFlushDone)
	assert.Empty(t, h.engine.Active())

	for i := 0; i < 3; i++ {
		h.clock.Advance(30 * time.Second)
		require.NoError(t, h.engine.Tick(ctx))
	}

	run, err = h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Checkpoints)
	for kind, f := range h.flushers {
		assert.Equal(t, 2, f.Calls(), "one checkpoint and one final flush for %s", kind)
	}

	require.Len(t, h.events.ended, 1)
	assert.True(t, h.events.ended[0].Cancelled)
	assert.Equal(t, s.ID, h.events.ended[0].SessionID)
}

func TestFlow_StepFailureLeavesEarlierStepsDurable(t *testing.T) {
	h := setup(t, options{})
	ctx := context.Background()
	h.flushers[models.KindCurrency].err = errors.New("connection reset")

	s := h.start(t)
	require.NoError(t, h.svcs.Characteristics.Save(ctx, h.saveID, models.Characteristics{Attack: i64(5)}, true))
	require.NoError(t, h.svcs.Currency.Save(ctx, h.saveID, models.Currency{Gold: i64(100)}, true))

	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.engine.Tick(ctx))

	chars, err := gamesave.NewCharacteristicsStore(h.db).Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *chars.Attack)

	dirty, err := h.svcs.Currency.IsDirty(ctx, h.saveID)
	require.NoError(t, err)
	assert.True(t, dirty)

	assert.Equal(t, 3, h.flushers[models.KindCurrency].Calls())
	assert.Equal(t, 1, h.flushers[models.KindStage].Calls(), "later steps still run")
	assert.Equal(t, 1, h.flushers[models.KindMetadata].Calls())

	run, err := h.engine.Get(s.ID.String())
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, models.KindCurrency, run.Failures[0].Step)
	assert.Equal(t, 3, run.Failures[0].Attempts)
	assert.NotEmpty(t, run.LastError)

	require.Len(t, h.events.failed, 1)
	assert.Equal(t, models.KindCurrency, h.events.failed[0].Step)
	assert.Equal(t, h.saveID, h.events.failed[0].GameSaveID)
	assert.Equal(t, 3, h.events.failed[0].Attempts)

	// Recovered on the next checkpoint.
	h.flushers[models.KindCurrency].mu.Lock()
	h.flushers[models.KindCurrency].err = nil
	h.flushers[models.KindCurrency].mu.Unlock()
	h.clock.Advance(30 * time.Second)
	require.NoError(t, h.engine.Tick(ctx))

	durable, err := gamesave.NewCurrencyStore(h.db).Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), *durable.Gold)
}

func TestFlow_DiscardPolicy(t *testing.T) {
	h := setup(t, options{policy: workflow.CancelPolicyDiscard})
	ctx := context.Background()

	require.NoError(t, h.svcs.Currency.Save(ctx, h.saveID, models.Currency{Gold: i64(10)}, false))
	s := h.start(t)
	require.NoError(t, h.svcs.Currency.Save(ctx, h.saveID, models.Currency{Gold: i64(99)}, true))

	_, err := h.sessions.CancelSession(ctx, s.ID)
	require.NoError(t, err)
	require.NoError(t, h.engine.Tick(ctx))

	run, err := h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCancelled, run.Status)
	assert.Equal(t, 0, h.flushers[models.KindCurrency].Calls())

	got, err := h.svcs.Currency.Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), *got.Gold)
	dirty, err := h.svcs.Currency.IsDirty(ctx, h.saveID)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestFlow_ExpiryCompletesAndArchives(t *testing.T) {
	client := new(mocks.Client)
	archive := storage.NewArchive(client, storage.Config{Bucket: "archive"})
	h := setup(t, options{archive: archive})
	ctx := context.Background()

	s := h.start(t)
	require.NoError(t, h.svcs.Stage.Save(ctx, h.saveID, models.Stage{CurrentStage: i64(3), MaxStage: i64(7)}, true))

	client.On("PutObject", mock.Anything, "archive", sessionflow.ArchiveKey(h.saveID.String(), s.ID.String()),
		mock.Anything, mock.AnythingOfType("int64"), mock.Anything).
		Return(minio.UploadInfo{}, nil).Once()

	h.clock.Advance(301 * time.Second)
	require.NoError(t, h.engine.Tick(ctx))

	run, err := h.engine.Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusCompleted, run.Status)
	assert.True(t, run.FinalFlushDone)
	client.AssertExpectations(t)

	stage, err := gamesave.NewStageStore(h.db).Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), *stage.MaxStage)

	require.Len(t, h.events.ended, 1)
	assert.False(t, h.events.ended[0].Cancelled)
}

func TestFlow_ResumeFromLog(t *testing.T) {
	h := setup(t, options{})
	ctx := context.Background()
	s := h.start(t)

	flushers := make([]resource.Flusher, 0, len(h.flushers))
	for _, f := range h.svcs.Flushers() {
		flushers = append(flushers, f)
	}
	restarted := sessionflow.New(workflow.Config{CheckpointInterval: 30 * time.Second}, h.log, sessionflow.Deps{
		Flushers:  flushers,
		Snapshots: h.svcs,
		Sessions:  h.sessions,
	}, h.clock, zap.NewNop())

	n, err := restarted.Engine().Resume()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, h.svcs.Currency.Save(ctx, h.saveID, models.Currency{Gold: i64(42)}, true))
	h.clock.Advance(30 * time.Second)
	require.NoError(t, restarted.Engine().Tick(ctx))

	run, err := restarted.Engine().Get(s.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, run.Checkpoints)

	durable, err := gamesave.NewCurrencyStore(h.db).Get(ctx, h.saveID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), *durable.Gold)
}

func TestFlow_SessionHooks(t *testing.T) {
	h := setup(t, options{})
	ctx := context.Background()

	// A session without a run is cancelled quietly.
	orphan := sessionmodels.GameSession{ID: uuid.New(), GameSaveID: h.saveID}
	assert.NoError(t, h.flow.SessionCancelled(ctx, orphan))

	s := h.start(t)
	assert.ErrorIs(t, h.flow.SessionStarted(ctx, s), apperror.ErrConflict)

	sig, err := h.flow.Watch(ctx, workflow.Run{ID: uuid.NewString()})
	require.NoError(t, err)
	assert.Equal(t, workflow.SignalCancel, sig)

	sig, err = h.flow.Watch(ctx, workflow.Run{ID: s.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, workflow.SignalNone, sig)
}

func TestRegisterListeners(t *testing.T) {
	h := setup(t, options{})
	bus := events.NewBus(events.Config{}, zap.NewNop())
	require.NoError(t, sessionflow.RegisterListeners(bus, h.sessions, zap.NewNop()))
	require.NoError(t, bus.Start(context.Background()))
	defer bus.Close()

	s := h.start(t)
	e, err := events.New(events.SessionFinished, t0, events.SessionFinishedPayload{SessionID: s.ID, GameSaveID: h.saveID})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), e))
}
