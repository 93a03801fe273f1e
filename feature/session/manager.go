package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/keylock"
	"lsadf-backend/core/metrics"
	"lsadf-backend/core/scheduler"
	"lsadf-backend/feature/session/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheKind is the cache namespace of sessions.
const CacheKind = "session"

// Hooks observe session lifecycle changes.
type Hooks interface {
	SessionStarted(ctx context.Context, session models.GameSession) error
	SessionCancelled(ctx context.Context, session models.GameSession) error
}

// Manager creates, extends and cancels game sessions.
// At most one non-terminal session exists per game save.
type Manager struct {
	store  *Store
	cache  cache.Cache[models.GameSession]
	locks  *keylock.Map
	clock  clock.Clock
	cfg    Config
	hooks  Hooks
	logger *zap.Logger
}

// NewManager creates a session manager. The cache may be disabled but not nil.
func NewManager(store *Store, c cache.Cache[models.GameSession], clk clock.Clock, cfg Config, logger *zap.Logger) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CancelRetries <= 0 {
		cfg.CancelRetries = 1
	}
	return &Manager{
		store:  store,
		cache:  c,
		locks:  keylock.New(),
		clock:  clk,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "session")),
	}
}

// SetHooks registers the lifecycle observer.
func (m *Manager) SetHooks(h Hooks) {
	m.hooks = h
}

// CreateSession starts a session for a game save.
func (m *Manager) CreateSession(ctx context.Context, saveID uuid.UUID, userEmail string, endTime time.Time) (models.GameSession, error) {
	session, err := m.create(ctx, saveID, userEmail, endTime)
	observe("create", err)
	if err != nil {
		return session, err
	}

	if m.hooks != nil {
		if err := m.hooks.SessionStarted(ctx, session); err != nil {
			m.logger.Error("Session start hook failed", zap.String("session_id", session.ID.String()), zap.Error(err))
		}
	}
	return session, nil
}

func (m *Manager) create(ctx context.Context, saveID uuid.UUID, userEmail string, endTime time.Time) (models.GameSession, error) {
	now := m.clock.Now()
	if err := m.checkEndTime(now, endTime); err != nil {
		return models.GameSession{}, err
	}

	unlock := m.locks.Lock(saveID.String())
	defer unlock()

	active, found, err := m.store.FindActive(ctx, saveID, now)
	if err != nil {
		return models.GameSession{}, err
	}
	if found {
		return models.GameSession{}, fmt.Errorf("%w: game save %s already has active session %s", apperror.ErrConflict, saveID, active.ID)
	}

	session := models.GameSession{
		ID:         uuid.New(),
		GameSaveID: saveID,
		UserEmail:  userEmail,
		EndTime:    endTime.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := m.store.Create(ctx, session); err != nil {
		return models.GameSession{}, err
	}
	m.remember(ctx, session)

	m.logger.Info("Session created",
		zap.String("session_id", session.ID.String()),
		zap.String("game_save_id", saveID.String()),
		zap.Time("end_time", session.EndTime),
	)
	return session, nil
}

// ExtendSession moves the end time of an active session. knownVersion is the version the
// caller last read; a mismatch yields apperror.ErrStaleVersion.
func (m *Manager) ExtendSession(ctx context.Context, id uuid.UUID, knownVersion int64, newEndTime time.Time) (models.GameSession, error) {
	session, err := m.extend(ctx, id, knownVersion, newEndTime)
	observe("extend", err)
	return session, err
}

func (m *Manager) extend(ctx context.Context, id uuid.UUID, knownVersion int64, newEndTime time.Time) (models.GameSession, error) {
	now := m.clock.Now()
	if err := m.checkEndTime(now, newEndTime); err != nil {
		return models.GameSession{}, err
	}

	session, err := m.store.Get(ctx, id)
	if err != nil {
		return models.GameSession{}, err
	}
	if session.IsTerminal(now) {
		return session, fmt.Errorf("%w: session %s has ended", apperror.ErrConflict, id)
	}
	if session.Version != knownVersion {
		return session, fmt.Errorf("%w: session %s is at version %d, not %d", apperror.ErrStaleVersion, id, session.Version, knownVersion)
	}

	session.EndTime = newEndTime.UTC()
	session.UpdatedAt = now
	updated, err := m.store.UpdateVersioned(ctx, session, knownVersion)
	m.forget(ctx, id)
	if err != nil {
		return updated, err
	}
	m.remember(ctx, updated)
	return updated, nil
}

// CancelSession marks a session cancelled. Cancelling a terminal session returns it unchanged.
func (m *Manager) CancelSession(ctx context.Context, id uuid.UUID) (models.GameSession, error) {
	session, changed, err := m.cancel(ctx, id)
	observe("cancel", err)
	if err != nil {
		return session, err
	}

	if changed && m.hooks != nil {
		if err := m.hooks.SessionCancelled(ctx, session); err != nil {
			m.logger.Error("Session cancel hook failed", zap.String("session_id", id.String()), zap.Error(err))
		}
	}
	return session, nil
}

func (m *Manager) cancel(ctx context.Context, id uuid.UUID) (models.GameSession, bool, error) {
	var lastErr error
	for attempt := 0; attempt < m.cfg.CancelRetries; attempt++ {
		now := m.clock.Now()
		session, err := m.store.Get(ctx, id)
		if err != nil {
			return session, false, err
		}
		if session.IsTerminal(now) {
			return session, false, nil
		}

		next := session
		next.Cancelled = true
		next.UpdatedAt = now
		updated, err := m.store.UpdateVersioned(ctx, next, session.Version)
		m.forget(ctx, id)
		if err == nil {
			m.remember(ctx, updated)
			m.logger.Info("Session cancelled", zap.String("session_id", id.String()))
			return updated, true, nil
		}
		if !errors.Is(err, apperror.ErrStaleVersion) {
			return session, false, err
		}
		lastErr = err
	}
	return models.GameSession{}, false, lastErr
}

// GetSession returns a session by id.
func (m *Manager) GetSession(ctx context.Context, id uuid.UUID) (models.GameSession, error) {
	key := id.String()
	session, ok, err := m.cache.Get(ctx, key)
	if err != nil {
		m.logger.Warn("Session cache read failed", zap.String("session_id", key), zap.Error(err))
	} else if ok {
		return session, nil
	}

	session, err = m.store.Get(ctx, id)
	if err != nil {
		return session, err
	}
	if _, err := m.cache.SetIfAbsent(ctx, key, session); err != nil {
		m.logger.Warn("Session cache populate failed", zap.String("session_id", key), zap.Error(err))
	}
	return session, nil
}

// ActiveSession returns the non-terminal session of a game save.
func (m *Manager) ActiveSession(ctx context.Context, saveID uuid.UUID) (models.GameSession, error) {
	session, found, err := m.store.FindActive(ctx, saveID, m.clock.Now())
	if err != nil {
		return session, err
	}
	if !found {
		return session, fmt.Errorf("%w: no active session for game save %s", apperror.ErrNotFound, saveID)
	}
	return session, nil
}

// Reap deletes sessions that ended more than ReapAfter ago.
func (m *Manager) Reap(ctx context.Context) (int64, error) {
	if m.cfg.ReapAfter <= 0 {
		return 0, nil
	}
	n, err := m.store.DeleteExpired(ctx, m.clock.Now().Add(-m.cfg.ReapAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("Reaped terminal sessions", zap.Int64("count", n))
	}
	return n, nil
}

// ReaperLoop returns the supervised session reaper service.
func (m *Manager) ReaperLoop() *scheduler.Loop {
	return scheduler.NewLoop("session-reaper", m.cfg.ReapInterval, func(ctx context.Context) error {
		_, err := m.Reap(ctx)
		return err
	}, m.logger)
}

// Now returns the manager's clock time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

func (m *Manager) checkEndTime(now, endTime time.Time) error {
	if !endTime.After(now) {
		return fmt.Errorf("%w: end time must be in the future", apperror.ErrInvalidValue)
	}
	if m.cfg.MaxDuration > 0 && endTime.Sub(now) > m.cfg.MaxDuration {
		return fmt.Errorf("%w: end time is more than %s ahead", apperror.ErrInvalidValue, m.cfg.MaxDuration)
	}
	return nil
}

func (m *Manager) remember(ctx context.Context, session models.GameSession) {
	if err := m.cache.Set(ctx, session.ID.String(), session); err != nil {
		m.logger.Warn("Session cache write failed", zap.String("session_id", session.ID.String()), zap.Error(err))
	}
}

func (m *Manager) forget(ctx context.Context, id uuid.UUID) {
	if err := m.cache.Unset(ctx, id.String()); err != nil {
		m.logger.Warn("Session cache invalidation failed", zap.String("session_id", id.String()), zap.Error(err))
	}
}

func observe(op string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperror.ErrConflict):
		result = "conflict"
	case errors.Is(err, apperror.ErrStaleVersion):
		result = "stale"
	case errors.Is(err, apperror.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	metrics.SessionOps.WithLabelValues(op, result).Inc()
}

// SetCacheEnabled toggles the session cache.
func (m *Manager) SetCacheEnabled(enabled bool) {
	m.cache.SetEnabled(enabled)
}

// CacheEnabled reports whether the session cache is enabled.
func (m *Manager) CacheEnabled() bool {
	return m.cache.IsEnabled()
}

// Evict drops a session from the cache.
func (m *Manager) Evict(ctx context.Context, id uuid.UUID) {
	m.forget(ctx, id)
}
