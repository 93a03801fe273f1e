package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/feature/session/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists game sessions.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new session store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new session.
func (s *Store) Create(ctx context.Context, session models.GameSession) error {
	return s.db.WithContext(ctx).Create(&session).Error
}

// Get returns a session by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (models.GameSession, error) {
	var session models.GameSession
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, fmt.Errorf("%w: session %s", apperror.ErrNotFound, id)
	}
	return session, err
}

// FindActive returns the non-terminal session of a game save, if any.
func (s *Store) FindActive(ctx context.Context, saveID uuid.UUID, now time.Time) (models.GameSession, bool, error) {
	var session models.GameSession
	err := s.db.WithContext(ctx).
		Where("game_save_id = ? AND cancelled = ? AND end_time > ?", saveID, false, now).
		Order("end_time DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, false, nil
	}
	if err != nil {
		return session, false, err
	}
	return session, true, nil
}

// UpdateVersioned writes the mutable fields of session if the stored version still equals
// knownVersion, and bumps the version. It returns apperror.ErrStaleVersion when another
// writer got there first.
func (s *Store) UpdateVersioned(ctx context.Context, session models.GameSession, knownVersion int64) (models.GameSession, error) {
	res := s.db.WithContext(ctx).
		Model(&models.GameSession{}).
		Where("id = ? AND version = ?", session.ID, knownVersion).
		Updates(map[string]any{
			"end_time":   session.EndTime,
			"cancelled":  session.Cancelled,
			"updated_at": session.UpdatedAt,
			"version":    knownVersion + 1,
		})
	if res.Error != nil {
		return session, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, session.ID); err != nil {
			return session, err
		}
		return session, fmt.Errorf("%w: session %s is no longer at version %d", apperror.ErrStaleVersion, session.ID, knownVersion)
	}
	session.Version = knownVersion + 1
	return session, nil
}

// DeleteExpired removes sessions that ended, or were cancelled, before the given time.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("end_time < ? OR (cancelled = ? AND updated_at < ?)", before, true, before).
		Delete(&models.GameSession{})
	return res.RowsAffected, res.Error
}
