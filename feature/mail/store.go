package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/feature/mail/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists mails.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new mail store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a mail.
func (s *Store) Create(ctx context.Context, m models.Mail) error {
	return s.db.WithContext(ctx).Create(&m).Error
}

// Get returns a mail by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (models.Mail, error) {
	var m models.Mail
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return m, fmt.Errorf("%w: mail %s", apperror.ErrNotFound, id)
	}
	return m, err
}

// List returns the mails of a game save, newest first.
func (s *Store) List(ctx context.Context, saveID uuid.UUID) ([]models.Mail, error) {
	var mails []models.Mail
	err := s.db.WithContext(ctx).
		Where("game_save_id = ?", saveID).
		Order("created_at DESC").
		Find(&mails).Error
	return mails, err
}

// MarkRead flags a mail as read. It reports whether the flag changed.
func (s *Store) MarkRead(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.flag(ctx, id, "is_read")
}

// MarkClaimed flags a mail as claimed (and read). It reports whether the flag changed, so a
// reward is handed out at most once even under concurrent claims.
func (s *Store) MarkClaimed(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.flag(ctx, id, "is_claimed")
}

func (s *Store) flag(ctx context.Context, id uuid.UUID, column string) (bool, error) {
	updates := map[string]any{column: true}
	if column == "is_claimed" {
		updates["is_read"] = true
	}
	res := s.db.WithContext(ctx).
		Model(&models.Mail{}).
		Where("id = ? AND "+column+" = ?", id, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteExpired removes mails that expired before the given time.
func (s *Store) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ?", before).
		Delete(&models.Mail{})
	return res.RowsAffected, res.Error
}
