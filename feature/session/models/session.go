package models

import (
	"time"

	"github.com/google/uuid"
)

// GameSession is one play session of a game save.
// Version increments on every update; writes carrying an older version are rejected.
type GameSession struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	GameSaveID uuid.UUID `gorm:"type:char(36);index" json:"game_save_id"`
	UserEmail  string    `gorm:"size:255" json:"user_email"`
	EndTime    time.Time `gorm:"index" json:"end_time"`
	Cancelled  bool      `json:"cancelled"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	Version    int64     `json:"version"`
}

func (GameSession) TableName() string { return "game_session" }

// IsExpired reports whether the session ran past its end time without being cancelled.
func (s GameSession) IsExpired(now time.Time) bool {
	return !s.Cancelled && !now.Before(s.EndTime)
}

// IsTerminal reports whether the session accepts no further extension.
func (s GameSession) IsTerminal(now time.Time) bool {
	return s.Cancelled || !now.Before(s.EndTime)
}
