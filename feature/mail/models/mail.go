package models

import (
	"time"

	"github.com/google/uuid"
)

// Mail is an in-game message, optionally carrying a currency reward.
type Mail struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	GameSaveID uuid.UUID `gorm:"type:char(36);index" json:"game_save_id"`
	Subject    string    `gorm:"size:255" json:"subject"`
	Body       string    `gorm:"type:text" json:"body"`
	Gold       int64     `json:"gold"`
	Diamond    int64     `json:"diamond"`
	Emerald    int64     `json:"emerald"`
	Amethyst   int64     `json:"amethyst"`
	Read       bool      `gorm:"column:is_read" json:"read"`
	Claimed    bool      `gorm:"column:is_claimed" json:"claimed"`
	CreatedAt  time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	ExpiresAt  time.Time `gorm:"index" json:"expires_at"`
}

func (Mail) TableName() string { return "mail" }

// HasReward reports whether claiming the mail credits anything.
func (m Mail) HasReward() bool {
	return m.Gold > 0 || m.Diamond > 0 || m.Emerald > 0 || m.Amethyst > 0
}

// IsExpired reports whether the mail passed its expiry.
func (m Mail) IsExpired(now time.Time) bool {
	return !m.ExpiresAt.IsZero() && !now.Before(m.ExpiresAt)
}
