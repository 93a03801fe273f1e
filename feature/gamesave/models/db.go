package models

import (
	"time"

	"github.com/google/uuid"
)

// CharacteristicsRecord is the durable row of a save's characteristics.
type CharacteristicsRecord struct {
	GameSaveID uuid.UUID `gorm:"type:char(36);primaryKey"`
	Attack     *int64
	CritChance *int64
	CritDamage *int64
	Health     *int64
	Resistance *int64
	UpdatedAt  time.Time
}

func (CharacteristicsRecord) TableName() string { return "characteristics" }

// CurrencyRecord is the durable row of a save's currency.
type CurrencyRecord struct {
	GameSaveID uuid.UUID `gorm:"type:char(36);primaryKey"`
	Gold       *int64
	Diamond    *int64
	Emerald    *int64
	Amethyst   *int64
	UpdatedAt  time.Time
}

func (CurrencyRecord) TableName() string { return "currency" }

// StageRecord is the durable row of a save's stage.
type StageRecord struct {
	GameSaveID   uuid.UUID `gorm:"type:char(36);primaryKey"`
	CurrentStage *int64
	MaxStage     *int64
	UpdatedAt    time.Time
}

func (StageRecord) TableName() string { return "stage" }

// GameSaveRecord is the durable row of a save's metadata.
type GameSaveRecord struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	UserEmail string    `gorm:"size:255;index"`
	Nickname  string    `gorm:"size:64"`
	CreatedAt time.Time
	// UpdatedAt records the last player activity and is stamped by the application.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false"`
}

func (GameSaveRecord) TableName() string { return "game_save" }

// ItemRecord is one durable inventory row.
type ItemRecord struct {
	GameSaveID uuid.UUID `gorm:"type:char(36);primaryKey"`
	ClientID   string    `gorm:"size:64;primaryKey"`
	ItemType   string    `gorm:"size:32"`
	Rarity     string    `gorm:"size:32"`
	Level      int64
	Equipped   bool
	UpdatedAt  time.Time
}

func (ItemRecord) TableName() string { return "inventory_item" }

// All lists the game-save models for migration.
func All() []any {
	return []any{
		&GameSaveRecord{},
		&CharacteristicsRecord{},
		&CurrencyRecord{},
		&StageRecord{},
		&ItemRecord{},
	}
}
