package gamesave

import (
	"context"
	"errors"
	"fmt"

	"lsadf-backend/core/apperror"
	"lsadf-backend/feature/gamesave/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordStore persists one value object as a single row keyed by game save.
type RecordStore[T any, R any] struct {
	db      *gorm.DB
	column  string
	toRow   func(uuid.UUID, T) R
	fromRow func(R) T
}

func (s *RecordStore[T, R]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var row R
	err := s.db.WithContext(ctx).Where(s.column+" = ?", id).First(&row).Error
	if err != nil {
		var zero T
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return zero, fmt.Errorf("%w: game save %s", apperror.ErrNotFound, id)
		}
		return zero, err
	}
	return s.fromRow(row), nil
}

func (s *RecordStore[T, R]) Save(ctx context.Context, id uuid.UUID, value T) (T, error) {
	row := s.toRow(id, value)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	if err != nil {
		var zero T
		return zero, err
	}
	return s.fromRow(row), nil
}

// NewCharacteristicsStore returns the durable store of characteristics.
func NewCharacteristicsStore(db *gorm.DB) *RecordStore[models.Characteristics, models.CharacteristicsRecord] {
	return &RecordStore[models.Characteristics, models.CharacteristicsRecord]{
		db:     db,
		column: "game_save_id",
		toRow: func(id uuid.UUID, c models.Characteristics) models.CharacteristicsRecord {
			return models.CharacteristicsRecord{
				GameSaveID: id,
				Attack:     c.Attack,
				CritChance: c.CritChance,
				CritDamage: c.CritDamage,
				Health:     c.Health,
				Resistance: c.Resistance,
			}
		},
		fromRow: func(r models.CharacteristicsRecord) models.Characteristics {
			return models.Characteristics{
				Attack:     r.Attack,
				CritChance: r.CritChance,
				CritDamage: r.CritDamage,
				Health:     r.Health,
				Resistance: r.Resistance,
			}
		},
	}
}

// NewCurrencyStore returns the durable store of currency.
func NewCurrencyStore(db *gorm.DB) *RecordStore[models.Currency, models.CurrencyRecord] {
	return &RecordStore[models.Currency, models.CurrencyRecord]{
		db:     db,
		column: "game_save_id",
		toRow: func(id uuid.UUID, c models.Currency) models.CurrencyRecord {
			return models.CurrencyRecord{
				GameSaveID: id,
				Gold:       c.Gold,
				Diamond:    c.Diamond,
				Emerald:    c.Emerald,
				Amethyst:   c.Amethyst,
			}
		},
		fromRow: func(r models.CurrencyRecord) models.Currency {
			return models.Currency{
				Gold:     r.Gold,
				Diamond:  r.Diamond,
				Emerald:  r.Emerald,
				Amethyst: r.Amethyst,
			}
		},
	}
}

// NewStageStore returns the durable store of stage progression.
func NewStageStore(db *gorm.DB) *RecordStore[models.Stage, models.StageRecord] {
	return &RecordStore[models.Stage, models.StageRecord]{
		db:     db,
		column: "game_save_id",
		toRow: func(id uuid.UUID, s models.Stage) models.StageRecord {
			return models.StageRecord{GameSaveID: id, CurrentStage: s.CurrentStage, MaxStage: s.MaxStage}
		},
		fromRow: func(r models.StageRecord) models.Stage {
			return models.Stage{CurrentStage: r.CurrentStage, MaxStage: r.MaxStage}
		},
	}
}

// NewMetadataStore returns the durable store of game save metadata.
func NewMetadataStore(db *gorm.DB) *RecordStore[models.GameMetadata, models.GameSaveRecord] {
	return &RecordStore[models.GameMetadata, models.GameSaveRecord]{
		db:     db,
		column: "id",
		toRow: func(id uuid.UUID, m models.GameMetadata) models.GameSaveRecord {
			return models.GameSaveRecord{
				ID:        id,
				UserEmail: m.UserEmail,
				Nickname:  m.Nickname,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			}
		},
		fromRow: func(r models.GameSaveRecord) models.GameMetadata {
			return models.GameMetadata{
				ID:        r.ID,
				UserEmail: r.UserEmail,
				Nickname:  r.Nickname,
				CreatedAt: r.CreatedAt,
				UpdatedAt: r.UpdatedAt,
			}
		},
	}
}

// InventoryStore persists inventories as one row per item.
type InventoryStore struct {
	db *gorm.DB
}

// NewInventoryStore creates a new InventoryStore.
func NewInventoryStore(db *gorm.DB) *InventoryStore {
	return &InventoryStore{db: db}
}

// Get returns the items of a game save. Unknown game saves yield apperror.ErrNotFound.
func (s *InventoryStore) Get(ctx context.Context, id uuid.UUID) (models.Inventory, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.GameSaveRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return models.Inventory{}, err
	}
	if count == 0 {
		return models.Inventory{}, fmt.Errorf("%w: game save %s", apperror.ErrNotFound, id)
	}

	var rows []models.ItemRecord
	if err := db.Where("game_save_id = ?", id).Find(&rows).Error; err != nil {
		return models.Inventory{}, err
	}

	inv := models.Inventory{Items: make(map[string]models.Item, len(rows))}
	for _, r := range rows {
		inv.Items[r.ClientID] = models.Item{
			ClientID: r.ClientID,
			ItemType: r.ItemType,
			Rarity:   r.Rarity,
			Level:    r.Level,
			Equipped: r.Equipped,
		}
	}
	return inv, nil
}

// Save replaces the item set of a game save in one transaction.
func (s *InventoryStore) Save(ctx context.Context, id uuid.UUID, inv models.Inventory) (models.Inventory, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		keep := make([]string, 0, len(inv.Items))
		rows := make([]models.ItemRecord, 0, len(inv.Items))
		for clientID, item := range inv.Items {
			keep = append(keep, clientID)
			rows = append(rows, models.ItemRecord{
				GameSaveID: id,
				ClientID:   clientID,
				ItemType:   item.ItemType,
				Rarity:     item.Rarity,
				Level:      item.Level,
				Equipped:   item.Equipped,
			})
		}

		stale := tx.Where("game_save_id = ?", id)
		if len(keep) > 0 {
			stale = stale.Where("client_id NOT IN ?", keep)
		}
		if err := stale.Delete(&models.ItemRecord{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	})
	if err != nil {
		return models.Inventory{}, err
	}
	return inv, nil
}

// DeleteItem removes one durable item row. It reports whether a row was deleted.
func (s *InventoryStore) DeleteItem(ctx context.Context, id uuid.UUID, clientID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("game_save_id = ? AND client_id = ?", id, clientID).
		Delete(&models.ItemRecord{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
