package gamesave

import (
	"context"
	"errors"
	"fmt"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/resource"
	"lsadf-backend/feature/gamesave/models"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services binds the generic resource service once per game-save resource kind.
type Services struct {
	Characteristics *resource.Service[models.Characteristics]
	Currency        *resource.Service[models.Currency]
	Stage           *resource.Service[models.Stage]
	Inventory       *resource.Service[models.Inventory]
	Metadata        *resource.Service[models.GameMetadata]

	Items *InventoryStore

	clock   clock.Clock
	toggles []toggle
}

type toggle interface {
	SetEnabled(bool)
	IsEnabled() bool
}

// NewServices creates the resource services of every game-save kind over one cache backend.
func NewServices(db *gorm.DB, backend cache.Backend, breaker *gobreaker.CircuitBreaker[any], cfg cache.Config, clk clock.Clock, logger *zap.Logger) *Services {
	if clk == nil {
		clk = clock.System{}
	}

	characteristics := cache.NewHashCache[models.Characteristics](models.KindCharacteristics, backend, models.CharacteristicsCodec, breaker, cfg.Expiration)
	currency := cache.NewHashCache[models.Currency](models.KindCurrency, backend, models.CurrencyCodec, breaker, cfg.Expiration)
	stage := cache.NewHashCache[models.Stage](models.KindStage, backend, models.StageCodec, breaker, cfg.Expiration)
	inventory := cache.NewHashCache[models.Inventory](models.KindInventory, backend, models.InventoryCodec, breaker, cfg.Expiration)
	metadata := cache.NewHashCache[models.GameMetadata](models.KindMetadata, backend, models.MetadataCodec, breaker, cfg.Expiration)

	items := NewInventoryStore(db)
	s := &Services{
		Characteristics: resource.NewService[models.Characteristics](characteristics, NewCharacteristicsStore(db), logger,
			resource.WithValidator(models.Characteristics.Validate)),
		Currency: resource.NewService[models.Currency](currency, NewCurrencyStore(db), logger,
			resource.WithValidator(models.Currency.Validate)),
		Stage: resource.NewService[models.Stage](stage, NewStageStore(db), logger,
			resource.WithValidator(models.Stage.Validate)),
		Inventory: resource.NewService[models.Inventory](inventory, items, logger,
			resource.WithValidator(models.Inventory.Validate)),
		Metadata: resource.NewService[models.GameMetadata](metadata, NewMetadataStore(db), logger,
			resource.WithValidator(models.GameMetadata.Validate)),
		Items: items,
		clock: clk,
	}
	s.toggles = []toggle{characteristics, currency, stage, inventory, metadata}
	s.SetCacheEnabled(cfg.Enabled)
	return s
}

// Flushers returns the services in checkpoint order.
// Later kinds assume earlier ones are durable, e.g. inventory assumes currency reflects spend.
func (s *Services) Flushers() []resource.Flusher {
	return []resource.Flusher{
		s.Characteristics,
		s.Currency,
		s.Stage,
		s.Inventory,
		s.Metadata,
	}
}

// SetCacheEnabled toggles the cache of every kind.
func (s *Services) SetCacheEnabled(enabled bool) {
	for _, t := range s.toggles {
		t.SetEnabled(enabled)
	}
}

// CacheEnabled reports whether the caches are enabled.
func (s *Services) CacheEnabled() bool {
	return len(s.toggles) > 0 && s.toggles[0].IsEnabled()
}

// Snapshot is the full state of one game save.
type Snapshot struct {
	GameSaveID      uuid.UUID               `json:"game_save_id"`
	Metadata        *models.GameMetadata    `json:"metadata,omitempty"`
	Characteristics *models.Characteristics `json:"characteristics,omitempty"`
	Currency        *models.Currency        `json:"currency,omitempty"`
	Stage           *models.Stage           `json:"stage,omitempty"`
	Inventory       *models.Inventory       `json:"inventory,omitempty"`
}

// Snapshot reads every kind of a game save. Kinds without a record are left empty.
func (s *Services) Snapshot(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	snap := &Snapshot{GameSaveID: id}
	if err := snapshotPart(ctx, s.Metadata, id, &snap.Metadata); err != nil {
		return nil, err
	}
	if err := snapshotPart(ctx, s.Characteristics, id, &snap.Characteristics); err != nil {
		return nil, err
	}
	if err := snapshotPart(ctx, s.Currency, id, &snap.Currency); err != nil {
		return nil, err
	}
	if err := snapshotPart(ctx, s.Stage, id, &snap.Stage); err != nil {
		return nil, err
	}
	if err := snapshotPart(ctx, s.Inventory, id, &snap.Inventory); err != nil {
		return nil, err
	}
	return snap, nil
}

func snapshotPart[T any](ctx context.Context, svc *resource.Service[T], id uuid.UUID, dst **T) error {
	v, err := svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("snapshot: %w", err)
	}
	*dst = &v
	return nil
}

// Touch stamps the metadata update time of a game save.
func (s *Services) Touch(ctx context.Context, id uuid.UUID, cacheOnly bool) error {
	meta, err := s.Metadata.Get(ctx, id)
	if err != nil {
		return err
	}
	meta.UpdatedAt = s.clock.Now()
	return s.Metadata.Save(ctx, id, meta, cacheOnly)
}

// Credit adds a currency delta to the balance of a game save.
func (s *Services) Credit(ctx context.Context, id uuid.UUID, delta models.Currency, cacheOnly bool) (models.Currency, error) {
	current, err := s.Currency.Get(ctx, id)
	if err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return models.Currency{}, err
	}
	next := current.Add(delta)
	if err := s.Currency.Save(ctx, id, next, cacheOnly); err != nil {
		return models.Currency{}, err
	}
	return next, nil
}
