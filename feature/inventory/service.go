package inventory

import (
	"context"
	"fmt"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/events"
	"lsadf-backend/core/resource"
	"lsadf-backend/feature/gamesave/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemDeleter removes a durable inventory row.
type ItemDeleter interface {
	DeleteItem(ctx context.Context, saveID uuid.UUID, clientID string) (bool, error)
}

// Service edits inventories item by item on top of the inventory resource service.
type Service struct {
	inventory *resource.Service[models.Inventory]
	bus       *events.Bus
	clock     clock.Clock
	logger    *zap.Logger
}

// NewService creates a new inventory service.
func NewService(inventory *resource.Service[models.Inventory], bus *events.Bus, clk clock.Clock, logger *zap.Logger) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{inventory: inventory, bus: bus, clock: clk, logger: logger}
}

// Get returns the inventory of a game save.
func (s *Service) Get(ctx context.Context, saveID uuid.UUID) (models.Inventory, error) {
	return s.inventory.Get(ctx, saveID)
}

// PutItem adds or replaces one item with a cache-only write.
func (s *Service) PutItem(ctx context.Context, saveID uuid.UUID, item models.Item) (models.Inventory, error) {
	inv, err := s.inventory.Get(ctx, saveID)
	if err != nil {
		return inv, err
	}
	next := inv.With(item)
	if err := s.inventory.Save(ctx, saveID, next, true); err != nil {
		return inv, err
	}
	return next, nil
}

// DeleteItem removes one item. The cached inventory is updated cache-only and the durable row
// is deleted by the synchronous InventoryItemDeleted listener before DeleteItem returns.
func (s *Service) DeleteItem(ctx context.Context, saveID uuid.UUID, clientID string) error {
	inv, err := s.inventory.Get(ctx, saveID)
	if err != nil {
		return err
	}
	if _, ok := inv.Items[clientID]; !ok {
		return fmt.Errorf("%w: item %s in game save %s", apperror.ErrNotFound, clientID, saveID)
	}

	if err := s.inventory.Save(ctx, saveID, inv.Without(clientID), true); err != nil {
		return err
	}

	e, err := events.New(events.InventoryItemDeleted, s.clock.Now(), events.InventoryItemDeletedPayload{
		GameSaveID: saveID,
		ClientID:   clientID,
	})
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, e)
}

// RegisterListeners binds the item deletion cascade to the bus.
func RegisterListeners(bus *events.Bus, deleter ItemDeleter, logger *zap.Logger) error {
	return bus.Register(events.InventoryItemDeleted, events.Sync, func(ctx context.Context, e events.Event) error {
		var p events.InventoryItemDeletedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		deleted, err := deleter.DeleteItem(ctx, p.GameSaveID, p.ClientID)
		if err != nil {
			return fmt.Errorf("delete item %s: %w", p.ClientID, err)
		}
		logger.Debug("Inventory item deleted",
			zap.String("game_save_id", p.GameSaveID.String()),
			zap.String("client_id", p.ClientID),
			zap.Bool("durable_row", deleted),
		)
		return nil
	})
}
