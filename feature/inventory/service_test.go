package inventory_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/database"
	"lsadf-backend/core/events"
	"lsadf-backend/feature/gamesave"
	"lsadf-backend/feature/gamesave/models"
	"lsadf-backend/feature/inventory"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	svc    *inventory.Service
	svcs   *gamesave.Services
	saveID uuid.UUID
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.All()...))

	clk := clock.NewFake(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	svcs := gamesave.NewServices(db, cache.NewMemoryBackend(clk), nil, cache.Config{Enabled: true, Expiration: time.Hour}, clk, zap.NewNop())

	bus := events.NewBus(events.Config{}, zap.NewNop())
	require.NoError(t, inventory.RegisterListeners(bus, svcs.Items, zap.NewNop()))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Close() })

	saveID := uuid.New()
	require.NoError(t, db.Create(&models.GameSaveRecord{ID: saveID, UserEmail: "a@b.c"}).Error)

	inv := models.Inventory{}.
		With(models.Item{ClientID: "sword", ItemType: "weapon", Level: 2}).
		With(models.Item{ClientID: "boots", ItemType: "armor", Level: 1})
	require.NoError(t, svcs.Inventory.Save(context.Background(), saveID, inv, false))

	return fixture{svc: inventory.NewService(svcs.Inventory, bus, clk, zap.NewNop()), svcs: svcs, saveID: saveID}
}

func TestDeleteItem_CascadesToDatabaseBeforeReturn(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteItem(ctx, f.saveID, "sword"))

	durable, err := f.svcs.Items.Get(ctx, f.saveID)
	require.NoError(t, err)
	assert.NotContains(t, durable.Items, "sword")
	assert.Contains(t, durable.Items, "boots")

	cached, err := f.svc.Get(ctx, f.saveID)
	require.NoError(t, err)
	assert.NotContains(t, cached.Items, "sword")

	err = f.svc.DeleteItem(ctx, f.saveID, "sword")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestPutItem_CacheOnly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	inv, err := f.svc.PutItem(ctx, f.saveID, models.Item{ClientID: "ring", ItemType: "jewel", Level: 5})
	require.NoError(t, err)
	assert.Len(t, inv.Items, 3)

	dirty, err := f.svcs.Inventory.IsDirty(ctx, f.saveID)
	require.NoError(t, err)
	assert.True(t, dirty)

	_, err = f.svc.PutItem(ctx, f.saveID, models.Item{ClientID: "bad", Level: -1})
	assert.ErrorIs(t, err, apperror.ErrInvalidValue)
}

func TestHandler_DeleteItem(t *testing.T) {
	f := setup(t)
	app := fiber.New()
	require.NoError(t, inventory.NewFeature(f.svc, zap.NewNop()).Load(app))

	base := "/saves/" + f.saveID.String() + "/inventory/"
	resp, err := app.Test(httptest.NewRequest("DELETE", base+"boots", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("DELETE", base+"boots", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest("PUT", base+"cape", strings.NewReader(`{"item_type":"armor","level":1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
