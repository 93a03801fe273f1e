package gamesave_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"lsadf-backend/feature/gamesave"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandler_Currency(t *testing.T) {
	db := setupDB(t)
	svcs, _ := newServices(t, db)
	id := seedSave(t, db)

	app := fiber.New()
	require.NoError(t, gamesave.NewFeature(svcs, zap.NewNop()).Load(app))

	req := httptest.NewRequest("PUT", "/saves/"+id.String()+"/currency", strings.NewReader(`{"gold":100}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	dirty, err := svcs.Currency.IsDirty(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, dirty)

	resp, err = app.Test(httptest.NewRequest("GET", "/saves/"+id.String()+"/currency", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"gold":100}`, string(body))
}

func TestHandler_Errors(t *testing.T) {
	svcs, _ := newServices(t, setupDB(t))
	app := fiber.New()
	require.NoError(t, gamesave.NewFeature(svcs, zap.NewNop()).Load(app))

	resp, err := app.Test(httptest.NewRequest("GET", "/saves/not-a-uuid/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/saves/"+"00000000-0000-0000-0000-000000000001/stage", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	req := httptest.NewRequest("PUT", "/saves/00000000-0000-0000-0000-000000000001/stage?cache_only=false",
		strings.NewReader(`{"current_stage":-1}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
