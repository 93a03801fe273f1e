package mail_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/database"
	"lsadf-backend/core/events"
	"lsadf-backend/feature/gamesave"
	gsmodels "lsadf-backend/feature/gamesave/models"
	"lsadf-backend/feature/mail"
	"lsadf-backend/feature/mail/models"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var start = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *mail.Service
	svcs   *gamesave.Services
	clock  *clock.Fake
	saveID uuid.UUID
}

func i64(v int64) *int64 { return &v }

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, append(gsmodels.All(), &models.Mail{})...))

	clk := clock.NewFake(start)
	svcs := gamesave.NewServices(db, cache.NewMemoryBackend(clk), nil, cache.Config{Enabled: true, Expiration: time.Hour}, clk, zap.NewNop())

	bus := events.NewBus(events.Config{}, zap.NewNop())
	require.NoError(t, mail.RegisterListeners(bus, svcs, zap.NewNop()))
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { bus.Close() })

	saveID := uuid.New()
	require.NoError(t, db.Create(&gsmodels.GameSaveRecord{
		ID:        saveID,
		UserEmail: "player@lsadf.test",
		CreatedAt: start.Add(-48 * time.Hour),
		UpdatedAt: start.Add(-48 * time.Hour),
	}).Error)
	require.NoError(t, svcs.Currency.Save(context.Background(), saveID, gsmodels.Currency{Gold: i64(10)}, false))

	svc := mail.NewService(mail.NewStore(db), bus, clk, mail.Config{TTL: 24 * time.Hour}, zap.NewNop())
	return fixture{svc: svc, svcs: svcs, clock: clk, saveID: saveID}
}

func TestSend_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "  "})
	assert.ErrorIs(t, err, apperror.ErrInvalidValue)

	_, err = f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "gift", Gold: -1})
	assert.ErrorIs(t, err, apperror.ErrInvalidValue)

	m, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "gift", Gold: 5})
	require.NoError(t, err)
	assert.Equal(t, start.Add(24*time.Hour), m.ExpiresAt)
	assert.True(t, m.HasReward())

	mails, err := f.svc.List(ctx, f.saveID)
	require.NoError(t, err)
	require.Len(t, mails, 1)
	assert.Equal(t, m.ID, mails[0].ID)
}

func TestRead_TouchesMetadata(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "news"})
	require.NoError(t, err)

	read, err := f.svc.Read(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	require.Eventually(t, func() bool {
		meta, err := f.svcs.Metadata.Get(ctx, f.saveID)
		return err == nil && meta.UpdatedAt.Equal(start)
	}, 2*time.Second, 10*time.Millisecond)

	again, err := f.svc.Read(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, again.Read)

	_, err = f.svc.Read(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestClaim_CreditsOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "reward", Gold: 5, Diamond: 1})
	require.NoError(t, err)

	claimed, err := f.svc.Claim(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, claimed.Claimed)
	assert.True(t, claimed.Read)

	_, err = f.svc.Claim(ctx, m.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	require.Eventually(t, func() bool {
		c, err := f.svcs.Currency.Get(ctx, f.saveID)
		return err == nil && c.Gold != nil && *c.Gold == 15 && c.Diamond != nil && *c.Diamond == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "race", Gold: 1})
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Claim(ctx, m.ID); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestClaim_Expired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	m, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "late", Gold: 1, TTL: time.Hour})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.svc.Claim(ctx, m.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestCleanup_DeletesExpired(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	short, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "short", TTL: time.Hour})
	require.NoError(t, err)
	long, err := f.svc.Send(ctx, f.saveID, mail.Draft{Subject: "long", TTL: 48 * time.Hour})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.svc.Loop().RunOnce(ctx))

	mails, err := f.svc.List(ctx, f.saveID)
	require.NoError(t, err)
	require.Len(t, mails, 1)
	assert.Equal(t, long.ID, mails[0].ID)
	assert.NotEqual(t, short.ID, mails[0].ID)
	assert.Equal(t, "mail-cleanup", f.svc.Loop().String())
}

func TestHandler_SendAndClaim(t *testing.T) {
	f := setup(t)
	app := fiber.New()
	mail.NewHandler(f.svc, zap.NewNop()).RegisterRoutes(app)

	req := httptest.NewRequest("POST", "/saves/"+f.saveID.String()+"/mails",
		strings.NewReader(`{"subject":"hello","gold":3,"ttl_seconds":60}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var m models.Mail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, start.Add(time.Minute), m.ExpiresAt.UTC())

	resp, err = app.Test(httptest.NewRequest("POST", "/mails/"+m.ID.String()+"/claim", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/mails/"+m.ID.String()+"/claim", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/mails/not-a-uuid/read", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
