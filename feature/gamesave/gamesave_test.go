package gamesave_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/database"
	"lsadf-backend/feature/gamesave"
	"lsadf-backend/feature/gamesave/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.All()...))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}

	return gormDB, mock
}

func seedSave(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, db.Create(&models.GameSaveRecord{ID: id, UserEmail: "player@lsadf.test", Nickname: "player"}).Error)
	return id
}

func newServices(t *testing.T, db *gorm.DB) (*gamesave.Services, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := cache.Config{Enabled: true, Expiration: time.Hour}
	return gamesave.NewServices(db, cache.NewMemoryBackend(clk), nil, cfg, clk, zap.NewNop()), clk
}

func TestCurrencyStore_RoundTrip(t *testing.T) {
	db := setupDB(t)
	store := gamesave.NewCurrencyStore(db)
	ctx := context.Background()
	id := uuid.New()

	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	saved, err := store.Save(ctx, id, models.Currency{Gold: i64(100), Diamond: i64(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(100), *saved.Gold)

	// Upsert replaces the whole row.
	_, err = store.Save(ctx, id, models.Currency{Gold: i64(5)})
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *got.Gold)
	assert.Nil(t, got.Diamond)
}

func TestMetadataStore_RoundTrip(t *testing.T) {
	db := setupDB(t)
	store := gamesave.NewMetadataStore(db)
	ctx := context.Background()
	id := seedSave(t, db)

	meta, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, meta.ID)
	assert.Equal(t, "player", meta.Nickname)

	meta.Nickname = "renamed"
	_, err = store.Save(ctx, id, meta)
	require.NoError(t, err)

	meta, err = store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "renamed", meta.Nickname)
}

func TestInventoryStore_ReplaceAndDelete(t *testing.T) {
	db := setupDB(t)
	store := gamesave.NewInventoryStore(db)
	ctx := context.Background()

	_, err := store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	id := seedSave(t, db)
	inv, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, inv.Items)

	inv = inv.With(models.Item{ClientID: "a", ItemType: "sword", Rarity: "rare", Level: 3})
	inv = inv.With(models.Item{ClientID: "b", ItemType: "shield", Rarity: "common", Level: 1})
	_, err = store.Save(ctx, id, inv)
	require.NoError(t, err)

	// Replacing drops items missing from the new set.
	_, err = store.Save(ctx, id, inv.Without("b").With(models.Item{ClientID: "a", ItemType: "sword", Rarity: "rare", Level: 4}))
	require.NoError(t, err)

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(4), got.Items["a"].Level)

	deleted, err := store.DeleteItem(ctx, id, "a")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteItem(ctx, id, "a")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestRecordStore_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := gamesave.NewStageStore(db)

	mock.ExpectQuery("SELECT (.+) FROM `stage`").WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServices_WriteThroughAndCacheOnly(t *testing.T) {
	db := setupDB(t)
	svcs, _ := newServices(t, db)
	ctx := context.Background()
	id := seedSave(t, db)

	require.NoError(t, svcs.Characteristics.Save(ctx, id, models.Characteristics{Attack: i64(10)}, false))
	dirty, err := svcs.Characteristics.IsDirty(ctx, id)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, svcs.Currency.Save(ctx, id, models.Currency{Gold: i64(100)}, true))
	dirty, err = svcs.Currency.IsDirty(ctx, id)
	require.NoError(t, err)
	assert.True(t, dirty)

	_, err = gamesave.NewCurrencyStore(db).Get(ctx, id)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	for _, f := range svcs.Flushers() {
		_, err := f.Flush(ctx, id)
		require.NoError(t, err)
	}

	durable, err := gamesave.NewCurrencyStore(db).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), *durable.Gold)
}

func TestServices_FlushersOrder(t *testing.T) {
	svcs, _ := newServices(t, setupDB(t))

	var kinds []string
	for _, f := range svcs.Flushers() {
		kinds = append(kinds, f.Kind())
	}
	assert.Equal(t, []string{
		models.KindCharacteristics,
		models.KindCurrency,
		models.KindStage,
		models.KindInventory,
		models.KindMetadata,
	}, kinds)
}

func TestServices_Validation(t *testing.T) {
	db := setupDB(t)
	svcs, _ := newServices(t, db)
	ctx := context.Background()

	err := svcs.Currency.Save(ctx, uuid.New(), models.Currency{Gold: i64(-1)}, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidValue)

	err = svcs.Stage.Save(ctx, uuid.New(), models.Stage{MaxStage: i64(-3)}, true)
	assert.ErrorIs(t, err, apperror.ErrInvalidValue)

	// Current and max stage are validated independently.
	id := seedSave(t, db)
	require.NoError(t, svcs.Stage.Save(ctx, id, models.Stage{CurrentStage: i64(5), MaxStage: i64(3)}, false))
	stage, err := gamesave.NewStageStore(db).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *stage.CurrentStage)
	assert.Equal(t, int64(3), *stage.MaxStage)
}

func TestServices_CreditAndTouch(t *testing.T) {
	db := setupDB(t)
	svcs, clk := newServices(t, db)
	ctx := context.Background()
	id := seedSave(t, db)

	cur, err := svcs.Credit(ctx, id, models.Currency{Gold: i64(50)}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(50), *cur.Gold)

	cur, err = svcs.Credit(ctx, id, models.Currency{Gold: i64(25), Emerald: i64(1)}, true)
	require.NoError(t, err)
	assert.Equal(t, int64(75), *cur.Gold)
	assert.Equal(t, int64(1), *cur.Emerald)
	assert.Nil(t, cur.Diamond)

	clk.Advance(time.Minute)
	require.NoError(t, svcs.Touch(ctx, id, false))
	meta, err := gamesave.NewMetadataStore(db).Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, meta.UpdatedAt.Equal(clk.Now()), "updated_at %s", meta.UpdatedAt)
}

func TestServices_Snapshot(t *testing.T) {
	db := setupDB(t)
	svcs, _ := newServices(t, db)
	ctx := context.Background()
	id := seedSave(t, db)

	require.NoError(t, svcs.Stage.Save(ctx, id, models.Stage{CurrentStage: i64(2), MaxStage: i64(4)}, true))

	snap, err := svcs.Snapshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap.Metadata)
	require.NotNil(t, snap.Stage)
	require.NotNil(t, snap.Inventory)
	assert.Nil(t, snap.Currency)
	assert.Equal(t, int64(2), *snap.Stage.CurrentStage)
}

func TestServices_CacheToggle(t *testing.T) {
	svcs, _ := newServices(t, setupDB(t))
	assert.True(t, svcs.CacheEnabled())
	svcs.SetCacheEnabled(false)
	assert.False(t, svcs.CacheEnabled())
	assert.False(t, svcs.Currency.Cache().IsEnabled())
}

func i64(v int64) *int64 { return &v }
