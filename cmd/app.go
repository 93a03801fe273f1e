package cmd

import (
	"context"
	"fmt"

	"lsadf-backend/core/cache"
	"lsadf-backend/core/clock"
	"lsadf-backend/core/config"
	"lsadf-backend/core/database"
	"lsadf-backend/core/events"
	"lsadf-backend/core/logger"
	"lsadf-backend/core/storage"
	"lsadf-backend/core/workflow"
	"lsadf-backend/feature/flush"
	"lsadf-backend/feature/gamesave"
	gsmodels "lsadf-backend/feature/gamesave/models"
	"lsadf-backend/feature/inventory"
	"lsadf-backend/feature/mail"
	mailmodels "lsadf-backend/feature/mail/models"
	"lsadf-backend/feature/session"
	sessionmodels "lsadf-backend/feature/session/models"
	"lsadf-backend/feature/sessionflow"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// application holds the wired components shared by the commands.
type application struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	bus    *events.Bus
	log    *workflow.Log

	saves     *gamesave.Services
	inventory *inventory.Service
	sessions  *session.Manager
	flow      *sessionflow.Flow
	mail      *mail.Service
	flusher   *flush.Scheduler
}

// schema lists every persisted model.
func schema() []any {
	return append(gsmodels.All(), &sessionmodels.GameSession{}, &mailmodels.Mail{})
}

func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logg)
	return cfg, logg, nil
}

// newApplication connects the stores and wires every service. The cache falls back to a
// disabled in-memory backend when the configured one is unreachable, so writes go through.
func newApplication(ctx context.Context, cfg *config.Config, logg *zap.Logger) (*application, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	clk := clock.System{}
	cacheCfg := cfg.Cache
	backend, breaker, err := cache.NewBackend(cacheCfg, logg)
	if err != nil {
		logg.Warn("Cache backend unavailable, running with cache disabled", zap.Error(err))
		backend, breaker = cache.NewMemoryBackend(clk), nil
		cacheCfg.Enabled = false
	}

	app := &application{cfg: cfg, logger: logg, db: db}
	app.bus = events.NewBus(cfg.Events, logg.Named("events"))
	app.saves = gamesave.NewServices(db, backend, breaker, cacheCfg, clk, logg)
	app.inventory = inventory.NewService(app.saves.Inventory, app.bus, clk, logg)

	sessionCache := cache.NewHashCache[sessionmodels.GameSession](session.CacheKind, backend, cache.JSONCodec[sessionmodels.GameSession]{}, breaker, cacheCfg.Expiration)
	sessionCache.SetEnabled(cacheCfg.Enabled)
	app.sessions = session.NewManager(session.NewStore(db), sessionCache, clk, cfg.Session, logg.Named("session"))

	var archive sessionflow.Archiver
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		a := storage.NewArchive(client, cfg.Storage)
		if err := a.EnsureBucket(ctx); err != nil {
			logg.Warn("Session archive bucket unavailable", zap.Error(err))
		}
		archive = a
	}

	app.log, err = workflow.OpenLog(cfg.Workflow.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow log: %w", err)
	}
	app.flow = sessionflow.New(cfg.Workflow, app.log, sessionflow.Deps{
		Flushers:  app.saves.Flushers(),
		Snapshots: app.saves,
		Sessions:  app.sessions,
		Bus:       app.bus,
		Archive:   archive,
	}, clk, logg.Named("workflow"))
	app.sessions.SetHooks(app.flow)

	app.mail = mail.NewService(mail.NewStore(db), app.bus, clk, cfg.Mail, logg.Named("mail"))
	app.flusher = flush.NewScheduler(app.saves.Flushers(), logg.Named("flush"))

	if err := app.registerListeners(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *application) registerListeners() error {
	if err := inventory.RegisterListeners(a.bus, a.saves.Items, a.logger); err != nil {
		return fmt.Errorf("register inventory listeners: %w", err)
	}
	if err := mail.RegisterListeners(a.bus, a.saves, a.logger); err != nil {
		return fmt.Errorf("register mail listeners: %w", err)
	}
	if err := sessionflow.RegisterListeners(a.bus, a.sessions, a.logger); err != nil {
		return fmt.Errorf("register workflow listeners: %w", err)
	}
	return nil
}

// Close releases the bus and the workflow log.
func (a *application) Close() {
	if err := a.bus.Close(); err != nil {
		a.logger.Warn("Event bus close failed", zap.Error(err))
	}
	if err := a.log.Close(); err != nil {
		a.logger.Warn("Workflow log close failed", zap.Error(err))
	}
}
