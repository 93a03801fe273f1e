package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"lsadf-backend/core/loader"
	"lsadf-backend/core/logger"
	"lsadf-backend/core/middleware/rayid"
	"lsadf-backend/core/server"
	"lsadf-backend/core/supervisor"
	"lsadf-backend/feature/flush"
	"lsadf-backend/feature/gamesave"
	"lsadf-backend/feature/inventory"
	"lsadf-backend/feature/mail"
	"lsadf-backend/feature/session"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API and background workers",
	Long: `Starts the HTTP API together with the supervised background services:
cache flush, session workflow, session reaper and mail cleanup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logg, err := loadRuntime()
		if err != nil {
			return err
		}
		defer logg.Sync()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApplication(ctx, cfg, logg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.bus.Start(ctx); err != nil {
			return err
		}

		app := server.NewApp(cfg.Server)

		// RayID first so every later log line carries it.
		app.Use(rayid.New())
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Debug("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

		mgr := loader.NewManager(logg)
		mgr.Register(gamesave.NewFeature(a.saves, logg))
		mgr.Register(inventory.NewFeature(a.inventory, logg))
		mgr.Register(session.NewFeature(a.sessions, logg))
		mgr.Register(mail.NewFeature(a.mail, logg))
		mgr.Register(flush.NewFeature(a.flusher, a.saves, a.sessions))
		if err := mgr.LoadAll(app); err != nil {
			return err
		}

		tree := supervisor.NewTree("lsadf", cfg.Supervisor, logg.Named("supervisor"))
		tree.AddWorker(a.flow.Engine())
		tree.AddWorker(a.sessions.ReaperLoop())
		tree.AddWorker(a.mail.Loop())
		if cfg.Flush.Enabled {
			tree.AddWorker(a.flusher.Loop(cfg.Flush))
		}
		tree.AddAPI(server.NewService(app, cfg.Server, logg))

		logg.Info("Starting lsadf", zap.String("address", cfg.Server.Address()))
		err = tree.Serve(ctx)

		if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
			for _, svc := range unstopped {
				logg.Warn("Service failed to stop", zap.String("service", svc.Name))
			}
		}

		// Drain what the periodic flush has not reached yet.
		report := a.flusher.Scan(context.WithoutCancel(ctx))
		logg.Info("Shutdown flush finished",
			zap.Int("flushed", report.Flushed),
			zap.Int("failed", report.Failed),
		)

		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
