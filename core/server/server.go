package server

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// NewApp creates the Fiber application with the shared settings.
func NewApp(cfg Config) *fiber.App {
	return fiber.New(fiber.Config{
		DisableStartupMessage: true, // We log our own startup message
		ReadTimeout:           cfg.ReadTimeout,
		BodyLimit:             cfg.BodyLimit,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
}

// Service runs a Fiber application as a supervised service.
type Service struct {
	app    *fiber.App
	cfg    Config
	logger *zap.Logger
}

// NewService wraps app for supervision.
func NewService(app *fiber.App, cfg Config, logger *zap.Logger) *Service {
	return &Service{app: app, cfg: cfg, logger: logger}
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Service) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.String("address", s.cfg.Address()))
		errCh <- s.app.Listen(s.cfg.Address())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		if err := s.app.ShutdownWithTimeout(s.cfg.ShutdownTimeout); err != nil {
			s.logger.Warn("Server shutdown incomplete", zap.Error(err))
		}
		select {
		case <-errCh:
		case <-time.After(s.cfg.ShutdownTimeout):
		}
		return ctx.Err()
	}
}

func (s *Service) String() string {
	return "http"
}
