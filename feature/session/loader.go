package session

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	manager *Manager
	handler *Handler
}

// NewFeature creates a new session feature.
func NewFeature(manager *Manager, logger *zap.Logger) *Feature {
	return &Feature{manager: manager, handler: NewHandler(manager, logger)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "session"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
