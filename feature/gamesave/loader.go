package gamesave

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	services *Services
	handler  *Handler
}

// NewFeature creates a new game-save feature.
func NewFeature(services *Services, logger *zap.Logger) *Feature {
	return &Feature{services: services, handler: NewHandler(services, logger)}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "gamesave"
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
