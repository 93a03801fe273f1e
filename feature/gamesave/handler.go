package gamesave

import (
	"lsadf-backend/core/apperror"
	"lsadf-backend/core/logger"
	"lsadf-backend/core/resource"
	"lsadf-backend/feature/gamesave/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for game-save resources.
type Handler struct {
	services *Services
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(services *Services, logger *zap.Logger) *Handler {
	return &Handler{services: services, logger: logger}
}

// RegisterRoutes registers the game-save routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/saves/:id")
	registerResource(group, "/"+models.KindCharacteristics, h.services.Characteristics, h.logger)
	registerResource(group, "/"+models.KindCurrency, h.services.Currency, h.logger)
	registerResource(group, "/"+models.KindStage, h.services.Stage, h.logger)
	group.Get("/", h.HandleGetSnapshot)
}

// HandleGetSnapshot returns every resource of a game save.
func (h *Handler) HandleGetSnapshot(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	snap, err := h.services.Snapshot(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(snap)
}

// registerResource exposes GET and PUT for one resource kind.
// PUT writes cache-only unless ?cache_only=false is given.
func registerResource[T any](group fiber.Router, path string, svc *resource.Service[T], log *zap.Logger) {
	group.Get(path, func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
		}
		v, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(v)
	})

	group.Put(path, func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
		}
		var v T
		if err := c.BodyParser(&v); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		cacheOnly := c.QueryBool("cache_only", true)
		if err := svc.Save(c.UserContext(), id, v, cacheOnly); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(v)
	})
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(log, c).Error("Game save request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
