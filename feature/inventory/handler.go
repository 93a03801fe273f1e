package inventory

import (
	"lsadf-backend/core/apperror"
	"lsadf-backend/core/logger"
	"lsadf-backend/feature/gamesave/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for inventories.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the inventory routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/saves/:id/inventory")
	group.Get("/", h.HandleGet)
	group.Put("/:item", h.HandlePutItem)
	group.Delete("/:item", h.HandleDeleteItem)
}

// HandleGet returns the inventory of a game save.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	inv, err := h.service.Get(c.UserContext(), saveID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(inv)
}

// HandlePutItem adds or replaces an item.
func (h *Handler) HandlePutItem(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	var item models.Item
	if err := c.BodyParser(&item); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	item.ClientID = c.Params("item")

	inv, err := h.service.PutItem(c.UserContext(), saveID, item)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(inv)
}

// HandleDeleteItem deletes an item.
func (h *Handler) HandleDeleteItem(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	if err := h.service.DeleteItem(c.UserContext(), saveID, c.Params("item")); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.logger, c).Error("Inventory request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
