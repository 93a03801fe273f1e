package mail

import (
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for mails.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the mail routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/saves/:id/mails", h.HandleList)
	app.Post("/saves/:id/mails", h.HandleSend)
	app.Post("/mails/:id/read", h.HandleRead)
	app.Post("/mails/:id/claim", h.HandleClaim)
}

type sendRequest struct {
	Draft
	TTLSeconds int64 `json:"ttl_seconds"`
}

// HandleSend sends a mail to a game save.
func (h *Handler) HandleSend(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	req.Draft.TTL = time.Duration(req.TTLSeconds) * time.Second

	m, err := h.service.Send(c.UserContext(), saveID, req.Draft)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// HandleList lists the mails of a game save.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game save id"})
	}
	mails, err := h.service.List(c.UserContext(), saveID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(mails)
}

// HandleRead marks a mail as read.
func (h *Handler) HandleRead(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid mail id"})
	}
	m, err := h.service.Read(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(m)
}

// HandleClaim claims the reward of a mail.
func (h *Handler) HandleClaim(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid mail id"})
	}
	m, err := h.service.Claim(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(m)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.logger, c).Error("Mail request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
