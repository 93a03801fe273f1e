package session

import (
	"time"

	"lsadf-backend/core/apperror"
	"lsadf-backend/core/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for game sessions.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes registers the session routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sessions")
	group.Post("/", h.HandleCreate)
	group.Get("/", h.HandleGetActive)
	group.Get("/:id", h.HandleGet)
	group.Put("/:id/heartbeat", h.HandleHeartbeat)
	group.Delete("/:id", h.HandleCancel)
}

type createRequest struct {
	GameSaveID      uuid.UUID `json:"game_save_id"`
	UserEmail       string    `json:"user_email"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int64     `json:"duration_seconds"`
}

type heartbeatRequest struct {
	Version         int64     `json:"version"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int64     `json:"duration_seconds"`
}

// endTime resolves an absolute end time or a duration relative to now.
func (h *Handler) endTime(abs time.Time, seconds int64) time.Time {
	if !abs.IsZero() {
		return abs
	}
	return h.manager.Now().Add(time.Duration(seconds) * time.Second)
}

// HandleCreate starts a session.
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.GameSaveID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "game_save_id is required"})
	}

	session, err := h.manager.CreateSession(c.UserContext(), req.GameSaveID, req.UserEmail, h.endTime(req.EndTime, req.DurationSeconds))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// HandleHeartbeat extends a session.
func (h *Handler) HandleHeartbeat(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
	}
	var req heartbeatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	session, err := h.manager.ExtendSession(c.UserContext(), id, req.Version, h.endTime(req.EndTime, req.DurationSeconds))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(session)
}

// HandleCancel cancels a session.
func (h *Handler) HandleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
	}
	session, err := h.manager.CancelSession(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(session)
}

// HandleGet returns a session.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid session id"})
	}
	session, err := h.manager.GetSession(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"session": session,
		"expired": session.IsExpired(h.manager.Now()),
	})
}

// HandleGetActive returns the active session of ?game_save_id=.
func (h *Handler) HandleGetActive(c *fiber.Ctx) error {
	saveID, err := uuid.Parse(c.Query("game_save_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid game_save_id"})
	}
	session, err := h.manager.ActiveSession(c.UserContext(), saveID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(session)
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := apperror.HTTPStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithRayID(h.logger, c).Error("Session request failed", zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
