package flush

import (
	"github.com/gofiber/fiber/v2"
)

// CacheToggle switches a group of caches on or off.
type CacheToggle interface {
	SetCacheEnabled(enabled bool)
	CacheEnabled() bool
}

// Handler exposes the administrative cache endpoints.
type Handler struct {
	scheduler *Scheduler
	toggles   []CacheToggle
}

// NewHandler creates a new HTTP handler.
func NewHandler(s *Scheduler, toggles ...CacheToggle) *Handler {
	return &Handler{scheduler: s, toggles: toggles}
}

// RegisterRoutes registers the admin routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/admin")
	group.Post("/flush", h.HandleFlush)
	group.Get("/cache", h.HandleCacheStatus)
	group.Post("/cache/enable", h.HandleCacheToggle(true))
	group.Post("/cache/disable", h.HandleCacheToggle(false))
}

// HandleFlush runs one flush scan synchronously.
func (h *Handler) HandleFlush(c *fiber.Ctx) error {
	report := h.scheduler.Scan(c.UserContext())
	status := fiber.StatusOK
	if report.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(report)
}

// HandleCacheStatus reports whether the caches are enabled.
func (h *Handler) HandleCacheStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"enabled": h.enabled()})
}

// HandleCacheToggle enables or disables every cache. Disabling stops new cache-only writes
// first and then drains the entries that are still dirty, so none is stranded.
func (h *Handler) HandleCacheToggle(enabled bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, t := range h.toggles {
			t.SetCacheEnabled(enabled)
		}
		var report *Report
		if !enabled {
			r := h.scheduler.Scan(c.UserContext())
			report = &r
		}
		return c.JSON(fiber.Map{"enabled": h.enabled(), "flush": report})
	}
}

func (h *Handler) enabled() bool {
	for _, t := range h.toggles {
		if !t.CacheEnabled() {
			return false
		}
	}
	return len(h.toggles) > 0
}
