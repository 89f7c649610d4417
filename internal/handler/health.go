package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service health. A database failure makes the service
// unhealthy; a cache failure only degrades it because the rate limiter fails
// open without its window store.
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Register sets up the public health route.
func (h *HealthHandler) Register(app *fiber.App) {
	app.Get("/health", h.Health)
}

// Health handles GET /health
func (h *HealthHandler) Health(c fiber.Ctx) error {
	status := "healthy"
	code := fiber.StatusOK
	checks := fiber.Map{"database": "ok", "cache": "ok"}

	if err := h.db.Ping(c.Context()); err != nil {
		checks["database"] = "unreachable"
		status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}
	if err := h.cache.Ping(c.Context()); err != nil {
		checks["cache"] = "unreachable"
		if status == "healthy" {
			status = "degraded"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}
