package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/port"
)

// AuditHandler exposes the request audit trail.
type AuditHandler struct {
	store port.AuditStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store port.AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes on a protected group.
func (h *AuditHandler) Register(api fiber.Router) {
	api.Get("/audit", h.List)
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(c fiber.Ctx) error {
	limit := queryInt(c, "limit", 100)
	if limit < 1 {
		limit = 100
	}

	entries, err := h.store.ListAuditEntries(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "audit lookup failed"})
	}

	return c.JSON(fiber.Map{
		"entries": entries,
		"count":   len(entries),
	})
}
