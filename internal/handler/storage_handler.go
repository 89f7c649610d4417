package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/service"
)

// StorageHandler exposes clone storage usage and cleanup.
type StorageHandler struct {
	storage *service.StorageService
}

// NewStorageHandler creates a new storage handler.
func NewStorageHandler(storage *service.StorageService) *StorageHandler {
	return &StorageHandler{storage: storage}
}

// Register sets up storage routes on a protected group.
func (h *StorageHandler) Register(api fiber.Router) {
	st := api.Group("/storage")
	st.Get("/usage", h.Usage)
	st.Post("/cleanup", h.Cleanup)
}

// Usage handles GET /api/v1/storage/usage
//
// With ?verify=true the recorded totals are cross-checked against a walk of
// the clones on disk.
func (h *StorageHandler) Usage(c fiber.Ctx) error {
	if c.Query("verify") == "true" {
		verification, err := h.storage.VerifyUsage(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage verification failed"})
		}
		return c.JSON(verification)
	}

	report, err := h.storage.Usage(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "usage lookup failed"})
	}
	return c.JSON(report)
}

// Cleanup handles POST /api/v1/storage/cleanup
func (h *StorageHandler) Cleanup(c fiber.Ctx) error {
	evicted, err := h.storage.EvictIfNeeded(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cleanup failed"})
	}
	return c.JSON(fiber.Map{"evicted": evicted})
}
