package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/port"
)

// Audit records every mutating request for later inspection. Entries are
// written asynchronously so a slow store never delays the response.
func Audit(store port.AuditStore) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data BEFORE handler execution (Fiber reuses context objects)
		method := c.Method()
		path := c.Path()

		err := c.Next()

		switch method {
		case fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch, fiber.MethodDelete:
		default:
			return err
		}

		userEmail := "anonymous"
		if uc := GetUserContext(c); uc != nil {
			userEmail = uc.Email
		}

		entry := &domain.AuditEntry{
			ID:         uuid.New().String(),
			UserEmail:  userEmail,
			Method:     method,
			Path:       path,
			StatusCode: c.Response().StatusCode(),
			DurationMS: time.Since(start).Milliseconds(),
			CreatedAt:  time.Now().UTC(),
		}

		// All values are captured; safe to write from a goroutine.
		go func() {
			if writeErr := store.CreateAuditEntry(context.Background(), entry); writeErr != nil {
				slog.Error("write audit entry", "path", entry.Path, "error", writeErr)
			}
		}()

		return err
	}
}
