package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/metrics"
)

// Metrics observes request durations labeled by method, route template, and
// status code.
func Metrics(m *metrics.Metrics) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		m.ObserveRequest(c.Method(), c.Route().Path, c.Response().StatusCode(), time.Since(start).Seconds())
		return err
	}
}
