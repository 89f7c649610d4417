package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/middleware"
	"github.com/repodock/repodock/internal/port"
	"github.com/repodock/repodock/internal/service"
)

// streamMaxAge caps how long a single SSE connection stays open.
const streamMaxAge = 5 * time.Minute

// JobsHandler exposes import job status, by polling or by SSE stream.
type JobsHandler struct {
	imports *service.ImportService
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(imports *service.ImportService) *JobsHandler {
	return &JobsHandler{imports: imports}
}

// Register sets up job routes on a protected group.
func (h *JobsHandler) Register(api fiber.Router) {
	jobs := api.Group("/repositories/import/:jobID")
	jobs.Get("/status", h.Status)
	jobs.Get("/stream", h.StreamSSE)
}

// Status handles GET /api/v1/repositories/import/:jobID/status
func (h *JobsHandler) Status(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	status, err := h.imports.JobStatus(c.Context(), c.Params("jobID"), uc.Email)
	if errors.Is(err, port.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status lookup failed"})
	}

	return c.JSON(status)
}

// StreamSSE handles GET /api/v1/repositories/import/:jobID/stream
//
// Streams progress snapshots as Server-Sent Events until the job reaches a
// terminal state. Progress updates arrive as "progress" events; the final
// event is named after the terminal status ("completed" or "failed").
func (h *JobsHandler) StreamSSE(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	jobID := c.Params("jobID")

	status, err := h.imports.JobStatus(c.Context(), jobID, uc.Email)
	if errors.Is(err, port.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "status lookup failed"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	// Already finished: replay the final state in one event and close.
	if isTerminal(status.Status) {
		data, _ := json.Marshal(snapshotOf(status))
		return c.SendString(fmt.Sprintf("event: %s\ndata: %s\n\n", status.Status, data))
	}

	tracker := h.imports.Tracker()
	ch := tracker.Subscribe(jobID)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer tracker.Unsubscribe(jobID, ch)

		// Current snapshot first so the client never starts blind.
		data, _ := json.Marshal(snapshotOf(status))
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		w.Flush()

		// The job may have finished between the status read and the
		// subscription. The tracker drops finished jobs, so re-check.
		if _, live := tracker.GetJob(jobID); !live {
			final, err := h.imports.JobStatus(context.Background(), jobID, uc.Email)
			if err == nil && isTerminal(final.Status) {
				data, _ := json.Marshal(snapshotOf(final))
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", final.Status, data)
				w.Flush()
			}
			return
		}

		timeout := time.After(streamMaxAge)
		for {
			select {
			case update, ok := <-ch:
				if !ok {
					return
				}
				data, _ := json.Marshal(update)
				eventType := "progress"
				if isTerminal(update.Status) {
					eventType = update.Status
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
				w.Flush()
				if isTerminal(update.Status) {
					return
				}
			case <-timeout:
				slog.Warn("SSE stream timeout", "job_id", jobID)
				return
			}
		}
	})
}

func isTerminal(status string) bool {
	return status == domain.JobStatusCompleted || status == domain.JobStatusFailed
}

// snapshotOf shapes a stored job status like a live tracker update, so every
// event on the stream carries the same fields.
func snapshotOf(status *service.ImportStatus) service.JobProgress {
	return service.JobProgress{
		JobID:     status.ID,
		Status:    status.Status,
		Progress:  status.Progress,
		Message:   status.Message,
		UpdatedAt: time.Now().UTC(),
	}
}
