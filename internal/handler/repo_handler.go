package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/middleware"
	"github.com/repodock/repodock/internal/port"
	"github.com/repodock/repodock/internal/service"
)

// RepoHandler handles repository import, browsing, sync, and restore.
type RepoHandler struct {
	imports *service.ImportService
	repos   *service.RepoService
	storage *service.StorageService
}

// NewRepoHandler creates a new repository handler.
func NewRepoHandler(imports *service.ImportService, repos *service.RepoService, storage *service.StorageService) *RepoHandler {
	return &RepoHandler{imports: imports, repos: repos, storage: storage}
}

// Register sets up repository routes on a protected group. The import
// endpoint additionally goes through the stricter import-class limiter.
func (h *RepoHandler) Register(api fiber.Router, importLimit fiber.Handler) {
	repos := api.Group("/repositories")
	repos.Post("/import", h.Import, importLimit)
	repos.Get("/", h.List)
	repos.Get("/:id", h.Get)
	repos.Put("/:id/sync", h.Sync)
	repos.Delete("/:id", h.Delete)
	repos.Get("/:id/files", h.Files)
	repos.Get("/:id/structure", h.Structure)
	repos.Get("/:id/versions", h.Versions)
	repos.Post("/:id/restore", h.Restore)
}

// Import handles POST /api/v1/repositories/import
func (h *RepoHandler) Import(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		URL string `json:"url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	// Make room for the new clone before it lands.
	if _, err := h.storage.EvictIfNeeded(c.Context()); err != nil {
		slog.Warn("pre-import eviction", "error", err)
	}

	job, err := h.imports.StartImport(c.Context(), body.URL, uc.Email)
	switch {
	case errors.Is(err, port.ErrInvalidURL):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "import could not be started"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":        job.ID,
		"repository_id": job.RepositoryID,
		"message":       "Import started. Use the job_id to check progress.",
	})
}

// List handles GET /api/v1/repositories
func (h *RepoHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(c, "per_page", service.DefaultPerPage)
	if perPage < 1 {
		perPage = service.DefaultPerPage
	}
	if perPage > service.MaxPerPage {
		perPage = service.MaxPerPage
	}

	repos, err := h.repos.List(c.Context(), uc.Email, page, perPage)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "list failed"})
	}

	return c.JSON(fiber.Map{
		"repositories": repos,
		"count":        len(repos),
		"page":         page,
		"per_page":     perPage,
	})
}

// Get handles GET /api/v1/repositories/:id
func (h *RepoHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.repos.Get(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	return c.JSON(repo)
}

// Sync handles PUT /api/v1/repositories/:id/sync
func (h *RepoHandler) Sync(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.imports.Sync(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrNotSyncable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "sync could not be started"})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message":    "Sync started.",
		"repository": repo,
	})
}

// Delete handles DELETE /api/v1/repositories/:id
func (h *RepoHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	err := h.repos.Delete(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "delete failed"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Files handles GET /api/v1/repositories/:id/files
func (h *RepoHandler) Files(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	files, err := h.repos.Files(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case errors.Is(err, port.ErrArchived):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "repository is archived, restore it first"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "file listing failed"})
	}

	return c.JSON(fiber.Map{"files": files, "count": len(files)})
}

// Structure handles GET /api/v1/repositories/:id/structure
func (h *RepoHandler) Structure(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	result, err := h.repos.Structure(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case errors.Is(err, port.ErrArchived):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "repository is archived, restore it first"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "structure analysis failed"})
	}

	return c.JSON(result)
}

// Versions handles GET /api/v1/repositories/:id/versions
func (h *RepoHandler) Versions(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit := queryInt(c, "limit", service.DefaultVersionLimit)
	versions, err := h.repos.Versions(c.Context(), c.Params("id"), uc.Email, limit)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "version listing failed"})
	}

	return c.JSON(fiber.Map{"versions": versions, "count": len(versions)})
}

// Restore handles POST /api/v1/repositories/:id/restore
func (h *RepoHandler) Restore(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	repo, err := h.repos.Get(c.Context(), c.Params("id"), uc.Email)
	switch {
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "repository not found"})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "repository belongs to another user"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}

	restored, err := h.storage.Restore(c.Context(), repo.ID)
	if err != nil {
		slog.Error("restore failed", "repository_id", repo.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "restore failed"})
	}
	if !restored {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "repository is not archived"})
	}

	if fresh, err := h.repos.Get(c.Context(), repo.ID, uc.Email); err == nil {
		repo = fresh
	}
	return c.JSON(fiber.Map{"restored": true, "repository": repo})
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
