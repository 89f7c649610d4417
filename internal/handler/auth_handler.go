package handler

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/repodock/repodock/internal/middleware"
	"github.com/repodock/repodock/internal/port"
	"github.com/repodock/repodock/internal/service"
)

// AuthHandler exposes registration, login, and session management.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterPublic sets up the routes that hand out credentials.
func (h *AuthHandler) RegisterPublic(api fiber.Router) {
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
}

// RegisterProtected sets up the routes that require a valid token.
func (h *AuthHandler) RegisterProtected(api fiber.Router) {
	auth := api.Group("/auth")
	auth.Post("/logout", h.Logout)
	auth.Get("/me", h.Me)
	auth.Post("/sessions/cleanup", h.CleanupSessions)
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	user, err := h.auth.Register(c.Context(), body.Email, body.Name)
	switch {
	case errors.Is(err, port.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email address"})
	case errors.Is(err, port.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already registered"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "registration failed"})
	}

	return c.Status(fiber.StatusCreated).JSON(user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	res, err := h.auth.Login(c.Context(), body.Email)
	switch {
	case errors.Is(err, port.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email address"})
	case errors.Is(err, port.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found, register first"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "login failed"})
	}

	return c.JSON(res)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	token := middleware.GetToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.auth.Logout(c.Context(), token); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "logout failed"})
	}
	return c.JSON(fiber.Map{"message": "logged out"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := h.auth.Me(c.Context(), uc.UserID)
	if errors.Is(err, port.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "user not found"})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return c.JSON(user)
}

// CleanupSessions handles POST /api/v1/auth/sessions/cleanup
func (h *AuthHandler) CleanupSessions(c fiber.Ctx) error {
	removed, err := h.auth.CleanupSessions(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "cleanup failed"})
	}
	return c.JSON(fiber.Map{"removed": removed})
}
