package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/port"
)

// AuthConfig holds token signing parameters.
type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// AuthService handles registration, login, and token validation. A token is
// valid only while both the JWT verifies and its session row exists, so
// logout revokes access before the JWT expires.
type AuthService struct {
	users    port.UserStore
	sessions port.SessionStore
	cfg      AuthConfig
}

// NewAuthService creates a new authentication service.
func NewAuthService(users port.UserStore, sessions port.SessionStore, cfg AuthConfig) *AuthService {
	return &AuthService{users: users, sessions: sessions, cfg: cfg}
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Register creates a new user account.
func (s *AuthService) Register(ctx context.Context, email, name string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	slog.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// LoginResult carries the credentials issued by a successful login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Login issues a signed token and a session row for an existing user.
func (s *AuthService) Login(ctx context.Context, email string) (*LoginResult, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	now := time.Now().UTC()
	sessionID := uuid.New().String()
	token, err := s.issueToken(user, sessionID, now)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	session := &domain.UserSession{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.cfg.TokenTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	slog.Info("user authenticated", "user_id", user.ID)
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Validate verifies a token and returns the caller's identity. The JWT must
// verify and the matching session must still exist and be unexpired.
func (s *AuthService) Validate(ctx context.Context, token string) (*domain.UserContext, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.GetSessionByToken(ctx, token)
	if errors.Is(err, port.ErrNotFound) {
		return nil, fmt.Errorf("session revoked: %w", port.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("validate token: %w", err)
	}
	if session.Expired(time.Now()) {
		return nil, fmt.Errorf("session expired: %w", port.ErrUnauthorized)
	}

	return &domain.UserContext{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}

// Logout revokes the session behind a token. Revoking an unknown token is
// not an error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if _, err := s.sessions.DeleteSessionByToken(ctx, token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Me returns the account behind a user ID.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// CleanupSessions removes expired sessions and returns how many were
// deleted.
func (s *AuthService) CleanupSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpiredSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup sessions: %w", err)
	}
	if n > 0 {
		slog.Info("expired sessions removed", "count", n)
	}
	return n, nil
}

// issueToken signs a JWT carrying the session ID as jti, so every login
// produces a distinct token even within the same second.
func (s *AuthService) issueToken(user *domain.User, sessionID string, now time.Time) (string, error) {
	claims := tokenClaims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

func (s *AuthService) parseToken(tokenStr string) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithIssuer(s.cfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", port.ErrUnauthorized)
	}
	return claims, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("invalid email address: %w", port.ErrInvalidInput)
	}
	return email, nil
}
