package domain

import "time"

// User represents a registered user identified by email.
type User struct {
	ID        string    `json:"id"         db:"id"`
	Email     string    `json:"email"      db:"email"`
	Name      string    `json:"name"       db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserSession is a revocable login session backing a bearer token.
// A token is only accepted while its session row exists and has not expired.
type UserSession struct {
	ID        string    `json:"id"         db:"id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Token     string    `json:"-"          db:"token"` // never serialized to JSON
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is past its expiry.
func (s *UserSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// UserContext is the authenticated user context injected into request handlers.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
