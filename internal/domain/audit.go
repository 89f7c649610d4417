package domain

import "time"

// AuditEntry records a mutating API request for later inspection.
type AuditEntry struct {
	ID         string    `json:"id"          db:"id"`
	UserEmail  string    `json:"user_email"  db:"user_email"`
	Method     string    `json:"method"      db:"method"`
	Path       string    `json:"path"        db:"path"`
	StatusCode int       `json:"status_code" db:"status_code"`
	DurationMS int64     `json:"duration_ms" db:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
}
