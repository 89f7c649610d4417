package domain

import "time"

// Repository represents an imported Git repository.
type Repository struct {
	ID             string     `json:"id"               db:"id"`
	Name           string     `json:"name"             db:"name"`
	OwnerLogin     string     `json:"owner"            db:"owner_login"`
	SourceURL      string     `json:"url"              db:"source_url"`
	Description    string     `json:"description,omitempty" db:"description"`
	Branch         string     `json:"branch"           db:"branch"`
	CommitHash     string     `json:"commit_hash"      db:"commit_hash"`
	FileCount      int        `json:"file_count"       db:"file_count"`
	TotalSizeBytes int64      `json:"total_size_bytes" db:"total_size_bytes"`
	Status         string     `json:"status"           db:"status"` // active, syncing, error, archived
	ImportedAt     time.Time  `json:"imported_at"      db:"imported_at"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty" db:"last_synced_at"`
	OwnerEmail     string     `json:"owner_email"      db:"owner_email"`
}

// Repository status constants.
const (
	RepoStatusActive   = "active"
	RepoStatusSyncing  = "syncing"
	RepoStatusError    = "error"
	RepoStatusArchived = "archived"
)

// HasLocalClone reports whether the repository's files are expected on disk.
// Archived repositories keep their record but not their clone.
func (r *Repository) HasLocalClone() bool {
	return r.Status != RepoStatusArchived
}
