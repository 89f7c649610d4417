package domain

import "time"

// RepositoryVersion is an append-only history entry recorded whenever a
// repository's contents change (import, sync, restore).
type RepositoryVersion struct {
	ID             string    `json:"id"               db:"id"`
	RepositoryID   string    `json:"repository_id"    db:"repository_id"`
	CommitHash     string    `json:"commit_hash"      db:"commit_hash"`
	Branch         string    `json:"branch"           db:"branch"`
	FileCount      int       `json:"file_count"       db:"file_count"`
	TotalSizeBytes int64     `json:"total_size_bytes" db:"total_size_bytes"`
	ChangeSummary  string    `json:"change_summary"   db:"change_summary"`
	CreatedAt      time.Time `json:"created_at"       db:"created_at"`
}

// Change summary constants.
const (
	ChangeInitialImport = "Initial import"
	ChangeSynced        = "Synced with origin"
	ChangeRestored      = "Repository restored from archive"
)
