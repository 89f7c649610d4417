package domain

import "time"

// ImportJob tracks one repository import from request to terminal state.
type ImportJob struct {
	ID           string     `json:"id"            db:"id"`
	RepositoryID string     `json:"repository_id" db:"repository_id"`
	SourceURL    string     `json:"url"           db:"source_url"`
	Status       string     `json:"status"        db:"status"` // pending, cloning, processing, completed, failed
	Progress     int        `json:"progress"      db:"progress"`
	Message      string     `json:"message"       db:"message"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at"    db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	OwnerEmail   string     `json:"owner_email"   db:"owner_email"`
}

// ImportJob status constants.
const (
	JobStatusPending    = "pending"
	JobStatusCloning    = "cloning"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IsTerminal reports whether the job has finished, successfully or not.
// Terminal jobs are never mutated again.
func (j *ImportJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
