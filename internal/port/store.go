package port

import (
	"context"
	"time"

	"github.com/repodock/repodock/internal/domain"
)

// RepositoryStore persists Repository records.
type RepositoryStore interface {
	CreateRepository(ctx context.Context, repo *domain.Repository) error
	GetRepository(ctx context.Context, id string) (*domain.Repository, error)
	UpdateRepository(ctx context.Context, repo *domain.Repository) error
	UpdateRepositoryStatus(ctx context.Context, id, status string) error

	// DeleteRepository removes the record and cascades its import jobs and
	// version history.
	DeleteRepository(ctx context.Context, id string) error

	// ListRepositoriesByOwner returns the owner's repositories, most recent
	// first.
	ListRepositoriesByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]*domain.Repository, error)

	// ListEvictionCandidates returns repositories eligible for archival:
	// status active or error, last_synced_at older than cutoff or never
	// synced. Ordered never-synced first, then oldest sync, then largest.
	ListEvictionCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Repository, error)

	// StorageTotals reports the aggregate size and count of repositories
	// that hold a local clone (status active, syncing, or error).
	StorageTotals(ctx context.Context) (totalBytes int64, count int, err error)
}

// ImportJobStore persists ImportJob records.
type ImportJobStore interface {
	CreateImportJob(ctx context.Context, job *domain.ImportJob) error
	GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error)
	UpdateImportJobStatus(ctx context.Context, id, status, message string) error
	UpdateImportJobProgress(ctx context.Context, id string, progress int, message string) error

	// CompleteImportJob marks the job completed with progress 100 and sets
	// completed_at.
	CompleteImportJob(ctx context.Context, id, message string) error

	// FailImportJob marks the job failed with the given messages and sets
	// completed_at.
	FailImportJob(ctx context.Context, id, message, errorMessage string) error
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.UserSession) error
	GetSessionByToken(ctx context.Context, token string) (*domain.UserSession, error)

	// DeleteSessionByToken removes the session and reports whether one
	// existed.
	DeleteSessionByToken(ctx context.Context, token string) (bool, error)

	// DeleteExpiredSessions removes sessions past their expiry and returns
	// how many were removed.
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// VersionStore persists repository version history.
type VersionStore interface {
	CreateVersion(ctx context.Context, version *domain.RepositoryVersion) error

	// ListVersions returns a repository's history, most recent first.
	ListVersions(ctx context.Context, repositoryID string, limit int) ([]*domain.RepositoryVersion, error)

	// CleanupVersions deletes all but the newest keep entries and returns
	// how many were removed.
	CleanupVersions(ctx context.Context, repositoryID string, keep int) (int64, error)
}

// AuditStore persists audit entries.
type AuditStore interface {
	CreateAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	ListAuditEntries(ctx context.Context, limit int) ([]*domain.AuditEntry, error)
}

// Store is the full persistence capability, implemented by the PostgreSQL
// adapter. Services depend on the narrow interfaces above, not on this.
type Store interface {
	RepositoryStore
	ImportJobStore
	UserStore
	SessionStore
	VersionStore
	AuditStore
}
