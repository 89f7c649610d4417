package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, applies the schema, and returns a
// store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- Repositories ---

const repositoryColumns = `id, name, owner_login, source_url, description, branch, commit_hash,
	file_count, total_size_bytes, status, imported_at, last_synced_at, owner_email`

func scanRepository(row interface{ Scan(...any) error }) (*domain.Repository, error) {
	var r domain.Repository
	var lastSynced sql.NullTime
	err := row.Scan(
		&r.ID, &r.Name, &r.OwnerLogin, &r.SourceURL, &r.Description,
		&r.Branch, &r.CommitHash, &r.FileCount, &r.TotalSizeBytes,
		&r.Status, &r.ImportedAt, &lastSynced, &r.OwnerEmail,
	)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		r.LastSyncedAt = &t
	}
	return &r, nil
}

// CreateRepository inserts a new repository record.
func (s *PostgresStore) CreateRepository(ctx context.Context, r *domain.Repository) error {
	query := `INSERT INTO repositories (` + repositoryColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.OwnerLogin, r.SourceURL, r.Description,
		r.Branch, r.CommitHash, r.FileCount, r.TotalSizeBytes,
		r.Status, r.ImportedAt, nullableTime(r.LastSyncedAt), r.OwnerEmail,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create repository: %w", port.ErrConflict)
		}
		return fmt.Errorf("create repository: %w", err)
	}
	return nil
}

// GetRepository returns a repository by its ID.
func (s *PostgresStore) GetRepository(ctx context.Context, id string) (*domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE id = $1`

	r, err := scanRepository(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get repository %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return r, nil
}

// UpdateRepository persists the mutable fields of a repository.
func (s *PostgresStore) UpdateRepository(ctx context.Context, r *domain.Repository) error {
	query := `UPDATE repositories SET
	              name = $2, description = $3, branch = $4, commit_hash = $5,
	              file_count = $6, total_size_bytes = $7, status = $8, last_synced_at = $9
	          WHERE id = $1`

	res, err := s.db.ExecContext(ctx, query,
		r.ID, r.Name, r.Description, r.Branch, r.CommitHash,
		r.FileCount, r.TotalSizeBytes, r.Status, nullableTime(r.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("update repository: %w", err)
	}
	return requireRow(res, "update repository")
}

// UpdateRepositoryStatus updates only the status of a repository.
func (s *PostgresStore) UpdateRepositoryStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE repositories SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update repository status: %w", err)
	}
	return requireRow(res, "update repository status")
}

// DeleteRepository removes a repository together with its import jobs and
// version history.
func (s *PostgresStore) DeleteRepository(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete repository: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM repository_versions WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete repository versions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM import_jobs WHERE repository_id = $1`, id); err != nil {
		return fmt.Errorf("delete repository jobs: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete repository %s: %w", id, port.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete repository: commit: %w", err)
	}
	return nil
}

// ListRepositoriesByOwner returns the owner's repositories, most recent first.
func (s *PostgresStore) ListRepositoriesByOwner(ctx context.Context, ownerEmail string, limit, offset int) ([]*domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + `
	          FROM repositories WHERE owner_email = $1
	          ORDER BY imported_at DESC LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, ownerEmail, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	defer rows.Close()
	return collectRepositories(rows)
}

// ListEvictionCandidates returns archival candidates: repositories holding a
// clone (active or error) that were last synced before cutoff, or never.
// Never-synced rows come first, then oldest sync, then largest size.
func (s *PostgresStore) ListEvictionCandidates(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Repository, error) {
	query := `SELECT ` + repositoryColumns + `
	          FROM repositories
	          WHERE status IN ('active', 'error')
	            AND (last_synced_at IS NULL OR last_synced_at < $1)
	          ORDER BY last_synced_at ASC NULLS FIRST, total_size_bytes DESC
	          LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list eviction candidates: %w", err)
	}
	defer rows.Close()
	return collectRepositories(rows)
}

// StorageTotals reports the aggregate size and count of repositories whose
// local clone is on disk.
func (s *PostgresStore) StorageTotals(ctx context.Context) (int64, int, error) {
	query := `SELECT COALESCE(SUM(total_size_bytes), 0), COUNT(*)
	          FROM repositories WHERE status IN ('active', 'syncing', 'error')`

	var total int64
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("storage totals: %w", err)
	}
	return total, count, nil
}

func collectRepositories(rows *sql.Rows) ([]*domain.Repository, error) {
	repos := []*domain.Repository{}
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}
	return repos, nil
}

// --- Import jobs ---

const jobColumns = `id, repository_id, source_url, status, progress, message,
	error_message, started_at, completed_at, owner_email`

func scanJob(row interface{ Scan(...any) error }) (*domain.ImportJob, error) {
	var j domain.ImportJob
	var completed sql.NullTime
	err := row.Scan(
		&j.ID, &j.RepositoryID, &j.SourceURL, &j.Status, &j.Progress,
		&j.Message, &j.ErrorMessage, &j.StartedAt, &completed, &j.OwnerEmail,
	)
	if err != nil {
		return nil, err
	}
	if completed.Valid {
		t := completed.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

// CreateImportJob inserts a new import job record.
func (s *PostgresStore) CreateImportJob(ctx context.Context, j *domain.ImportJob) error {
	query := `INSERT INTO import_jobs (` + jobColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.db.ExecContext(ctx, query,
		j.ID, j.RepositoryID, j.SourceURL, j.Status, j.Progress,
		j.Message, j.ErrorMessage, j.StartedAt, nullableTime(j.CompletedAt), j.OwnerEmail,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

// GetImportJob returns an import job by its ID.
func (s *PostgresStore) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	query := `SELECT ` + jobColumns + ` FROM import_jobs WHERE id = $1`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get import job %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return j, nil
}

// UpdateImportJobStatus updates a job's status and message.
func (s *PostgresStore) UpdateImportJobStatus(ctx context.Context, id, status, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = $2, message = $3 WHERE id = $1`,
		id, status, message)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireRow(res, "update job status")
}

// UpdateImportJobProgress updates a job's progress and message.
func (s *PostgresStore) UpdateImportJobProgress(ctx context.Context, id string, progress int, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET progress = $2, message = $3 WHERE id = $1`,
		id, progress, message)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return requireRow(res, "update job progress")
}

// CompleteImportJob marks a job completed with full progress.
func (s *PostgresStore) CompleteImportJob(ctx context.Context, id, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = 'completed', progress = 100, message = $2, completed_at = NOW() WHERE id = $1`,
		id, message)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return requireRow(res, "complete job")
}

// FailImportJob marks a job failed and records the error message.
func (s *PostgresStore) FailImportJob(ctx context.Context, id, message, errorMessage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = 'failed', message = $2, error_message = $3, completed_at = NOW() WHERE id = $1`,
		id, message, errorMessage)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return requireRow(res, "fail job")
}

// --- Users ---

// CreateUser inserts a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, u *domain.User) error {
	query := `INSERT INTO users (id, email, name, created_at) VALUES ($1, $2, $3, $4)`

	_, err := s.db.ExecContext(ctx, query, u.ID, u.Email, u.Name, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", u.Email, port.ErrConflict)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE email = $1`

	var u domain.User
	err := s.db.QueryRowContext(ctx, query, email).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", email, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE id = $1`

	var u domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get user %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// --- Sessions ---

// CreateSession inserts a login session.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *domain.UserSession) error {
	query := `INSERT INTO user_sessions (id, user_id, token, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.UserID, sess.Token, sess.ExpiresAt, sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSessionByToken retrieves a session by its token.
func (s *PostgresStore) GetSessionByToken(ctx context.Context, token string) (*domain.UserSession, error) {
	query := `SELECT id, user_id, token, expires_at, created_at
	          FROM user_sessions WHERE token = $1`

	var sess domain.UserSession
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get session: %w", port.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

// DeleteSessionByToken removes a session and reports whether one existed.
func (s *PostgresStore) DeleteSessionByToken(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE token = $1`, token)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Versions ---

// CreateVersion inserts a repository version entry.
func (s *PostgresStore) CreateVersion(ctx context.Context, v *domain.RepositoryVersion) error {
	query := `INSERT INTO repository_versions
	              (id, repository_id, commit_hash, branch, file_count, total_size_bytes, change_summary, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.RepositoryID, v.CommitHash, v.Branch,
		v.FileCount, v.TotalSizeBytes, v.ChangeSummary, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("create version: %w", err)
	}
	return nil
}

// ListVersions returns a repository's version history, most recent first.
func (s *PostgresStore) ListVersions(ctx context.Context, repositoryID string, limit int) ([]*domain.RepositoryVersion, error) {
	query := `SELECT id, repository_id, commit_hash, branch, file_count, total_size_bytes, change_summary, created_at
	          FROM repository_versions WHERE repository_id = $1
	          ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, repositoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []*domain.RepositoryVersion{}
	for rows.Next() {
		var v domain.RepositoryVersion
		if err := rows.Scan(
			&v.ID, &v.RepositoryID, &v.CommitHash, &v.Branch,
			&v.FileCount, &v.TotalSizeBytes, &v.ChangeSummary, &v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// CleanupVersions deletes all but the newest keep entries for a repository.
func (s *PostgresStore) CleanupVersions(ctx context.Context, repositoryID string, keep int) (int64, error) {
	query := `DELETE FROM repository_versions
	          WHERE repository_id = $1 AND id NOT IN (
	              SELECT id FROM repository_versions
	              WHERE repository_id = $1
	              ORDER BY created_at DESC LIMIT $2
	          )`

	res, err := s.db.ExecContext(ctx, query, repositoryID, keep)
	if err != nil {
		return 0, fmt.Errorf("cleanup versions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- Audit ---

// CreateAuditEntry inserts an audit entry.
func (s *PostgresStore) CreateAuditEntry(ctx context.Context, e *domain.AuditEntry) error {
	query := `INSERT INTO audit_entries (id, user_email, method, path, status_code, duration_ms, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserEmail, e.Method, e.Path, e.StatusCode, e.DurationMS, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns recent audit entries, newest first.
func (s *PostgresStore) ListAuditEntries(ctx context.Context, limit int) ([]*domain.AuditEntry, error) {
	query := `SELECT id, user_email, method, path, status_code, duration_ms, created_at
	          FROM audit_entries ORDER BY created_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditEntry{}
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(
			&e.ID, &e.UserEmail, &e.Method, &e.Path,
			&e.StatusCode, &e.DurationMS, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

// --- helpers ---

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func requireRow(res sql.Result, op string) error {
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, port.ErrNotFound)
	}
	return nil
}
