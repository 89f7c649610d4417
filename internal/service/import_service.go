package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/giturl"
	"github.com/repodock/repodock/internal/metrics"
	"github.com/repodock/repodock/internal/port"
)

// ImportStore is the persistence surface the import pipeline needs.
type ImportStore interface {
	port.RepositoryStore
	port.ImportJobStore
	port.VersionStore
}

// ImportConfig tunes the import pipeline.
type ImportConfig struct {
	StorageRoot string
	CloneDepth  int
	// CloneTimeout bounds one clone or sync run; zero means no limit.
	CloneTimeout time.Duration
	VersionKeep  int
}

// ImportService orchestrates repository imports and syncs: clone, analyze,
// persist, and record a version, reporting progress along the way. Each job
// runs as an independent goroutine; the triggering request returns as soon
// as the pending job row exists.
type ImportService struct {
	store     ImportStore
	transport port.GitTransport
	analyzer  port.Analyzer
	tracker   *ProgressTracker
	metrics   *metrics.Metrics
	cfg       ImportConfig
}

// NewImportService creates a new import service.
func NewImportService(store ImportStore, transport port.GitTransport, analyzer port.Analyzer, tracker *ProgressTracker, m *metrics.Metrics, cfg ImportConfig) *ImportService {
	return &ImportService{
		store:     store,
		transport: transport,
		analyzer:  analyzer,
		tracker:   tracker,
		metrics:   m,
		cfg:       cfg,
	}
}

// ClonePath returns the on-disk location of a repository's clone.
func (s *ImportService) ClonePath(repositoryID string) string {
	return filepath.Join(s.cfg.StorageRoot, repositoryID)
}

// Tracker exposes the live progress tracker for status and stream handlers.
func (s *ImportService) Tracker() *ProgressTracker {
	return s.tracker
}

// StartImport validates the URL, persists a pending job, and launches the
// import in the background. The returned job carries the IDs the caller
// needs to poll for progress.
func (s *ImportService) StartImport(ctx context.Context, sourceURL, ownerEmail string) (*domain.ImportJob, error) {
	info, err := giturl.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	job := &domain.ImportJob{
		ID:           uuid.New().String(),
		RepositoryID: uuid.New().String(),
		SourceURL:    info.CloneURL(),
		Status:       domain.JobStatusPending,
		Progress:     0,
		Message:      "Import request received",
		StartedAt:    time.Now().UTC(),
		OwnerEmail:   ownerEmail,
	}
	if err := s.store.CreateImportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	s.tracker.StartJob(job.ID, job.Status, job.Message)

	go s.runImport(*job, info)

	slog.Info("import queued", "job_id", job.ID, "repository_id", job.RepositoryID, "url", job.SourceURL)
	return job, nil
}

func (s *ImportService) runImport(job domain.ImportJob, info giturl.Info) {
	ctx, cancel := s.opContext()
	defer cancel()

	dest := s.ClonePath(job.RepositoryID)

	s.setJobStatus(ctx, job.ID, domain.JobStatusCloning, "Starting clone operation...")
	cloneInfo, err := s.transport.Clone(ctx, job.SourceURL, dest, s.cfg.CloneDepth, s.jobSink(ctx, job.ID, domain.JobStatusCloning))
	if err != nil {
		s.failImport(ctx, job, dest, err)
		return
	}

	s.setJobStatus(ctx, job.ID, domain.JobStatusProcessing, "Processing repository data...")
	sink := s.jobSink(ctx, job.ID, domain.JobStatusProcessing)
	sink.Report(70, "Analyzing repository structure...")

	analysis, err := s.analyzer.Analyze(dest)
	if err != nil {
		s.failImport(ctx, job, dest, err)
		return
	}

	sink.Report(90, "Finalizing import...")

	repo := &domain.Repository{
		ID:             job.RepositoryID,
		Name:           info.Repo,
		OwnerLogin:     info.Owner,
		SourceURL:      job.SourceURL,
		Description:    analysis.Description,
		Branch:         cloneInfo.Branch,
		CommitHash:     cloneInfo.CommitHash,
		FileCount:      analysis.FileCount,
		TotalSizeBytes: analysis.TotalSizeBytes,
		Status:         domain.RepoStatusActive,
		ImportedAt:     time.Now().UTC(),
		OwnerEmail:     job.OwnerEmail,
	}
	if err := s.store.CreateRepository(ctx, repo); err != nil {
		s.failImport(ctx, job, dest, err)
		return
	}
	recordVersion(ctx, s.store, repo, domain.ChangeInitialImport, s.cfg.VersionKeep)

	if err := s.store.CompleteImportJob(ctx, job.ID, "Repository imported successfully!"); err != nil {
		slog.Error("complete import job", "job_id", job.ID, "error", err)
	}
	s.tracker.UpdateJob(job.ID, domain.JobStatusCompleted, 100, "Repository imported successfully!")
	s.metrics.RecordImport(domain.JobStatusCompleted)
	slog.Info("repository imported", "job_id", job.ID, "repository_id", repo.ID, "files", repo.FileCount, "bytes", repo.TotalSizeBytes)
}

// failImport cleans up the partial clone and records the failure. Transport
// failures keep their descriptive message; anything else is persisted with a
// generic message so internal paths never reach the API, and the cause goes
// to the log instead.
func (s *ImportService) failImport(ctx context.Context, job domain.ImportJob, dest string, cause error) {
	if err := os.RemoveAll(dest); err != nil {
		slog.Error("cleanup clone dir", "job_id", job.ID, "error", err)
	}

	message := "Unexpected error during import"
	errorMessage := "internal error"
	if errors.Is(cause, port.ErrTransport) {
		message = "Import failed"
		errorMessage = cause.Error()
	}
	if err := s.store.FailImportJob(ctx, job.ID, message, errorMessage); err != nil {
		slog.Error("fail import job", "job_id", job.ID, "error", err)
	}
	s.tracker.UpdateJob(job.ID, domain.JobStatusFailed, 0, message)
	s.metrics.RecordImport(domain.JobStatusFailed)
	slog.Error("import failed", "job_id", job.ID, "url", job.SourceURL, "error", cause)
}

// ImportStatus is the composed job view served to status clients: the
// durable row overlaid with any fresher tracker snapshot, plus the resulting
// repository once the job completed.
type ImportStatus struct {
	ID           string             `json:"id"`
	RepositoryID string             `json:"repository_id"`
	SourceURL    string             `json:"url"`
	Status       string             `json:"status"`
	Progress     int                `json:"progress"`
	Message      string             `json:"message"`
	ErrorMessage string             `json:"error_message,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	Repository   *domain.Repository `json:"repository,omitempty"`
}

// JobStatus returns the current view of an import job. Jobs belonging to
// other owners look absent.
func (s *ImportService) JobStatus(ctx context.Context, jobID, ownerEmail string) (*ImportStatus, error) {
	job, err := s.store.GetImportJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerEmail != ownerEmail {
		return nil, fmt.Errorf("import job: %w", port.ErrNotFound)
	}

	status := &ImportStatus{
		ID:           job.ID,
		RepositoryID: job.RepositoryID,
		SourceURL:    job.SourceURL,
		Status:       job.Status,
		Progress:     job.Progress,
		Message:      job.Message,
		ErrorMessage: job.ErrorMessage,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
	if snap, ok := s.tracker.GetJob(job.ID); ok {
		status.Status = snap.Status
		status.Progress = snap.Progress
		status.Message = snap.Message
	}
	if status.Status == domain.JobStatusCompleted {
		if repo, err := s.store.GetRepository(ctx, job.RepositoryID); err == nil {
			status.Repository = repo
		}
	}
	return status, nil
}

// Sync pulls the latest changes for a repository and refreshes its figures
// in the background. Only active or error repositories can be synced.
func (s *ImportService) Sync(ctx context.Context, repositoryID, ownerEmail string) (*domain.Repository, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if repo.OwnerEmail != ownerEmail {
		return nil, fmt.Errorf("sync repository: %w", port.ErrNotFound)
	}
	if repo.Status != domain.RepoStatusActive && repo.Status != domain.RepoStatusError {
		return nil, fmt.Errorf("repository is %s: %w", repo.Status, port.ErrNotSyncable)
	}

	if err := s.store.UpdateRepositoryStatus(ctx, repo.ID, domain.RepoStatusSyncing); err != nil {
		return nil, fmt.Errorf("mark syncing: %w", err)
	}
	repo.Status = domain.RepoStatusSyncing

	go s.runSync(*repo)

	slog.Info("sync started", "repository_id", repo.ID)
	return repo, nil
}

func (s *ImportService) runSync(repo domain.Repository) {
	ctx, cancel := s.opContext()
	defer cancel()

	dest := s.ClonePath(repo.ID)
	sink := port.SinkFunc(func(percent int, message string) {
		slog.Info("sync progress", "repository_id", repo.ID, "percent", percent, "message", message)
	})

	info, err := s.transport.Pull(ctx, dest, sink)
	if err != nil {
		s.failSync(ctx, repo.ID, err)
		return
	}

	sink.Report(80, "Analyzing updated repository...")
	analysis, err := s.analyzer.Analyze(dest)
	if err != nil {
		s.failSync(ctx, repo.ID, err)
		return
	}

	now := time.Now().UTC()
	repo.Branch = info.Branch
	repo.CommitHash = info.CommitHash
	repo.Description = analysis.Description
	repo.FileCount = analysis.FileCount
	repo.TotalSizeBytes = analysis.TotalSizeBytes
	repo.Status = domain.RepoStatusActive
	repo.LastSyncedAt = &now

	if err := s.store.UpdateRepository(ctx, &repo); err != nil {
		s.failSync(ctx, repo.ID, err)
		return
	}
	recordVersion(ctx, s.store, &repo, domain.ChangeSynced, s.cfg.VersionKeep)
	s.metrics.RecordSync(domain.JobStatusCompleted)
	slog.Info("repository synced", "repository_id", repo.ID, "commit", repo.CommitHash)
}

func (s *ImportService) failSync(ctx context.Context, repositoryID string, cause error) {
	if err := s.store.UpdateRepositoryStatus(ctx, repositoryID, domain.RepoStatusError); err != nil {
		slog.Error("mark repository error", "repository_id", repositoryID, "error", err)
	}
	s.metrics.RecordSync(domain.JobStatusFailed)
	slog.Error("sync failed", "repository_id", repositoryID, "error", cause)
}

// setJobStatus persists a stage transition and mirrors it to the tracker.
func (s *ImportService) setJobStatus(ctx context.Context, jobID, status, message string) {
	if err := s.store.UpdateImportJobStatus(ctx, jobID, status, message); err != nil {
		slog.Error("update job status", "job_id", jobID, "error", err)
	}
	s.tracker.UpdateJob(jobID, status, 0, message)
}

// jobSink mirrors transport and analysis progress into the tracker and the
// durable job row.
func (s *ImportService) jobSink(ctx context.Context, jobID, status string) port.ProgressSink {
	return port.SinkFunc(func(percent int, message string) {
		s.tracker.UpdateJob(jobID, status, percent, message)
		if err := s.store.UpdateImportJobProgress(ctx, jobID, percent, message); err != nil {
			slog.Error("persist job progress", "job_id", jobID, "error", err)
		}
	})
}

// recordVersion appends a history entry for the repository's current figures
// and prunes entries beyond keep. Version bookkeeping never fails the
// operation that triggered it.
func recordVersion(ctx context.Context, store port.VersionStore, repo *domain.Repository, summary string, keep int) {
	v := &domain.RepositoryVersion{
		ID:             uuid.New().String(),
		RepositoryID:   repo.ID,
		CommitHash:     repo.CommitHash,
		Branch:         repo.Branch,
		FileCount:      repo.FileCount,
		TotalSizeBytes: repo.TotalSizeBytes,
		ChangeSummary:  summary,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateVersion(ctx, v); err != nil {
		slog.Error("record version", "repository_id", repo.ID, "error", err)
		return
	}
	if keep > 0 {
		if _, err := store.CleanupVersions(ctx, repo.ID, keep); err != nil {
			slog.Error("cleanup versions", "repository_id", repo.ID, "error", err)
		}
	}
}

func (s *ImportService) opContext() (context.Context, context.CancelFunc) {
	if s.cfg.CloneTimeout > 0 {
		return context.WithTimeout(context.Background(), s.cfg.CloneTimeout)
	}
	return context.WithCancel(context.Background())
}
