package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/metrics"
	"github.com/repodock/repodock/internal/port"
)

// StorageStore is the persistence surface capacity management needs.
type StorageStore interface {
	port.RepositoryStore
	port.VersionStore
}

// StorageConfig tunes the capacity budget and the eviction policy.
type StorageConfig struct {
	StorageRoot string
	// LimitBytes is the disk budget for all clones; zero disables eviction.
	LimitBytes int64
	// EvictThreshold is the usage fraction at which eviction starts.
	EvictThreshold float64
	// EvictBatch caps how many repositories one pass may archive.
	EvictBatch int
	// StaleAfter is how long a repository may go unsynced before it becomes
	// an eviction candidate.
	StaleAfter   time.Duration
	CloneDepth   int
	CloneTimeout time.Duration
	VersionKeep  int
}

// UsageReport describes aggregate clone storage against the configured limit.
type UsageReport struct {
	TotalBytes      int64   `json:"total_bytes"`
	RepositoryCount int     `json:"repository_count"`
	LimitBytes      int64   `json:"limit_bytes"`
	UsageFraction   float64 `json:"usage_fraction"`
}

// UsageVerification pairs the recorded aggregate with a fresh filesystem
// walk so drift between the two can be inspected.
type UsageVerification struct {
	Recorded     UsageReport `json:"recorded"`
	WalkedBytes  int64       `json:"walked_bytes"`
	WalkedClones int         `json:"walked_clones"`
	DriftBytes   int64       `json:"drift_bytes"`
}

// StorageService enforces the disk budget for local clones. When usage
// crosses the threshold it archives the least-recently-synced repositories:
// the clone directory is removed, the database record and version history
// stay. Archived repositories can be restored by re-cloning.
type StorageService struct {
	store     StorageStore
	transport port.GitTransport
	analyzer  port.Analyzer
	metrics   *metrics.Metrics
	cfg       StorageConfig

	// mu serializes eviction passes; the ticker, the cleanup endpoint, and
	// import admission may all trigger one concurrently.
	mu sync.Mutex
}

// NewStorageService creates a new storage service.
func NewStorageService(store StorageStore, transport port.GitTransport, analyzer port.Analyzer, m *metrics.Metrics, cfg StorageConfig) *StorageService {
	return &StorageService{
		store:     store,
		transport: transport,
		analyzer:  analyzer,
		metrics:   m,
		cfg:       cfg,
	}
}

// ClonePath returns the on-disk location of a repository's clone.
func (s *StorageService) ClonePath(repositoryID string) string {
	return filepath.Join(s.cfg.StorageRoot, repositoryID)
}

// Usage reports current storage consumption from the store aggregates.
// Repositories without a local clone do not count against the budget.
func (s *StorageService) Usage(ctx context.Context) (UsageReport, error) {
	total, count, err := s.store.StorageTotals(ctx)
	if err != nil {
		return UsageReport{}, fmt.Errorf("storage totals: %w", err)
	}

	report := UsageReport{
		TotalBytes:      total,
		RepositoryCount: count,
		LimitBytes:      s.cfg.LimitBytes,
	}
	if s.cfg.LimitBytes > 0 {
		report.UsageFraction = float64(total) / float64(s.cfg.LimitBytes)
	}
	s.metrics.SetStorageUsed(total)
	return report, nil
}

// VerifyUsage walks the storage root and reports the on-disk figures next to
// the recorded aggregate. The walk skips unreadable clones rather than fail.
func (s *StorageService) VerifyUsage(ctx context.Context) (UsageVerification, error) {
	report, err := s.Usage(ctx)
	if err != nil {
		return UsageVerification{}, err
	}
	v := UsageVerification{Recorded: report}

	entries, err := os.ReadDir(s.cfg.StorageRoot)
	if os.IsNotExist(err) {
		v.DriftBytes = -report.TotalBytes
		return v, nil
	}
	if err != nil {
		return UsageVerification{}, fmt.Errorf("read storage root: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		_, size, err := s.analyzer.AnalyzeStructure(filepath.Join(s.cfg.StorageRoot, entry.Name()))
		if err != nil {
			slog.Warn("walk clone directory", "dir", entry.Name(), "error", err)
			continue
		}
		v.WalkedBytes += size
		v.WalkedClones++
	}
	v.DriftBytes = v.WalkedBytes - report.TotalBytes
	return v, nil
}

// EvictIfNeeded archives stale repositories when usage has crossed the
// threshold. It returns true iff at least one repository was archived. One
// pass archives at most EvictBatch repositories; staying above the threshold
// afterwards is left for the next pass. When nothing needs evicting the call
// costs a single aggregate query.
func (s *StorageService) EvictIfNeeded(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, err := s.Usage(ctx)
	if err != nil {
		return false, err
	}
	if s.cfg.LimitBytes <= 0 || report.UsageFraction < s.cfg.EvictThreshold {
		return false, nil
	}

	cutoff := time.Now().UTC().Add(-s.cfg.StaleAfter)
	candidates, err := s.store.ListEvictionCandidates(ctx, cutoff, s.cfg.EvictBatch)
	if err != nil {
		return false, fmt.Errorf("list eviction candidates: %w", err)
	}
	if len(candidates) == 0 {
		slog.Warn("storage above threshold with no eviction candidates",
			"used_bytes", report.TotalBytes, "limit_bytes", report.LimitBytes)
		return false, nil
	}

	var archived int
	var freed int64
	for _, repo := range candidates {
		if err := s.archive(ctx, repo); err != nil {
			slog.Error("archive repository", "repository_id", repo.ID, "error", err)
			continue
		}
		archived++
		freed += repo.TotalSizeBytes
	}
	if archived == 0 {
		return false, nil
	}

	s.metrics.SetStorageUsed(report.TotalBytes - freed)
	slog.Info("storage eviction pass finished",
		"archived", archived, "freed_bytes", freed,
		"used_bytes", report.TotalBytes, "limit_bytes", report.LimitBytes)
	return true, nil
}

// archive removes the clone from disk and marks the record archived. The
// record itself and the version history are untouched.
func (s *StorageService) archive(ctx context.Context, repo *domain.Repository) error {
	if err := os.RemoveAll(s.ClonePath(repo.ID)); err != nil {
		return fmt.Errorf("remove clone: %w", err)
	}
	if err := s.store.UpdateRepositoryStatus(ctx, repo.ID, domain.RepoStatusArchived); err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}
	s.metrics.RecordEviction()
	slog.Info("repository archived", "repository_id", repo.ID, "name", repo.Name, "bytes", repo.TotalSizeBytes)
	return nil
}

// Restore re-clones an archived repository and reactivates it. Restoring a
// repository that is not archived returns false without touching anything.
func (s *StorageService) Restore(ctx context.Context, repositoryID string) (bool, error) {
	repo, err := s.store.GetRepository(ctx, repositoryID)
	if err != nil {
		return false, err
	}
	if repo.Status != domain.RepoStatusArchived {
		return false, nil
	}

	opCtx := ctx
	if s.cfg.CloneTimeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.cfg.CloneTimeout)
		defer cancel()
	}

	dest := s.ClonePath(repo.ID)
	info, err := s.transport.Clone(opCtx, repo.SourceURL, dest, s.cfg.CloneDepth, port.NopSink)
	if err != nil {
		return false, fmt.Errorf("restore clone: %w", err)
	}

	analysis, err := s.analyzer.Analyze(dest)
	if err != nil {
		if rmErr := os.RemoveAll(dest); rmErr != nil {
			slog.Error("cleanup restored clone", "repository_id", repo.ID, "error", rmErr)
		}
		return false, fmt.Errorf("restore analyze: %w", err)
	}

	now := time.Now().UTC()
	repo.Branch = info.Branch
	repo.CommitHash = info.CommitHash
	repo.Description = analysis.Description
	repo.FileCount = analysis.FileCount
	repo.TotalSizeBytes = analysis.TotalSizeBytes
	repo.Status = domain.RepoStatusActive
	repo.LastSyncedAt = &now

	if err := s.store.UpdateRepository(ctx, repo); err != nil {
		return false, fmt.Errorf("restore repository: %w", err)
	}
	recordVersion(ctx, s.store, repo, domain.ChangeRestored, s.cfg.VersionKeep)

	slog.Info("repository restored", "repository_id", repo.ID, "commit", repo.CommitHash)
	return true, nil
}

// RunSweeper evicts on a fixed interval until ctx is canceled. Meant to run
// as a background goroutine from main.
func (s *StorageService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.EvictIfNeeded(ctx); err != nil {
				slog.Error("storage sweep", "error", err)
			}
		}
	}
}
