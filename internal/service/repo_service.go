package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/port"
)

// RepoStore is the persistence surface repository browsing needs.
type RepoStore interface {
	port.RepositoryStore
	port.VersionStore
}

// Listing defaults and caps.
const (
	DefaultPerPage      = 20
	MaxPerPage          = 100
	DefaultVersionLimit = 10
)

// RepoService serves repository reads — listing, detail, file paths, the
// processing-pass structure view, version history — and deletion. Every
// operation is scoped to the owning user.
type RepoService struct {
	store       RepoStore
	analyzer    port.Analyzer
	processor   port.Processor
	storageRoot string
}

// NewRepoService creates a new repository service.
func NewRepoService(store RepoStore, analyzer port.Analyzer, processor port.Processor, storageRoot string) *RepoService {
	return &RepoService{
		store:       store,
		analyzer:    analyzer,
		processor:   processor,
		storageRoot: storageRoot,
	}
}

// ClonePath returns the on-disk location of a repository's clone.
func (s *RepoService) ClonePath(repositoryID string) string {
	return filepath.Join(s.storageRoot, repositoryID)
}

// List returns one page of the owner's repositories, most recent first.
// page starts at 1; perPage is clamped to MaxPerPage.
func (s *RepoService) List(ctx context.Context, ownerEmail string, page, perPage int) ([]*domain.Repository, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return s.store.ListRepositoriesByOwner(ctx, ownerEmail, perPage, (page-1)*perPage)
}

// Get returns a repository by ID. Unknown IDs are not found; repositories
// belonging to someone else are forbidden.
func (s *RepoService) Get(ctx context.Context, id, ownerEmail string) (*domain.Repository, error) {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}
	if repo.OwnerEmail != ownerEmail {
		return nil, fmt.Errorf("repository %s: %w", id, port.ErrForbidden)
	}
	return repo, nil
}

// Delete removes the repository record together with its import jobs,
// version history, and local clone.
func (s *RepoService) Delete(ctx context.Context, id, ownerEmail string) error {
	repo, err := s.Get(ctx, id, ownerEmail)
	if err != nil {
		return err
	}
	if err := s.store.DeleteRepository(ctx, repo.ID); err != nil {
		return fmt.Errorf("delete repository: %w", err)
	}
	if err := os.RemoveAll(s.ClonePath(repo.ID)); err != nil {
		slog.Error("remove clone directory", "repository_id", repo.ID, "error", err)
	}
	slog.Info("repository deleted", "repository_id", repo.ID, "name", repo.Name)
	return nil
}

// Files returns the clone's file paths, sorted, VCS metadata excluded.
// Archived repositories have no clone to list.
func (s *RepoService) Files(ctx context.Context, id, ownerEmail string) ([]string, error) {
	repo, err := s.Get(ctx, id, ownerEmail)
	if err != nil {
		return nil, err
	}
	if !repo.HasLocalClone() {
		return nil, fmt.Errorf("repository %s: %w", id, port.ErrArchived)
	}
	files, err := s.analyzer.ListFiles(s.ClonePath(repo.ID))
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// Structure runs the processing passes over the clone and returns the
// classified view of its contents.
func (s *RepoService) Structure(ctx context.Context, id, ownerEmail string) (*port.ProcessingResult, error) {
	repo, err := s.Get(ctx, id, ownerEmail)
	if err != nil {
		return nil, err
	}
	if !repo.HasLocalClone() {
		return nil, fmt.Errorf("repository %s: %w", id, port.ErrArchived)
	}
	result, err := s.processor.Process(ctx, s.ClonePath(repo.ID))
	if err != nil {
		return nil, fmt.Errorf("process repository: %w", err)
	}
	result.RepositoryID = repo.ID
	return result, nil
}

// Versions returns the repository's history, most recent first.
func (s *RepoService) Versions(ctx context.Context, id, ownerEmail string, limit int) ([]*domain.RepositoryVersion, error) {
	repo, err := s.Get(ctx, id, ownerEmail)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = DefaultVersionLimit
	}
	return s.store.ListVersions(ctx, repo.ID, limit)
}
