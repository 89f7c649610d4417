package vcs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"

	"github.com/repodock/repodock/internal/port"
)

// GitTransport implements port.GitTransport using go-git.
type GitTransport struct{}

// NewGitTransport creates a new Git transport.
func NewGitTransport() *GitTransport {
	return &GitTransport{}
}

// Clone clones url into dest. depth > 0 requests a shallow clone. On failure
// the destination directory is removed so no partial clone is left behind.
func (t *GitTransport) Clone(ctx context.Context, url, dest string, depth int, sink port.ProgressSink) (port.CloneInfo, error) {
	if sink == nil {
		sink = port.NopSink
	}
	sink.Report(10, "Initializing clone operation...")

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return port.CloneInfo{}, fmt.Errorf("create clone parent dir: %w", err)
	}

	opts := &git.CloneOptions{URL: url}
	if depth > 0 {
		opts.Depth = depth
	}

	sink.Report(30, "Cloning repository...")
	repo, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		os.RemoveAll(dest)
		return port.CloneInfo{}, fmt.Errorf("%w: clone failed: %v", port.ErrTransport, err)
	}

	return headInfo(repo)
}

// Pull fetches and merges the latest changes for the clone at dest.
// An already-up-to-date worktree is a successful pull.
func (t *GitTransport) Pull(ctx context.Context, dest string, sink port.ProgressSink) (port.CloneInfo, error) {
	if sink == nil {
		sink = port.NopSink
	}
	sink.Report(20, "Opening repository...")

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return port.CloneInfo{}, fmt.Errorf("%w: open %s: %v", port.ErrTransport, filepath.Base(dest), err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return port.CloneInfo{}, fmt.Errorf("%w: worktree: %v", port.ErrTransport, err)
	}

	sink.Report(50, "Pulling latest changes...")
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return port.CloneInfo{}, fmt.Errorf("%w: pull: %v", port.ErrTransport, err)
	}

	return headInfo(repo)
}

func headInfo(repo *git.Repository) (port.CloneInfo, error) {
	ref, err := repo.Head()
	if err != nil {
		return port.CloneInfo{}, fmt.Errorf("%w: resolve HEAD: %v", port.ErrTransport, err)
	}
	info := port.CloneInfo{
		Branch:     "main",
		CommitHash: ref.Hash().String(),
	}
	if ref.Name().IsBranch() {
		info.Branch = ref.Name().Short()
	}
	return info, nil
}
