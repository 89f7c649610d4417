package handler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/repodock/repodock/internal/domain"
	"github.com/repodock/repodock/internal/port"
)

// fakeStore is an in-memory port.Store backing the handler tests.
type fakeStore struct {
	mu       sync.Mutex
	repos    map[string]*domain.Repository
	jobs     map[string]*domain.ImportJob
	users    map[string]*domain.User
	sessions map[string]*domain.UserSession // by token
	versions map[string][]*domain.RepositoryVersion
	audits   []*domain.AuditEntry

	pingErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repos:    make(map[string]*domain.Repository),
		jobs:     make(map[string]*domain.ImportJob),
		users:    make(map[string]*domain.User),
		sessions: make(map[string]*domain.UserSession),
		versions: make(map[string][]*domain.RepositoryVersion),
	}
}

func (f *fakeStore) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeStore) CreateRepository(_ context.Context, r *domain.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[r.ID]; ok {
		return port.ErrConflict
	}
	cp := *r
	f.repos[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetRepository(_ context.Context, id string) (*domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return nil, fmt.Errorf("get repository %s: %w", id, port.ErrNotFound)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) UpdateRepository(_ context.Context, r *domain.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[r.ID]; !ok {
		return port.ErrNotFound
	}
	cp := *r
	f.repos[r.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateRepositoryStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return port.ErrNotFound
	}
	r.Status = status
	return nil
}

func (f *fakeStore) DeleteRepository(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[id]; !ok {
		return port.ErrNotFound
	}
	delete(f.repos, id)
	delete(f.versions, id)
	for jid, j := range f.jobs {
		if j.RepositoryID == id {
			delete(f.jobs, jid)
		}
	}
	return nil
}

func (f *fakeStore) ListRepositoriesByOwner(_ context.Context, ownerEmail string, limit, offset int) ([]*domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Repository
	for _, r := range f.repos {
		if r.OwnerEmail == ownerEmail {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedAt.After(out[j].ImportedAt) })
	if offset >= len(out) {
		return []*domain.Repository{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) ListEvictionCandidates(_ context.Context, cutoff time.Time, limit int) ([]*domain.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Repository
	for _, r := range f.repos {
		if r.Status != domain.RepoStatusActive && r.Status != domain.RepoStatusError {
			continue
		}
		if r.LastSyncedAt == nil || r.LastSyncedAt.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastSyncedAt == nil && b.LastSyncedAt != nil:
			return true
		case a.LastSyncedAt != nil && b.LastSyncedAt == nil:
			return false
		case a.LastSyncedAt != nil && b.LastSyncedAt != nil && !a.LastSyncedAt.Equal(*b.LastSyncedAt):
			return a.LastSyncedAt.Before(*b.LastSyncedAt)
		default:
			return a.TotalSizeBytes > b.TotalSizeBytes
		}
	})
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) StorageTotals(_ context.Context) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	var count int
	for _, r := range f.repos {
		if r.HasLocalClone() {
			total += r.TotalSizeBytes
			count++
		}
	}
	return total, count, nil
}

func (f *fakeStore) CreateImportJob(_ context.Context, j *domain.ImportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeStore) GetImportJob(_ context.Context, id string) (*domain.ImportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, fmt.Errorf("get import job %s: %w", id, port.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (f *fakeStore) UpdateImportJobStatus(_ context.Context, id, status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return port.ErrNotFound
	}
	j.Status = status
	j.Message = message
	return nil
}

func (f *fakeStore) UpdateImportJobProgress(_ context.Context, id string, progress int, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return port.ErrNotFound
	}
	j.Progress = progress
	j.Message = message
	return nil
}

func (f *fakeStore) CompleteImportJob(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return port.ErrNotFound
	}
	now := time.Now()
	j.Status = domain.JobStatusCompleted
	j.Progress = 100
	j.Message = message
	j.CompletedAt = &now
	return nil
}

func (f *fakeStore) FailImportJob(_ context.Context, id, message, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return port.ErrNotFound
	}
	now := time.Now()
	j.Status = domain.JobStatusFailed
	j.Message = message
	j.ErrorMessage = errorMessage
	j.CompletedAt = &now
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user %s: %w", u.Email, port.ErrConflict)
		}
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user %s: %w", email, port.ErrNotFound)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, port.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *domain.UserSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.Token] = &cp
	return nil
}

func (f *fakeStore) GetSessionByToken(_ context.Context, token string) (*domain.UserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok {
		return nil, fmt.Errorf("get session: %w", port.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[token]; !ok {
		return false, nil
	}
	delete(f.sessions, token)
	return true, nil
}

func (f *fakeStore) DeleteExpiredSessions(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var n int64
	for token, s := range f.sessions {
		if s.Expired(now) {
			delete(f.sessions, token)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CreateVersion(_ context.Context, v *domain.RepositoryVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.versions[v.RepositoryID] = append(f.versions[v.RepositoryID], &cp)
	return nil
}

func (f *fakeStore) ListVersions(_ context.Context, repositoryID string, limit int) ([]*domain.RepositoryVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.versions[repositoryID]
	out := make([]*domain.RepositoryVersion, 0, len(src))
	for _, v := range src {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) CleanupVersions(_ context.Context, repositoryID string, keep int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src := f.versions[repositoryID]
	if len(src) <= keep {
		return 0, nil
	}
	sort.Slice(src, func(i, j int) bool { return src[i].CreatedAt.After(src[j].CreatedAt) })
	removed := int64(len(src) - keep)
	f.versions[repositoryID] = src[:keep]
	return removed, nil
}

func (f *fakeStore) CreateAuditEntry(_ context.Context, e *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.audits = append(f.audits, &cp)
	return nil
}

func (f *fakeStore) ListAuditEntries(_ context.Context, limit int) ([]*domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.AuditEntry, 0, len(f.audits))
	for _, e := range f.audits {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// jobStatus reads a job's status under the store lock.
func (f *fakeStore) jobStatus(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return "", false
	}
	return j.Status, true
}

// repoStatus reads a repository's status under the store lock.
func (f *fakeStore) repoStatus(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// stubTransport is a canned port.GitTransport. Clone materializes dest so
// later filesystem operations behave as they would with a real clone.
type stubTransport struct {
	mu       sync.Mutex
	info     port.CloneInfo
	cloneErr error
	pullErr  error
	clones   []string
	pulls    []string
}

func newStubTransport() *stubTransport {
	return &stubTransport{info: port.CloneInfo{Branch: "main", CommitHash: "abc123"}}
}

func (t *stubTransport) Clone(_ context.Context, url, dest string, _ int, sink port.ProgressSink) (port.CloneInfo, error) {
	t.mu.Lock()
	t.clones = append(t.clones, url)
	err := t.cloneErr
	info := t.info
	t.mu.Unlock()

	if err != nil {
		return port.CloneInfo{}, err
	}
	if sink == nil {
		sink = port.NopSink
	}
	sink.Report(10, "Initializing clone operation...")
	sink.Report(30, "Cloning repository...")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return port.CloneInfo{}, err
	}
	return info, nil
}

func (t *stubTransport) Pull(_ context.Context, dest string, sink port.ProgressSink) (port.CloneInfo, error) {
	t.mu.Lock()
	t.pulls = append(t.pulls, dest)
	err := t.pullErr
	info := t.info
	t.mu.Unlock()

	if err != nil {
		return port.CloneInfo{}, err
	}
	if sink == nil {
		sink = port.NopSink
	}
	sink.Report(20, "Opening repository...")
	sink.Report(50, "Pulling latest changes...")
	return info, nil
}

// stubAnalyzer returns canned figures regardless of directory contents.
type stubAnalyzer struct {
	result port.AnalysisResult
	files  []string
}

func (a stubAnalyzer) Analyze(string) (port.AnalysisResult, error) {
	return a.result, nil
}

func (a stubAnalyzer) AnalyzeStructure(string) (int, int64, error) {
	return a.result.FileCount, a.result.TotalSizeBytes, nil
}

func (a stubAnalyzer) ListFiles(string) ([]string, error) {
	return a.files, nil
}

// stubProcessor returns a canned processing result for any root.
type stubProcessor struct {
	result *port.ProcessingResult
}

func (p stubProcessor) Process(context.Context, string) (*port.ProcessingResult, error) {
	cp := *p.result
	return &cp, nil
}

// okPinger and badPinger are canned Pinger implementations.
type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type badPinger struct{}

func (badPinger) Ping(context.Context) error { return errors.New("unreachable") }
