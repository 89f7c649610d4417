package service

import (
	"sync"
	"time"

	"github.com/repodock/repodock/internal/domain"
)

// JobProgress is the live snapshot of an in-flight import job.
type JobProgress struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProgressTracker keeps live job snapshots in memory and fans updates out to
// stream subscribers. Once a job is terminal the durable row takes over and
// the tracker entry is dropped.
type ProgressTracker struct {
	mu   sync.RWMutex
	jobs map[string]*JobProgress
	subs map[string][]chan JobProgress // subscribers per job
}

// NewProgressTracker creates an empty tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		jobs: make(map[string]*JobProgress),
		subs: make(map[string][]chan JobProgress),
	}
}

// StartJob registers a new job snapshot.
func (t *ProgressTracker) StartJob(jobID, status, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[jobID] = &JobProgress{
		JobID:     jobID,
		Status:    status,
		Progress:  0,
		Message:   message,
		UpdatedAt: time.Now(),
	}
}

// UpdateJob advances a job snapshot and notifies subscribers. Progress never
// moves backwards; a lower value keeps the previous one. Terminal statuses
// drop the snapshot after the update is fanned out.
func (t *ProgressTracker) UpdateJob(jobID, status string, progress int, message string) {
	t.mu.Lock()
	job, ok := t.jobs[jobID]
	if !ok {
		t.mu.Unlock()
		return
	}
	if progress < job.Progress {
		progress = job.Progress
	}
	job.Status = status
	job.Progress = progress
	job.Message = message
	job.UpdatedAt = time.Now()

	snapshot := *job
	subs := t.subs[jobID]
	if status == domain.JobStatusCompleted || status == domain.JobStatusFailed {
		delete(t.jobs, jobID)
	}
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// GetJob returns the live snapshot for a job, if one is tracked.
func (t *ProgressTracker) GetJob(jobID string) (JobProgress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return JobProgress{}, false
	}
	return *job, true
}

// Subscribe returns a channel that receives snapshots for a job.
func (t *ProgressTracker) Subscribe(jobID string) chan JobProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan JobProgress, 10)
	t.subs[jobID] = append(t.subs[jobID], ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (t *ProgressTracker) Unsubscribe(jobID string, ch chan JobProgress) {
	t.mu.Lock()
	defer t.mu.Unlock()
	subs := t.subs[jobID]
	for i, s := range subs {
		if s == ch {
			t.subs[jobID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(t.subs[jobID]) == 0 {
		delete(t.subs, jobID)
	}
	close(ch)
}
