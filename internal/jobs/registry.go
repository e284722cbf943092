package jobs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/google/uuid"
)

const (
	DefaultLogLimit    = 100
	DefaultRecentLimit = 20
	DefaultRetention   = time.Hour
)

// ErrNotTerminal is returned by Finish when asked to move a job to a
// status that does not end it.
var ErrNotTerminal = errors.New("status is not terminal")

// Notifier receives a snapshot after every change to a job. It is called
// outside the registry lock.
type Notifier interface {
	Publish(event models.JobEvent)
}

// Registry tracks every background job of the process. All reads and
// writes go through one mutex held for the whole read-modify-write.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*models.Job
	issued    map[string]struct{}
	logLimit  int
	retention time.Duration
	now       func() time.Time
	notifier  Notifier
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogLimit caps the number of log entries kept per job.
func WithLogLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.logLimit = n
		}
	}
}

// WithRetention sets how long a finished job stays before a sweep evicts it.
func WithRetention(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.retention = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithNotifier publishes job changes to n.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) { r.notifier = n }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs:      make(map[string]*models.Job),
		issued:    make(map[string]struct{}),
		logLimit:  DefaultLogLimit,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new running job and returns its id.
func (r *Registry) Create(kind models.JobKind, description string) string {
	r.mu.Lock()
	id := r.newID()
	job := &models.Job{
		ID:          id,
		Kind:        kind,
		Description: description,
		Status:      models.JobRunning,
		StartedAt:   r.now(),
		Logs:        []models.LogEntry{},
	}
	r.jobs[id] = job
	snap := job.Clone()
	r.mu.Unlock()

	r.publish("created", snap)
	return id
}

// newID draws short ids until one has never been issued. Caller holds mu.
func (r *Registry) newID() string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if _, taken := r.issued[id]; !taken {
			r.issued[id] = struct{}{}
			return id
		}
	}
}

// UpdateOption changes one field of a running job.
type UpdateOption func(*models.Job)

// Total sets the number of units the job will process.
func Total(n int) UpdateOption {
	return func(j *models.Job) { j.Total = n }
}

// Progress sets the number of units done. Lower values than the current
// progress are ignored.
func Progress(n int) UpdateOption {
	return func(j *models.Job) {
		if n > j.Progress {
			j.Progress = n
		}
	}
}

// CurrentItem labels the unit in flight.
func CurrentItem(item string) UpdateOption {
	return func(j *models.Job) { j.CurrentItem = item }
}

// Update applies opts to a running job. Unknown ids and finished jobs are
// ignored since a sweep may have raced the caller.
func (r *Registry) Update(id string, opts ...UpdateOption) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return
	}
	for _, opt := range opts {
		opt(job)
	}
	snap := job.Clone()
	r.mu.Unlock()

	r.publish("updated", snap)
}

// AppendLog adds a timestamped message to a running job, dropping the
// oldest entries past the log limit.
func (r *Registry) AppendLog(id, message string) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return
	}
	job.Logs = append(job.Logs, models.LogEntry{Time: r.now(), Message: message})
	if over := len(job.Logs) - r.logLimit; over > 0 {
		job.Logs = append([]models.LogEntry(nil), job.Logs[over:]...)
	}
	snap := job.Clone()
	r.mu.Unlock()

	r.publish("updated", snap)
}

// Finish moves a running job to a terminal status and stamps finished_at.
// Finishing an already finished job or an unknown id does nothing.
func (r *Registry) Finish(id string, status models.JobStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish job %s with %q: %w", id, status, ErrNotTerminal)
	}

	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status.IsTerminal() {
		r.mu.Unlock()
		return nil
	}
	now := r.now()
	job.Status = status
	job.FinishedAt = &now
	job.CurrentItem = ""
	snap := job.Clone()
	r.mu.Unlock()

	r.publish("finished", snap)
	return nil
}

// Get returns a snapshot of the job with the given id.
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return job.Clone(), true
}

// ListRecent returns up to limit jobs, newest first, never more than
// DefaultRecentLimit. A non-positive limit means DefaultRecentLimit.
func (r *Registry) ListRecent(limit int) []models.Job {
	if limit <= 0 || limit > DefaultRecentLimit {
		limit = DefaultRecentLimit
	}
	r.mu.Lock()
	list := r.snapshot(func(*models.Job) bool { return true })
	r.mu.Unlock()

	if len(list) > limit {
		list = list[:limit]
	}
	return list
}

// ListRunning returns every job still running, newest first.
func (r *Registry) ListRunning() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(func(j *models.Job) bool { return j.Status == models.JobRunning })
}

// snapshot copies the jobs matching keep, sorted by start time descending.
// Caller holds mu.
func (r *Registry) snapshot(keep func(*models.Job) bool) []models.Job {
	list := make([]models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if keep(job) {
			list = append(list, job.Clone())
		}
	}
	sort.Slice(list, func(i, k int) bool {
		if list[i].StartedAt.Equal(list[k].StartedAt) {
			return list[i].ID < list[k].ID
		}
		return list[i].StartedAt.After(list[k].StartedAt)
	})
	return list
}

// Sweep evicts finished jobs whose finished_at is older than the retention
// and returns them. Running jobs are never evicted.
func (r *Registry) Sweep() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.retention)
	var evicted []models.Job
	for id, job := range r.jobs {
		if job.Status == models.JobRunning || job.FinishedAt == nil {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			evicted = append(evicted, job.Clone())
			delete(r.jobs, id)
		}
	}
	return evicted
}

func (r *Registry) publish(kind string, job models.Job) {
	if r.notifier == nil {
		return
	}
	r.notifier.Publish(models.JobEvent{Type: kind, Job: job})
}
