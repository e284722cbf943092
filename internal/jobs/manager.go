package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/EmmettHwang/ssirn/internal/models"
	"go.uber.org/zap"
)

// Task is the body of a background job. Returning an error marks the job
// failed; returning nil marks it completed.
type Task func(ctx context.Context, t *Tracker) error

// Archiver stores a finished job somewhere that outlives the registry.
type Archiver interface {
	ArchiveJob(job models.Job) error
}

// Manager launches tasks on their own goroutines and records their
// lifecycle in a Registry. At most maxWorkers tasks execute at once; the
// rest wait for a slot without blocking the caller.
type Manager struct {
	registry *Registry
	logger   *zap.Logger
	archiver Archiver
	slots    chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a manager admitting maxWorkers concurrent tasks.
func NewManager(registry *Registry, maxWorkers int, logger *zap.Logger) *Manager {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Manager{
		registry: registry,
		logger:   logger.Named("jobs"),
		slots:    make(chan struct{}, maxWorkers),
	}
}

// SetArchiver stores every finished job through a.
func (m *Manager) SetArchiver(a Archiver) {
	m.archiver = a
}

// Registry returns the registry the manager reports into.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Run creates a job and starts task in the background. The job id is
// returned immediately.
func (m *Manager) Run(kind models.JobKind, description string, task Task) string {
	id := m.registry.Create(kind, description)
	tracker := &Tracker{registry: m.registry, id: id}

	m.wg.Add(1)
	go m.execute(id, kind, description, tracker, task)
	return id
}

func (m *Manager) execute(id string, kind models.JobKind, description string, tracker *Tracker, task Task) {
	defer m.wg.Done()

	select {
	case m.slots <- struct{}{}:
	default:
		tracker.Logf("Waiting for a free worker...")
		m.slots <- struct{}{}
	}
	defer func() { <-m.slots }()

	log := m.logger.With(zap.String("job_id", id), zap.String("kind", string(kind)))
	log.Info("Starting job", zap.String("description", description))

	status := models.JobCompleted
	defer func() {
		if r := recover(); r != nil {
			log.Error("Job panicked", zap.Any("panic", r))
			tracker.Logf("Job panicked: %v", r)
			status = models.JobFailed
		}
		if err := m.registry.Finish(id, status); err != nil {
			log.Error("Could not finish job", zap.Error(err))
		}
		log.Info("Finished job", zap.String("status", string(status)))
		m.archive(id, log)
	}()

	if err := task(context.Background(), tracker); err != nil {
		log.Warn("Job failed", zap.Error(err))
		tracker.Logf("Failed: %v", err)
		status = models.JobFailed
	}
}

func (m *Manager) archive(id string, log *zap.Logger) {
	if m.archiver == nil {
		return
	}
	job, ok := m.registry.Get(id)
	if !ok {
		return
	}
	if err := m.archiver.ArchiveJob(job); err != nil {
		log.Warn("Could not archive job", zap.Error(err))
	}
}

// Wait blocks until every launched task has returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Tracker is a task's handle on its own job record.
type Tracker struct {
	registry *Registry
	id       string
}

// ID returns the job id.
func (t *Tracker) ID() string { return t.id }

// Logf appends a formatted line to the job log.
func (t *Tracker) Logf(format string, args ...any) {
	t.registry.AppendLog(t.id, fmt.Sprintf(format, args...))
}

// SetTotal records how many units the job will process.
func (t *Tracker) SetTotal(n int) {
	t.registry.Update(t.id, Total(n))
}

// SetCurrent labels the unit in flight.
func (t *Tracker) SetCurrent(item string) {
	t.registry.Update(t.id, CurrentItem(item))
}

// SetProgress records how many units are done.
func (t *Tracker) SetProgress(done int) {
	t.registry.Update(t.id, Progress(done))
}
