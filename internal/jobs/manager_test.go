package jobs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EmmettHwang/ssirn/internal/jobs"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestManager(t *testing.T, workers int) *jobs.Manager {
	t.Helper()
	return jobs.NewManager(jobs.NewRegistry(), workers, zaptest.NewLogger(t))
}

func TestManager_RunReturnsImmediately(t *testing.T) {
	mgr := newTestManager(t, 1)
	block := make(chan struct{})

	id := mgr.Run(models.KindConvert, "cam1 20260204", func(ctx context.Context, tr *jobs.Tracker) error {
		<-block
		return nil
	})

	job, ok := mgr.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, models.JobRunning, job.Status)

	close(block)
	mgr.Wait()
	job, _ = mgr.Registry().Get(id)
	assert.Equal(t, models.JobCompleted, job.Status)
	assert.NotNil(t, job.FinishedAt)
}

func TestManager_TaskErrorFailsJob(t *testing.T) {
	mgr := newTestManager(t, 1)
	id := mgr.Run(models.KindResize, "cam1 20260204", func(ctx context.Context, tr *jobs.Tracker) error {
		return errors.New("ftp: connection refused")
	})
	mgr.Wait()

	job, _ := mgr.Registry().Get(id)
	assert.Equal(t, models.JobFailed, job.Status)
	require.NotEmpty(t, job.Logs)
	assert.Contains(t, job.Logs[len(job.Logs)-1].Message, "connection refused")
}

func TestManager_PanicFailsJob(t *testing.T) {
	mgr := newTestManager(t, 1)
	id := mgr.Run(models.KindConvert, "x", func(ctx context.Context, tr *jobs.Tracker) error {
		panic("fail")
	})
	mgr.Wait()

	job, _ := mgr.Registry().Get(id)
	assert.Equal(t, models.JobFailed, job.Status)
	require.NotEmpty(t, job.Logs)
	assert.Contains(t, job.Logs[len(job.Logs)-1].Message, "panicked")
}

func TestManager_TrackerReportsIntoJob(t *testing.T) {
	mgr := newTestManager(t, 1)
	id := mgr.Run(models.KindResizeAll, "cam1", func(ctx context.Context, tr *jobs.Tracker) error {
		tr.SetTotal(2)
		tr.SetCurrent("20260201")
		tr.SetProgress(1)
		tr.Logf("resized %s", "20260201")
		return nil
	})
	mgr.Wait()

	job, _ := mgr.Registry().Get(id)
	assert.Equal(t, 2, job.Total)
	assert.Equal(t, 1, job.Progress)
	assert.Empty(t, job.CurrentItem, "current item is cleared on finish")
	require.Len(t, job.Logs, 1)
	assert.Equal(t, "resized 20260201", job.Logs[0].Message)
}

func TestManager_BoundsConcurrency(t *testing.T) {
	mgr := newTestManager(t, 2)
	var running, peak int32
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		mgr.Run(models.KindConvert, "x", func(ctx context.Context, tr *jobs.Tracker) error {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			<-release
			atomic.AddInt32(&running, -1)
			return nil
		})
	}

	// All six are visible as running while only two execute.
	assert.Len(t, mgr.Registry().ListRunning(), 6)
	time.Sleep(50 * time.Millisecond)
	close(release)
	mgr.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Empty(t, mgr.Registry().ListRunning())
}

type memoryArchiver struct {
	mu   sync.Mutex
	jobs []models.Job
}

func (a *memoryArchiver) ArchiveJob(job models.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	return nil
}

func TestManager_ArchivesFinishedJobs(t *testing.T) {
	mgr := newTestManager(t, 1)
	arch := &memoryArchiver{}
	mgr.SetArchiver(arch)

	id := mgr.Run(models.KindConvert, "x", func(ctx context.Context, tr *jobs.Tracker) error { return nil })
	mgr.Wait()

	require.Len(t, arch.jobs, 1)
	assert.Equal(t, id, arch.jobs[0].ID)
	assert.Equal(t, models.JobCompleted, arch.jobs[0].Status)
}
