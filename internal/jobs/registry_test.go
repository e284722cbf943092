package jobs_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/EmmettHwang/ssirn/internal/jobs"
	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock shared by a registry under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_Create(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindConvert, "cam1 20260204")

	job, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, job.ID)
	assert.Len(t, id, 8)
	assert.Equal(t, models.KindConvert, job.Kind)
	assert.Equal(t, "cam1 20260204", job.Description)
	assert.Equal(t, models.JobRunning, job.Status)
	assert.Zero(t, job.Progress)
	assert.Empty(t, job.Logs)
	assert.Nil(t, job.FinishedAt)
	assert.False(t, job.StartedAt.IsZero())
}

func TestRegistry_UniqueIDs(t *testing.T) {
	reg := jobs.NewRegistry()
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id := reg.Create(models.KindResize, "x")
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestRegistry_UpdateAndProgressNeverDecreases(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindResizeAll, "cam1")

	reg.Update(id, jobs.Total(10), jobs.Progress(4), jobs.CurrentItem("20260201"))
	reg.Update(id, jobs.Progress(2))

	job, _ := reg.Get(id)
	assert.Equal(t, 10, job.Total)
	assert.Equal(t, 4, job.Progress)
	assert.Equal(t, "20260201", job.CurrentItem)
}

func TestRegistry_UnknownIDIsIgnored(t *testing.T) {
	reg := jobs.NewRegistry()
	assert.NotPanics(t, func() {
		reg.Update("missing", jobs.Progress(3))
		reg.AppendLog("missing", "hello")
		assert.NoError(t, reg.Finish("missing", models.JobCompleted))
	})
	_, ok := reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_LogCap(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindConvertRange, "cam1 20260101-20260301")

	for i := 0; i < 150; i++ {
		reg.AppendLog(id, fmt.Sprintf("line %d", i))
	}

	job, _ := reg.Get(id)
	require.Len(t, job.Logs, jobs.DefaultLogLimit)
	assert.Equal(t, "line 50", job.Logs[0].Message)
	assert.Equal(t, "line 149", job.Logs[len(job.Logs)-1].Message)
}

func TestRegistry_CustomLogLimit(t *testing.T) {
	reg := jobs.NewRegistry(jobs.WithLogLimit(3))
	id := reg.Create(models.KindConvert, "x")
	for i := 0; i < 5; i++ {
		reg.AppendLog(id, fmt.Sprintf("%d", i))
	}
	job, _ := reg.Get(id)
	require.Len(t, job.Logs, 3)
	assert.Equal(t, "2", job.Logs[0].Message)
}

func TestRegistry_FinishLifecycle(t *testing.T) {
	clock := newFakeClock()
	reg := jobs.NewRegistry(jobs.WithClock(clock.Now))
	id := reg.Create(models.KindConvert, "cam1 20260204")

	job, _ := reg.Get(id)
	assert.Nil(t, job.FinishedAt, "finished_at must be nil while running")

	clock.Advance(time.Minute)
	require.NoError(t, reg.Finish(id, models.JobFailed))
	job, _ = reg.Get(id)
	require.NotNil(t, job.FinishedAt)
	assert.Equal(t, models.JobFailed, job.Status)
	first := *job.FinishedAt

	// A second finish must not move the job or restamp finished_at.
	clock.Advance(time.Minute)
	require.NoError(t, reg.Finish(id, models.JobCompleted))
	job, _ = reg.Get(id)
	assert.Equal(t, models.JobFailed, job.Status)
	assert.Equal(t, first, *job.FinishedAt)
}

func TestRegistry_FinishRejectsRunning(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindConvert, "x")
	err := reg.Finish(id, models.JobRunning)
	assert.ErrorIs(t, err, jobs.ErrNotTerminal)
}

func TestRegistry_FinishedJobIsFrozen(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindConvert, "x")
	reg.AppendLog(id, "before")
	require.NoError(t, reg.Finish(id, models.JobCompleted))

	reg.AppendLog(id, "after")
	reg.Update(id, jobs.Progress(9))

	job, _ := reg.Get(id)
	assert.Len(t, job.Logs, 1)
	assert.Zero(t, job.Progress)
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	reg := jobs.NewRegistry()
	id := reg.Create(models.KindConvert, "x")
	reg.AppendLog(id, "original")

	job, _ := reg.Get(id)
	job.Logs[0].Message = "tampered"
	job.Progress = 99

	again, _ := reg.Get(id)
	assert.Equal(t, "original", again.Logs[0].Message)
	assert.Zero(t, again.Progress)
}

func TestRegistry_ListRecent(t *testing.T) {
	clock := newFakeClock()
	reg := jobs.NewRegistry(jobs.WithClock(clock.Now))

	var ids []string
	for i := 0; i < 25; i++ {
		ids = append(ids, reg.Create(models.KindResize, fmt.Sprintf("job %d", i)))
		clock.Advance(time.Second)
	}

	recent := reg.ListRecent(0)
	require.Len(t, recent, jobs.DefaultRecentLimit)
	assert.Equal(t, ids[24], recent[0].ID, "newest first")
	assert.Equal(t, ids[5], recent[19].ID)

	assert.Len(t, reg.ListRecent(3), 3)
	assert.Len(t, reg.ListRecent(100), jobs.DefaultRecentLimit, "never more than the recent limit")
}

func TestRegistry_ListRunning(t *testing.T) {
	reg := jobs.NewRegistry()
	a := reg.Create(models.KindConvert, "a")
	b := reg.Create(models.KindConvert, "b")
	require.NoError(t, reg.Finish(a, models.JobCompleted))

	running := reg.ListRunning()
	require.Len(t, running, 1)
	assert.Equal(t, b, running[0].ID)
}

func TestRegistry_Sweep(t *testing.T) {
	clock := newFakeClock()
	reg := jobs.NewRegistry(jobs.WithClock(clock.Now))

	old := reg.Create(models.KindConvert, "old")
	require.NoError(t, reg.Finish(old, models.JobCompleted))
	stillRunning := reg.Create(models.KindConvert, "running")

	clock.Advance(30 * time.Minute)
	fresh := reg.Create(models.KindResize, "fresh")
	require.NoError(t, reg.Finish(fresh, models.JobFailed))

	// Exactly one hour after finishing is not yet past the retention.
	clock.Advance(30 * time.Minute)
	assert.Empty(t, reg.Sweep())

	clock.Advance(time.Second)
	evicted := reg.Sweep()
	require.Len(t, evicted, 1)
	assert.Equal(t, old, evicted[0].ID)

	_, ok := reg.Get(old)
	assert.False(t, ok)
	_, ok = reg.Get(fresh)
	assert.True(t, ok)

	// Running jobs survive no matter how old they are.
	clock.Advance(24 * time.Hour)
	reg.Sweep()
	_, ok = reg.Get(stillRunning)
	assert.True(t, ok)
	_, ok = reg.Get(fresh)
	assert.False(t, ok)
}

func TestRegistry_ConcurrentWritersOnDistinctJobs(t *testing.T) {
	reg := jobs.NewRegistry(jobs.WithLogLimit(1000))
	const writers = 16
	const steps = 200

	ids := make([]string, writers)
	for i := range ids {
		ids[i] = reg.Create(models.KindConvertRange, fmt.Sprintf("writer %d", i))
	}

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			reg.Update(id, jobs.Total(steps))
			for i := 1; i <= steps; i++ {
				reg.Update(id, jobs.Progress(i), jobs.CurrentItem(fmt.Sprintf("%s-%d", id, i)))
				reg.AppendLog(id, fmt.Sprintf("%s step %d", id, i))
			}
			_ = reg.Finish(id, models.JobCompleted)
		}(ids[w])
	}
	// Pollers and sweeps race the writers.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				reg.ListRecent(50)
				reg.ListRunning()
				reg.Sweep()
			}
		}
	}()
	wg.Wait()
	close(done)

	for _, id := range ids {
		job, ok := reg.Get(id)
		require.True(t, ok)
		assert.Equal(t, steps, job.Total)
		assert.Equal(t, steps, job.Progress)
		assert.Equal(t, models.JobCompleted, job.Status)
		require.Len(t, job.Logs, steps)
		for i, entry := range job.Logs {
			assert.Equal(t, fmt.Sprintf("%s step %d", id, i+1), entry.Message)
		}
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.JobEvent
}

func (n *recordingNotifier) Publish(e models.JobEvent) {
	n.mu.Lock()
	n.events = append(n.events, e)
	n.mu.Unlock()
}

func TestRegistry_Notifier(t *testing.T) {
	n := &recordingNotifier{}
	reg := jobs.NewRegistry(jobs.WithNotifier(n))
	id := reg.Create(models.KindConvert, "x")
	reg.AppendLog(id, "hello")
	require.NoError(t, reg.Finish(id, models.JobCompleted))

	require.Len(t, n.events, 3)
	assert.Equal(t, "created", n.events[0].Type)
	assert.Equal(t, "updated", n.events[1].Type)
	assert.Equal(t, "finished", n.events[2].Type)
	assert.Equal(t, models.JobCompleted, n.events[2].Job.Status)
}
