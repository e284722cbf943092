package store_test

import (
	"testing"
	"time"

	"github.com/EmmettHwang/ssirn/internal/models"
	"github.com/EmmettHwang/ssirn/internal/store"
	"github.com/EmmettHwang/ssirn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finishedJob(id string, finished time.Time, status models.JobStatus) models.Job {
	started := finished.Add(-5 * time.Minute)
	return models.Job{
		ID:          id,
		Kind:        models.KindConvert,
		Description: "cam1 20260204",
		Status:      status,
		Progress:    3,
		Total:       3,
		StartedAt:   started,
		FinishedAt:  &finished,
		Logs: []models.LogEntry{
			{Time: started, Message: "Found 3 images"},
			{Time: finished, Message: "Uploaded /feed/videos/20260204.mp4 (1000 bytes)"},
		},
	}
}

func TestArchiveAndListJobHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	base := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.ArchiveJob(finishedJob("aaaa0001", base, models.JobCompleted)))
	require.NoError(t, s.ArchiveJob(finishedJob("aaaa0002", base.Add(time.Minute), models.JobFailed)))

	jobs, err := s.ListJobHistory(10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "aaaa0002", jobs[0].ID, "newest first")
	assert.Equal(t, models.JobFailed, jobs[0].Status)
	assert.Equal(t, models.KindConvert, jobs[1].Kind)
	require.NotNil(t, jobs[1].FinishedAt)
	assert.True(t, base.Equal(*jobs[1].FinishedAt))
	require.Len(t, jobs[1].Logs, 2)
	assert.Equal(t, "Found 3 images", jobs[1].Logs[0].Message)
}

func TestListJobHistoryLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	base := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.ArchiveJob(finishedJob("job", base.Add(time.Duration(i)*time.Minute), models.JobCompleted)))
	}

	jobs, err := s.ListJobHistory(3)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestArchiveJobRejectsRunning(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	err := s.ArchiveJob(models.Job{ID: "r", Kind: models.KindResize, Status: models.JobRunning, StartedAt: time.Now()})
	assert.Error(t, err)

	jobs, err := s.ListJobHistory(10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
