package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/EmmettHwang/ssirn/internal/models"
)

// ArchiveJob records a finished job. Running jobs are rejected; the
// history only ever holds final states.
func (s *Store) ArchiveJob(job models.Job) error {
	if !job.Status.IsTerminal() {
		return fmt.Errorf("job %s is still %s", job.ID, job.Status)
	}
	logs := job.Logs
	if logs == nil {
		logs = []models.LogEntry{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("failed to encode job logs: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO job_history (job_id, kind, description, status, progress, total, started_at, finished_at, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Kind, job.Description, job.Status, job.Progress, job.Total,
		job.StartedAt, job.FinishedAt, string(logsJSON),
	)
	return err
}

// ListJobHistory returns the most recently finished jobs, newest first.
func (s *Store) ListJobHistory(limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT job_id, kind, description, status, progress, total, started_at, finished_at, logs
		FROM job_history
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var job models.Job
		var finished sql.NullTime
		var logsJSON string
		if err := rows.Scan(&job.ID, &job.Kind, &job.Description, &job.Status, &job.Progress, &job.Total,
			&job.StartedAt, &finished, &logsJSON); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			job.FinishedAt = &t
		}
		if err := json.Unmarshal([]byte(logsJSON), &job.Logs); err != nil {
			return nil, fmt.Errorf("failed to decode logs of job %s: %w", job.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
