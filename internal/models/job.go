// This file defines the in-memory record of a background archive job.

package models

import "time"

// JobStatus is the lifecycle state of a job. A job starts running and
// leaves that state exactly once.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status ends a job's lifecycle.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobKind tags what a job does.
type JobKind string

const (
	KindConvert      JobKind = "convert"
	KindResize       JobKind = "resize"
	KindResizeAll    JobKind = "resize-all"
	KindConvertRange JobKind = "convert-range"
)

// LogEntry is one timestamped line of a job log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Job is a snapshot of one background operation. Values handed out by the
// registry are copies; mutating them has no effect on the tracked job.
type Job struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	Description string     `json:"description"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	CurrentItem string     `json:"current_item,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"` // nil while running
	Logs        []LogEntry `json:"logs"`
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() Job {
	c := *j
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	c.Logs = make([]LogEntry, len(j.Logs))
	copy(c.Logs, j.Logs)
	return c
}

// JobEvent is pushed to websocket subscribers whenever a job changes.
type JobEvent struct {
	Type string `json:"type"` // "created", "updated", "finished"
	Job  Job    `json:"job"`
}
