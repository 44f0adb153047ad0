// Package domain defines the job queue types and ports
package domain

import "time"

// Job statuses. A job is claimed by flipping queued to running in a single
// statement; running jobs found at startup are crash leftovers
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Job is one durable unit of work
type Job struct {
	ID         string
	Type       string
	Payload    map[string]any
	Status     string
	Result     map[string]any
	Error      string
	Attempts   int
	MaxRetries int
	RunAfter   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewJob describes a job to enqueue
type NewJob struct {
	Type       string
	Payload    map[string]any
	MaxRetries int // <=0 means the default of 3
	RunAfter   *time.Time
}
