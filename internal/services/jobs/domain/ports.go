package domain

import (
	"context"
	"time"
)

// QueuePort is the durable queue surface used by the worker loop and the
// scan processors
type QueuePort interface {
	// Enqueue inserts a queued job and returns its id
	Enqueue(ctx context.Context, in NewJob) (string, error)

	// Dequeue claims the oldest ready job atomically; nil when none is ready
	Dequeue(ctx context.Context) (*Job, error)

	// Complete marks a job done with an optional result document
	Complete(ctx context.Context, id string, result map[string]any) error

	// Fail marks a job failed with its final error message
	Fail(ctx context.Context, id string, errMsg string) error

	// Pause returns a job to queued with a future activation time
	Pause(ctx context.Context, id string, runAfter time.Time) error

	// Get fetches a job by id
	Get(ctx context.Context, id string) (*Job, error)

	// RecoverRunningJobs re-queues jobs left running by a dead process
	RecoverRunningJobs(ctx context.Context) (int, error)
}
