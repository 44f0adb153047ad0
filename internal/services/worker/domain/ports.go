// Package domain defines the worker loop ports
package domain

import (
	"context"

	jobs "dupehound/internal/services/jobs/domain"
)

// Processor handles jobs of a single type. Process returns an optional
// result document persisted with the done job
type Processor interface {
	Type() string
	Process(ctx context.Context, job *jobs.Job) (map[string]any, error)
}

// FailedCallback fires after a job is failed permanently
type FailedCallback func(ctx context.Context, job *jobs.Job, cause error)

// RunnerPort drives the poll loop
type RunnerPort interface {
	// Register adds a processor; last registration per type wins
	Register(p Processor)

	// SetOnJobFailed installs the permanent failure callback
	SetOnJobFailed(cb FailedCallback)

	// Run blocks, ticking at the configured poll interval until ctx ends
	Run(ctx context.Context) error

	// Start launches Run on a background goroutine
	Start(ctx context.Context)

	// Stop cancels a started loop and waits for the in-flight tick
	Stop()
}
