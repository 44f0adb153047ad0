package service

import (
	"context"

	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/scans/domain"
)

// Orchestrator handles scan jobs. It is deliberately thin: POST /scans gets
// a durable entry point that survives restarts, and the ingest stage owns
// the first real status write
type Orchestrator struct {
	Scans domain.ScansPort
	Queue jobs.QueuePort
}

// NewOrchestrator constructs the scan job processor
func NewOrchestrator(scans domain.ScansPort, queue jobs.QueuePort) *Orchestrator {
	return &Orchestrator{Scans: scans, Queue: queue}
}

// Type implements worker domain.Processor
func (o *Orchestrator) Type() string { return domain.JobTypeScan }

// Process validates the scan still exists and hands the payload to ingest
func (o *Orchestrator) Process(ctx context.Context, job *jobs.Job) (map[string]any, error) {
	var p domain.ScanJobPayload
	if err := domain.DecodePayload(job.Payload, &p); err != nil {
		return nil, err
	}
	if _, err := o.Scans.Get(ctx, p.ScanID); err != nil {
		return nil, err
	}

	jobID, err := o.Queue.Enqueue(ctx, jobs.NewJob{Type: domain.JobTypeIngest, Payload: job.Payload})
	if err != nil {
		return nil, err
	}
	return map[string]any{"ingestJobId": jobID}, nil
}
