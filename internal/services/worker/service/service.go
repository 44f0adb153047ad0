// Package service implements the single threaded worker loop
package service

import (
	"context"
	"sync"
	"time"

	perr "dupehound/internal/platform/errors"
	"dupehound/internal/platform/logger"
	"dupehound/internal/platform/metrics"
	jobs "dupehound/internal/services/jobs/domain"
	"dupehound/internal/services/worker/domain"
)

// Config for the worker loop
type Config struct {
	// PollInterval between ticks; defaults to 2s
	PollInterval time.Duration

	// MaxBackoff caps the retry delay; defaults to 1h
	MaxBackoff time.Duration
}

// Service drives the queue: one job per tick, single goroutine.
// Processors may fan out internally
type Service struct {
	queue   jobs.QueuePort
	cfg     Config
	log     logger.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	processors map[string]domain.Processor
	onFailed   domain.FailedCallback

	cancel context.CancelFunc
	done   chan struct{}

	// now is a clock seam for tests
	now func() time.Time
}

// New constructs a worker loop over the given queue
func New(queue jobs.QueuePort, log logger.Logger, m *metrics.Metrics, cfg Config) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	return &Service{
		queue:      queue,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		processors: make(map[string]domain.Processor),
		now:        time.Now,
	}
}

// Register implements domain.RunnerPort
func (s *Service) Register(p domain.Processor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processors[p.Type()] = p
}

// SetOnJobFailed implements domain.RunnerPort
func (s *Service) SetOnJobFailed(cb domain.FailedCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onFailed = cb
}

// Run implements domain.RunnerPort; it blocks until ctx is done
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				evt := s.log.Error()
				if perr.Retryable(err) {
					// transient sqlite contention, the next tick retries
					evt = s.log.Warn()
				}
				evt.Err(err).Msg("worker tick failed")
			}
		}
	}
}

// Start implements domain.RunnerPort
func (s *Service) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.Run(runCtx)
	}()
}

// Stop implements domain.RunnerPort
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Tick claims and handles at most one job. It reports whether a job was
// processed so tests and drain loops can pump the queue synchronously
func (s *Service) Tick(ctx context.Context) (bool, error) {
	job, err := s.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := s.log.With().Str("job_id", job.ID).Str("job_type", job.Type).Int("attempts", job.Attempts).Logger()

	s.mu.Lock()
	proc := s.processors[job.Type]
	cb := s.onFailed
	s.mu.Unlock()

	if proc == nil {
		log.Error().Msg("no processor registered; failing job")
		err := newUnknownTypeError(job.Type)
		if ferr := s.queue.Fail(ctx, job.ID, err.Error()); ferr != nil {
			return true, ferr
		}
		s.countJob(job.Type, "failed")
		if cb != nil {
			cb(ctx, job, err)
		}
		return true, nil
	}

	result, procErr := proc.Process(ctx, job)
	if procErr == nil {
		if err := s.queue.Complete(ctx, job.ID, result); err != nil {
			return true, err
		}
		s.countJob(job.Type, "done")
		log.Info().Msg("job done")
		return true, nil
	}

	if job.Attempts < job.MaxRetries {
		delay := retryDelay(procErr.Error(), job.Attempts, s.cfg.MaxBackoff)
		runAfter := s.now().Add(delay)
		log.Warn().Err(procErr).Dur("delay", delay).Time("run_after", runAfter).Msg("job paused for retry")
		if err := s.queue.Pause(ctx, job.ID, runAfter); err != nil {
			return true, err
		}
		s.countJob(job.Type, "retried")
		return true, nil
	}

	log.Error().Err(procErr).Msg("job failed permanently")
	if err := s.queue.Fail(ctx, job.ID, procErr.Error()); err != nil {
		return true, err
	}
	s.countJob(job.Type, "failed")
	if cb != nil {
		cb(ctx, job, procErr)
	}
	return true, nil
}

func (s *Service) countJob(jobType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Job(jobType, outcome)
}

type unknownTypeError struct{ jobType string }

func newUnknownTypeError(t string) error { return unknownTypeError{jobType: t} }

func (e unknownTypeError) Error() string { return "no processor for job type " + e.jobType }
