package jobqueue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergeguard/internal/logfields"
	"github.com/simplesurance/mergeguard/internal/routines"
)

const loggerName = "scheduler"

const DefaultWorkers = 4

// ProcessFunc processes a single job.
type ProcessFunc func(context.Context, Job) error

// Scheduler drains a Queue periodically and processes the jobs
// concurrently.
type Scheduler struct {
	queue    *Queue
	process  ProcessFunc
	interval time.Duration
	workers  int
	logger   *zap.Logger

	stopOnce sync.Once
	shutdown chan struct{}
	wg       sync.WaitGroup
}

type option func(*Scheduler)

// WithWorkers sets the max. number of jobs that are processed in parallel.
func WithWorkers(n int) option {
	return func(s *Scheduler) {
		s.workers = n
	}
}

func NewScheduler(queue *Queue, interval time.Duration, process ProcessFunc, opts ...option) *Scheduler {
	s := Scheduler{
		queue:    queue,
		process:  process,
		interval: interval,
		workers:  DefaultWorkers,
		logger:   zap.L().Named(loggerName),
		shutdown: make(chan struct{}),
	}

	for _, o := range opts {
		o(&s)
	}

	return &s
}

// Start starts the periodic processing of the queue in a goroutine.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()

	s.logger.Info(
		"scheduler started",
		logfields.Event("scheduler_started"),
		zap.Duration("interval", s.interval),
		zap.Int("workers", s.workers),
	)
}

// Stop stops the periodic processing. It waits until a running drain
// finished.
// Jobs that are still queued are not processed.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.shutdown)
	})

	s.wg.Wait()

	s.logger.Info(
		"scheduler stopped",
		logfields.Event("scheduler_stopped"),
		zap.Int("unprocessed_jobs", s.queue.Len()),
	)
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return

		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce drains the queue and processes all jobs. It returns when all
// jobs were processed.
// A failed job does not prevent other jobs from being processed.
func (s *Scheduler) RunOnce(ctx context.Context) {
	jobs := s.queue.Drain()
	if len(jobs) == 0 {
		return
	}

	start := time.Now()
	pool := routines.NewPool(min(s.workers, len(jobs)))

	s.logger.Debug(
		"processing queued jobs",
		logfields.Event("queue_drained"),
		zap.Int("jobs", len(jobs)),
	)

	for _, job := range jobs {
		pool.Queue(func() {
			s.runJob(ctx, job)
		})
	}

	pool.Wait()

	metrics.DrainedAdd(len(jobs))
	metrics.DrainDurationObserve(time.Since(start).Seconds())
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	logger := s.logger.With(job.LogFields()...)

	defer func() {
		if r := recover(); r != nil {
			metrics.FailedInc()
			logger.Error(
				"processing job panicked",
				logfields.Event("job_processing_panicked"),
				zap.Any("panic", r),
			)
		}
	}()

	if err := s.process(ctx, job); err != nil {
		metrics.FailedInc()
		logger.Error(
			"processing job failed",
			logfields.Event("job_processing_failed"),
			zap.Error(err),
		)
		return
	}

	logger.Debug("job processed", logfields.Event("job_processed"))
}
