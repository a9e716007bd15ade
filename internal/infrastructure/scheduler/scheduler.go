package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobExecutor runs a job attempt. Retry decisions live in the executor:
// it schedules a fresh job for the next attempt rather than asking the
// scheduler to requeue this one.
type JobExecutor interface {
	Execute(ctx context.Context, job *Job) error
}

// Config holds scheduler configuration
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Workers:    5,
		QueueSize:  100,
		JobTimeout: 30 * time.Second,
	}
}

// pending tracks a delayed job waiting for its RunAt
type pending struct {
	job   *Job
	timer *time.Timer
}

// Scheduler runs jobs on a bounded worker pool after a per-job delay.
// Scheduling is one-shot: a timer fires once and hands the job to the
// pool; there is no polling. Jobs coalesce on Job.Key, so scheduling a
// new job for a key that already has one waiting supersedes the old one.
type Scheduler struct {
	config   Config
	executor JobExecutor
	logger   *zap.Logger

	jobs    chan *Job
	waiting map[string]*pending
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, executor JobExecutor, logger *zap.Logger) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Scheduler{
		config:   config,
		executor: executor,
		logger:   logger,
		jobs:     make(chan *Job, config.QueueSize),
		waiting:  make(map[string]*pending),
	}
}

// Start starts the worker pool
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Job executor started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler. Jobs still waiting on their delay
// are dropped; an interrupted attempt will be recovered by a human retry.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false

	for key, p := range s.waiting {
		p.timer.Stop()
		delete(s.waiting, key)
	}
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Job executor stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Job executor stop timed out")
		return ctx.Err()
	}
}

// Schedule arranges for the job to run at its RunAt time. If another job
// with the same key is still waiting, the new job replaces it, keeping at
// most one in-flight attempt per order per stage.
func (s *Scheduler) Schedule(job *Job) error {
	if !job.Kind.IsValid() {
		return ErrInvalidJobKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrSchedulerNotRunning
	}

	if prev, ok := s.waiting[job.Key]; ok {
		prev.timer.Stop()
		s.logger.Debug("Superseding waiting job",
			zap.String("key", job.Key),
			zap.String("old_job_id", prev.job.ID.String()),
			zap.String("new_job_id", job.ID.String()),
		)
	}

	delay := time.Until(job.RunAt)
	if delay < 0 {
		delay = 0
	}

	p := &pending{job: job}
	p.timer = time.AfterFunc(delay, func() {
		s.fire(job)
	})
	s.waiting[job.Key] = p

	s.logger.Debug("Job scheduled",
		zap.String("job_id", job.ID.String()),
		zap.String("key", job.Key),
		zap.Int("retry_count", job.RetryCount),
		zap.Duration("delay", delay),
	)
	return nil
}

// fire moves a job whose delay has elapsed onto the worker queue
func (s *Scheduler) fire(job *Job) {
	s.mu.Lock()
	current, ok := s.waiting[job.Key]
	if !ok || current.job.ID != job.ID {
		// superseded while waiting
		s.mu.Unlock()
		return
	}
	delete(s.waiting, job.Key)
	running := s.running
	s.mu.Unlock()

	if !running {
		return
	}

	select {
	case s.jobs <- job:
	default:
		s.logger.Error("Job queue full, dropping job",
			zap.String("job_id", job.ID.String()),
			zap.String("key", job.Key),
		)
	}
}

// WaitingCount returns the number of jobs still waiting on their delay
// (for testing/monitoring)
func (s *Scheduler) WaitingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waiting)
}

// worker processes jobs from the queue
func (s *Scheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Worker stopping", zap.Int("worker_id", workerID))
			return
		case job := <-s.jobs:
			s.processJob(ctx, job, workerID)
		}
	}
}

// processJob executes a single job attempt
func (s *Scheduler) processJob(ctx context.Context, job *Job, workerID int) {
	job.Start()
	s.logger.Info("Processing job",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("order_id", job.OrderID.String()),
		zap.Int("retry_count", job.RetryCount),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	if err := s.executor.Execute(jobCtx, job); err != nil {
		job.Fail(err.Error())
		s.logger.Error("Job failed",
			zap.Int("worker_id", workerID),
			zap.String("job_id", job.ID.String()),
			zap.String("kind", string(job.Kind)),
			zap.String("order_id", job.OrderID.String()),
			zap.Error(err),
		)
		return
	}

	job.Complete()
	s.logger.Info("Job completed",
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("kind", string(job.Kind)),
		zap.String("order_id", job.OrderID.String()),
	)
}
