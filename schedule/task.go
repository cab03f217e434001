// Package schedule runs recurring background jobs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrInvalidJob = errors.New("schedule: invalid job")

const DefaultTick = time.Second

// Task is one unit of work within a job.
type Task func(ctx context.Context) error

type Scheduler struct {
	mu     sync.RWMutex
	jobs   []*Job
	tick   time.Duration
	logger *slog.Logger
}

type Option func(*Scheduler)

// WithTick sets how often due jobs are checked.
func WithTick(tick time.Duration) Option {
	return func(scheduler *Scheduler) {
		scheduler.tick = tick
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(scheduler *Scheduler) {
		scheduler.logger = logger
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	scheduler := &Scheduler{
		jobs:   make([]*Job, 0),
		tick:   DefaultTick,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(scheduler)
	}

	return scheduler
}

func (scheduler *Scheduler) AddJob(job *Job) error {
	if job.interval <= 0 {
		return fmt.Errorf("%w: %s: interval must be greater than 0", ErrInvalidJob, job.name)
	}
	if len(job.tasks) == 0 {
		return fmt.Errorf("%w: %s: no tasks", ErrInvalidJob, job.name)
	}

	job.mu.Lock()
	if job.nextExecuteAt.IsZero() {
		job.nextExecuteAt = time.Now().Add(job.interval)
	}
	job.mu.Unlock()

	scheduler.mu.Lock()
	scheduler.jobs = append(scheduler.jobs, job)
	scheduler.mu.Unlock()

	return nil
}

// Jobs returns the registered jobs.
func (scheduler *Scheduler) Jobs() []*Job {
	scheduler.mu.RLock()
	defer scheduler.mu.RUnlock()
	return append([]*Job(nil), scheduler.jobs...)
}

type Job struct {
	mu                sync.Mutex
	name              string
	tasks             []Task
	interval          time.Duration
	timeout           time.Duration
	nextExecuteAt     time.Time
	previousExecuteAt time.Time
	running           bool
	runs              int
}

func NewJob(name string) *Job {
	return &Job{name: name}
}

func (job *Job) WithTasks(tasks ...Task) *Job {
	job.tasks = append(job.tasks, tasks...)
	return job
}

func (job *Job) WithInterval(interval time.Duration) *Job {
	job.interval = interval
	return job
}

func (job *Job) WithExecuteAt(executeAt time.Time) *Job {
	job.nextExecuteAt = executeAt
	return job
}

// WithTimeout bounds every task of the job.
func (job *Job) WithTimeout(timeout time.Duration) *Job {
	job.timeout = timeout
	return job
}

func (job *Job) Name() string {
	return job.name
}

// Runs counts completed executions.
func (job *Job) Runs() int {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.runs
}

func (job *Job) PreviousExecuteAt() time.Time {
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.previousExecuteAt
}

// Run checks for due jobs every tick until ctx is done. A job never
// overlaps with itself.
func (scheduler *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(scheduler.tick)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case now := <-ticker.C:
			for _, job := range scheduler.Jobs() {
				if !job.claim(now) {
					continue
				}

				wg.Add(1)
				go func() {
					defer wg.Done()
					scheduler.execute(ctx, job, now)
				}()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (job *Job) claim(now time.Time) bool {
	job.mu.Lock()
	defer job.mu.Unlock()

	if job.running || job.nextExecuteAt.After(now) {
		return false
	}

	job.running = true
	return true
}

func (job *Job) complete(now time.Time) {
	job.mu.Lock()
	defer job.mu.Unlock()

	job.running = false
	job.runs++
	job.previousExecuteAt = now
	job.nextExecuteAt = now.Add(job.interval)
}

func (scheduler *Scheduler) execute(ctx context.Context, job *Job, now time.Time) {
	defer job.complete(now)

	for _, task := range job.tasks {
		if err := scheduler.executeTask(ctx, job, task); err != nil {
			scheduler.logger.WarnContext(ctx, "scheduled task failed", "job", job.name, "error", err)
		}
	}
}

func (scheduler *Scheduler) executeTask(ctx context.Context, job *Job, task Task) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("task panic: %v", recovered)
		}
	}()

	if job.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.timeout)
		defer cancel()
	}

	return task(ctx)
}
