package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soundscout/soundscout-go/internal/logging"
)

const (
	defaultTimeLimit   = 30 * time.Second
	maxArchivedJobs    = 100
	processingInterval = 250 * time.Millisecond
)

// Queue manages one named backlog of retryable jobs with a bounded worker
// pool.
type Queue struct {
	name          string
	jobs          []*Job
	archivedJobs  []*Job
	mu            sync.Mutex
	stats         QueueStats
	stopCh        chan struct{}
	runningJobs   sync.WaitGroup
	workerSlots   chan struct{}
	isRunning     bool
	maxJobs       int
	processCancel context.CancelFunc
	interval      time.Duration
	logger        *slog.Logger
}

// NewQueue creates a queue bounded to maxJobs pending entries and workers
// concurrent executions.
func NewQueue(name string, maxJobs, workers int) *Queue {
	if maxJobs < 1 {
		maxJobs = 1000
	}
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		name:        name,
		jobs:        make([]*Job, 0),
		stopCh:      make(chan struct{}),
		workerSlots: make(chan struct{}, workers),
		maxJobs:     maxJobs,
		interval:    processingInterval,
		logger:      logging.ForService("jobqueue").With("queue", name),
		stats:       QueueStats{TaskStats: make(map[string]TaskStats)},
	}
}

// SetProcessingInterval overrides the dispatch tick, used by tests.
func (q *Queue) SetProcessingInterval(interval time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.interval = interval
}

// Start begins dispatching jobs until the context is cancelled or Stop is
// called.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	q.stopCh = make(chan struct{})

	processCtx, cancel := context.WithCancel(ctx)
	q.processCancel = cancel
	q.mu.Unlock()

	go q.processJobs(processCtx)
}

// Stop halts dispatch and waits up to timeout for running jobs to finish.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.isRunning {
		q.mu.Unlock()
		return nil
	}
	q.isRunning = false
	if q.processCancel != nil {
		q.processCancel()
		q.processCancel = nil
	}
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.runningJobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue %s: timed out waiting for jobs after %v", q.name, timeout)
	}
}

// Enqueue adds a job to the backlog. A full backlog rejects the job rather
// than evicting older work.
func (q *Queue) Enqueue(name string, timeLimit time.Duration, run Run, config RetryConfig) (*Job, error) {
	if run == nil {
		return nil, ErrNilRun
	}
	if timeLimit <= 0 {
		timeLimit = defaultTimeLimit
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return nil, ErrQueueStopped
	}
	if len(q.jobs) >= q.maxJobs {
		q.stats.DroppedJobs++
		stats := q.stats.TaskStats[name]
		stats.Dropped++
		q.stats.TaskStats[name] = stats
		return nil, fmt.Errorf("%w: queue %s at capacity %d", ErrQueueFull, q.name, q.maxJobs)
	}

	job := &Job{
		ID:          uuid.New().String(),
		Name:        name,
		TimeLimit:   timeLimit,
		Run:         run,
		MaxAttempts: config.MaxRetries + 1,
		CreatedAt:   time.Now(),
		NextRetryAt: time.Now(),
		Status:      JobStatusPending,
		Config:      config,
	}
	q.jobs = append(q.jobs, job)
	q.stats.TotalJobs++
	stats := q.stats.TaskStats[name]
	stats.Attempted++
	q.stats.TaskStats[name] = stats

	return job, nil
}

func (q *Queue) processJobs(ctx context.Context) {
	q.mu.Lock()
	interval := q.interval
	q.mu.Unlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			q.archiveFinishedJobs()
			q.dispatchDueJobs(ctx)
		}
	}
}

// archiveFinishedJobs moves completed and failed jobs out of the active
// backlog, keeping a bounded history for stats inspection.
func (q *Queue) archiveFinishedJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	active := q.jobs[:0]
	for _, job := range q.jobs {
		if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
			q.archivedJobs = append(q.archivedJobs, job)
		} else {
			active = append(active, job)
		}
	}
	q.jobs = active

	if len(q.archivedJobs) > maxArchivedJobs {
		q.archivedJobs = q.archivedJobs[len(q.archivedJobs)-maxArchivedJobs:]
	}
	q.stats.ArchivedJobs = len(q.archivedJobs)
}

func (q *Queue) dispatchDueJobs(ctx context.Context) {
	q.mu.Lock()
	now := time.Now()
	var due []*Job
	for _, job := range q.jobs {
		if (job.Status == JobStatusPending || job.Status == JobStatusRetrying) && !job.NextRetryAt.After(now) {
			due = append(due, job)
			job.Status = JobStatusRunning
		}
	}
	q.mu.Unlock()

	for _, job := range due {
		select {
		case q.workerSlots <- struct{}{}:
		case <-ctx.Done():
			q.mu.Lock()
			for _, j := range due {
				if j.Status == JobStatusRunning {
					if j.Attempts > 0 {
						j.Status = JobStatusRetrying
					} else {
						j.Status = JobStatusPending
					}
				}
			}
			q.mu.Unlock()
			return
		}

		q.runningJobs.Add(1)
		go func(j *Job) {
			defer q.runningJobs.Done()
			defer func() { <-q.workerSlots }()
			q.executeJob(ctx, j)
		}(job)
	}
}

// calculateBackoffDelay applies exponential backoff with a small jitter so
// jobs retried together fan back out.
func calculateBackoffDelay(config RetryConfig, attemptNum int) time.Duration {
	backoff := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attemptNum))
	jitterFactor := 0.9 + 0.2*float64(time.Now().Nanosecond())/1e9
	backoff *= jitterFactor
	if backoff > float64(config.MaxDelay) {
		backoff = float64(config.MaxDelay)
	}
	return time.Duration(backoff)
}

func (q *Queue) executeJob(ctx context.Context, job *Job) {
	job.Attempts++

	q.mu.Lock()
	q.stats.RetryAttempts++
	stats := q.stats.TaskStats[job.Name]
	stats.Retried++
	q.stats.TaskStats[job.Name] = stats
	q.mu.Unlock()

	if job.Attempts > 1 {
		q.logger.Info("retrying job",
			"job_id", job.ID, "task", job.Name,
			"attempt", job.Attempts, "max_attempts", job.MaxAttempts)
	}

	execCtx, cancel := context.WithTimeout(ctx, job.TimeLimit)
	defer cancel()

	// The result travels over a buffered channel: a run that outlives the
	// time limit completes its send into the buffer and exits instead of
	// racing the timeout branch.
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- job.Run(execCtx)
	}()

	var err error
	select {
	case err = <-done:
	case <-execCtx.Done():
		if execCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("job exceeded time limit %v: %w", job.TimeLimit, execCtx.Err())
		} else {
			err = fmt.Errorf("job cancelled: %w", execCtx.Err())
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if err != nil {
		job.LastError = err
		if !job.Config.Enabled || job.Attempts >= job.MaxAttempts {
			job.Status = JobStatusFailed
			q.stats.FailedJobs++
			stats := q.stats.TaskStats[job.Name]
			stats.Failed++
			q.stats.TaskStats[job.Name] = stats
			q.logger.Error("job permanently failed",
				"job_id", job.ID, "task", job.Name,
				"attempts", job.Attempts, "error", err)
			return
		}
		job.Status = JobStatusRetrying
		delay := calculateBackoffDelay(job.Config, job.Attempts)
		job.NextRetryAt = time.Now().Add(delay)
		q.logger.Warn("job failed, will retry",
			"job_id", job.ID, "task", job.Name,
			"retry_in", delay, "attempt", job.Attempts, "error", err)
		return
	}

	job.Status = JobStatusCompleted
	q.stats.SuccessfulJobs++
	stats = q.stats.TaskStats[job.Name]
	stats.Successful++
	q.stats.TaskStats[job.Name] = stats

	if job.Attempts > 1 {
		q.logger.Info("job succeeded after retries",
			"job_id", job.ID, "task", job.Name, "attempts", job.Attempts)
	}
}

// Stats returns a snapshot of the queue's statistics.
func (q *Queue) Stats() StatsSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	taskStats := make(map[string]TaskStats, len(q.stats.TaskStats))
	for k, v := range q.stats.TaskStats {
		taskStats[k] = v
	}
	pending := 0
	for _, job := range q.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRetrying {
			pending++
		}
	}

	return StatsSnapshot{
		TotalJobs:      q.stats.TotalJobs,
		SuccessfulJobs: q.stats.SuccessfulJobs,
		FailedJobs:     q.stats.FailedJobs,
		ArchivedJobs:   q.stats.ArchivedJobs,
		DroppedJobs:    q.stats.DroppedJobs,
		RetryAttempts:  q.stats.RetryAttempts,
		PendingJobs:    pending,
		MaxJobs:        q.maxJobs,
		TaskStats:      taskStats,
	}
}

// ProcessImmediately runs one dispatch cycle without waiting for the
// ticker, used by tests.
func (q *Queue) ProcessImmediately(ctx context.Context) {
	q.archiveFinishedJobs()
	q.dispatchDueJobs(ctx)
}

// ActiveJobs returns how many jobs are waiting, running or awaiting retry.
func (q *Queue) ActiveJobs() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	active := 0
	for _, job := range q.jobs {
		switch job.Status {
		case JobStatusPending, JobStatusRunning, JobStatusRetrying:
			active++
		}
	}
	return active
}

// PendingJobs returns the jobs currently waiting to run.
func (q *Queue) PendingJobs() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status == JobStatusPending {
			pending = append(pending, job)
		}
	}
	return pending
}
