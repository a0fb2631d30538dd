// Package jobqueue provides retryable background job queues. Each named
// queue bounds its pending backlog and its worker concurrency, executes jobs
// under a per-job time limit and retries failures with exponential backoff.
package jobqueue

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by queue operations.
var (
	ErrNilRun       = errors.New("cannot enqueue job without a run function")
	ErrQueueStopped = errors.New("job queue has been stopped")
	ErrQueueFull    = errors.New("job queue is full")
	ErrUnknownQueue = errors.New("unknown queue name")
)

// RetryConfig holds the retry behavior of a job.
type RetryConfig struct {
	Enabled      bool          // Whether failed runs are retried
	MaxRetries   int           // Maximum number of retry attempts
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Cap on the delay between retries
	Multiplier   float64       // Backoff multiplier per retry
}

// DefaultRetryConfig is the retry policy jobs get unless a task overrides it.
func DefaultRetryConfig(enabled bool) RetryConfig {
	if !enabled {
		return RetryConfig{Enabled: false}
	}
	return RetryConfig{
		Enabled:      true,
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     2 * time.Minute,
		Multiplier:   2.0,
	}
}

// Run is the unit of work a job executes. The context carries the job's
// time limit.
type Run func(ctx context.Context) error

// JobStatus represents the current status of a job in a queue.
type JobStatus int

const (
	JobStatusPending JobStatus = iota
	JobStatusRunning
	JobStatusCompleted
	JobStatusFailed
	JobStatusRetrying
)

func (s JobStatus) String() string {
	switch s {
	case JobStatusPending:
		return "Pending"
	case JobStatusRunning:
		return "Running"
	case JobStatusCompleted:
		return "Completed"
	case JobStatusFailed:
		return "Failed"
	case JobStatusRetrying:
		return "Retrying"
	default:
		return "Unknown"
	}
}

// Job is a unit of work in a queue.
type Job struct {
	ID          string        // Unique ID assigned on enqueue
	Name        string        // Task name, used for per-task stats
	TimeLimit   time.Duration // Wall-clock budget for one attempt
	Run         Run           // The work to execute
	Attempts    int           // Attempts made so far
	MaxAttempts int           // Maximum attempts allowed
	CreatedAt   time.Time     // When the job was enqueued
	NextRetryAt time.Time     // When the job is next due
	Status      JobStatus     // Current status
	LastError   error         // Last error encountered
	Config      RetryConfig   // Retry policy for this job
}

// QueueStats tracks aggregate statistics for one queue.
type QueueStats struct {
	TotalJobs      int
	SuccessfulJobs int
	FailedJobs     int
	ArchivedJobs   int
	DroppedJobs    int
	RetryAttempts  int
	TaskStats      map[string]TaskStats // Keyed by task name
}

// TaskStats tracks statistics for one task name within a queue.
type TaskStats struct {
	Attempted  int
	Successful int
	Failed     int
	Retried    int
	Dropped    int
}

// StatsSnapshot is a point-in-time copy of a queue's statistics.
type StatsSnapshot struct {
	TotalJobs      int
	SuccessfulJobs int
	FailedJobs     int
	ArchivedJobs   int
	DroppedJobs    int
	RetryAttempts  int
	PendingJobs    int
	MaxJobs        int
	TaskStats      map[string]TaskStats
}
