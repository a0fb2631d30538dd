package jobqueue

import (
	"context"
	"time"

	"github.com/soundscout/soundscout-go/internal/conf"
)

// Manager owns the named queues the task layer dispatches onto. Work is
// partitioned so slow batch jobs cannot starve quick lookups: the default
// queue takes ingestion flows, the short queue per-entity fetches and the
// distance queue scoring work.
type Manager struct {
	queues map[string]*Queue
}

// Queue names used across the task layer.
const (
	QueueDefault  = "default"
	QueueShort    = "short"
	QueueDistance = "distance"
)

// NewManager builds the three standard queues from settings.
func NewManager(settings *conf.QueuesSettings) *Manager {
	return &Manager{
		queues: map[string]*Queue{
			QueueDefault:  NewQueue(QueueDefault, settings.Default.MaxJobs, settings.Default.Workers),
			QueueShort:    NewQueue(QueueShort, settings.Short.MaxJobs, settings.Short.Workers),
			QueueDistance: NewQueue(QueueDistance, settings.Distance.MaxJobs, settings.Distance.Workers),
		},
	}
}

// Start begins dispatch on every queue.
func (m *Manager) Start(ctx context.Context) {
	for _, q := range m.queues {
		q.Start(ctx)
	}
}

// Stop drains every queue, giving each up to timeout.
func (m *Manager) Stop(timeout time.Duration) error {
	var firstErr error
	for _, q := range m.queues {
		if err := q.Stop(timeout); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Enqueue places a job on the named queue.
func (m *Manager) Enqueue(queueName, taskName string, timeLimit time.Duration, run Run, config RetryConfig) (*Job, error) {
	q, ok := m.queues[queueName]
	if !ok {
		return nil, ErrUnknownQueue
	}
	return q.Enqueue(taskName, timeLimit, run, config)
}

// ActiveJobs returns the total waiting, running and retrying job count
// across all queues. One-shot runs poll this to detect when dispatched work
// has drained.
func (m *Manager) ActiveJobs() int {
	total := 0
	for _, q := range m.queues {
		total += q.ActiveJobs()
	}
	return total
}

// Stats returns per-queue snapshots keyed by queue name.
func (m *Manager) Stats() map[string]StatsSnapshot {
	stats := make(map[string]StatsSnapshot, len(m.queues))
	for name, q := range m.queues {
		stats[name] = q.Stats()
	}
	return stats
}
