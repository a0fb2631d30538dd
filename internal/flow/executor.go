package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soundscout/soundscout-go/internal/errors"
	"github.com/soundscout/soundscout-go/internal/jobqueue"
	"github.com/soundscout/soundscout-go/internal/logging"
)

// Executor interprets workflow descriptors against the task registry.
type Executor struct {
	registry *Registry
	queues   *jobqueue.Manager
	logger   *slog.Logger
}

// NewExecutor builds an executor over the registry and queues.
func NewExecutor(registry *Registry, queues *jobqueue.Manager) *Executor {
	return &Executor{
		registry: registry,
		queues:   queues,
		logger:   logging.ForService("flow"),
	}
}

// RunSync executes a descriptor in the calling goroutine and returns its
// merged output.
func (e *Executor) RunSync(ctx context.Context, node Node, input Payload) (Payload, error) {
	if input == nil {
		input = Payload{}
	}
	switch n := node.(type) {
	case Call:
		return e.runCall(ctx, n, input)
	case Chain:
		return e.runChain(ctx, n, input)
	case Group:
		return e.runGroup(ctx, n, input)
	default:
		return nil, errors.Newf("unknown descriptor node %T", node).
			Component("flow").
			Category(errors.CategoryJobQueue).
			Build()
	}
}

func (e *Executor) runCall(ctx context.Context, call Call, input Payload) (Payload, error) {
	task, err := e.registry.Get(call.Task)
	if err != nil {
		return nil, err
	}

	args := input.Merge(call.Args)
	runCtx := ctx
	if task.TimeLimit > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, task.TimeLimit)
		defer cancel()
	}

	out, err := task.Run(runCtx, args)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = Payload{}
	}
	if call.Tag != "" {
		out = Payload{call.Tag: out}
	}
	return input.Merge(out), nil
}

func (e *Executor) runChain(ctx context.Context, chain Chain, input Payload) (Payload, error) {
	current := input
	for _, node := range chain.Nodes {
		out, err := e.RunSync(ctx, node, current)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

// runGroup executes group members concurrently. The first error cancels the
// remaining members; outputs merge in member order so the result does not
// depend on completion timing.
func (e *Executor) runGroup(ctx context.Context, group Group, input Payload) (Payload, error) {
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputs := make([]Payload, len(group.Nodes))
	errs := make([]error, len(group.Nodes))

	var wg sync.WaitGroup
	for i, node := range group.Nodes {
		wg.Add(1)
		go func(i int, node Node) {
			defer wg.Done()
			out, err := e.RunSync(groupCtx, node, input)
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			outputs[i] = out
		}(i, node)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	merged := input
	for _, out := range outputs {
		merged = merged.Merge(out)
	}
	return merged, nil
}

// Dispatch enqueues a descriptor for asynchronous execution. The job lands
// on the queue of the descriptor's first task and gets the descriptor's
// accumulated time budget.
func (e *Executor) Dispatch(node Node, input Payload) error {
	name, queue := e.primaryTask(node)
	if queue == "" {
		queue = jobqueue.QueueDefault
	}
	timeLimit := e.timeBudget(node)

	_, err := e.queues.Enqueue(queue, name, timeLimit, func(ctx context.Context) error {
		_, runErr := e.RunSync(ctx, node, input)
		return runErr
	}, jobqueue.DefaultRetryConfig(true))
	if err != nil {
		return errors.New(err).
			Component("flow").
			Category(errors.CategoryJobQueue).
			Context("task", name).
			Context("queue", queue).
			Build()
	}
	return nil
}

// primaryTask finds the first call in a descriptor; its name labels the job
// and its queue hosts it.
func (e *Executor) primaryTask(node Node) (name, queue string) {
	switch n := node.(type) {
	case Call:
		if task, err := e.registry.Get(n.Task); err == nil {
			return task.Name, task.Queue
		}
		return n.Task, ""
	case Chain:
		for _, child := range n.Nodes {
			if name, queue = e.primaryTask(child); name != "" {
				return name, queue
			}
		}
	case Group:
		for _, child := range n.Nodes {
			if name, queue = e.primaryTask(child); name != "" {
				return name, queue
			}
		}
	}
	return "", ""
}

// timeBudget sums task limits along chains and takes the maximum across
// group members, so a dispatched descriptor's job limit covers its whole
// span.
func (e *Executor) timeBudget(node Node) time.Duration {
	switch n := node.(type) {
	case Call:
		if task, err := e.registry.Get(n.Task); err == nil && task.TimeLimit > 0 {
			return task.TimeLimit
		}
		return 10 * time.Second
	case Chain:
		var total time.Duration
		for _, child := range n.Nodes {
			total += e.timeBudget(child)
		}
		return total
	case Group:
		var max time.Duration
		for _, child := range n.Nodes {
			if budget := e.timeBudget(child); budget > max {
				max = budget
			}
		}
		return max
	default:
		return 10 * time.Second
	}
}
