// Package flow defines the workflow layer: tasks registered by name,
// composable chain/group descriptors and an executor that runs descriptors
// either synchronously or fire-and-forget on the job queues. Descriptors are
// plain values, so a workflow's shape can be inspected and tested without
// running anything.
package flow

import (
	"context"
	"sort"
	"time"

	"github.com/antonholmquist/jason"

	"github.com/soundscout/soundscout-go/internal/errors"
)

// Payload carries named arguments and results between tasks. Values are
// in-process Go values; chain steps see the merged output of everything
// before them.
type Payload map[string]any

// Clone returns a shallow copy.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge overlays other onto a copy of p; keys in other win.
func (p Payload) Merge(other Payload) Payload {
	out := p.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// String returns the string under key, or empty.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Bool returns the bool under key, or fallback when absent.
func (p Payload) Bool(key string, fallback bool) bool {
	if v, ok := p[key].(bool); ok {
		return v
	}
	return fallback
}

// Int returns the integer under key, tolerating the numeric types
// configuration decoding produces, or fallback when absent.
func (p Payload) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// Strings returns the string slice under key, or nil.
func (p Payload) Strings(key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Object returns the JSON object under key, or nil.
func (p Payload) Object(key string) *jason.Object {
	obj, _ := p[key].(*jason.Object)
	return obj
}

// Node is one element of a workflow descriptor.
type Node interface {
	isNode()
}

// Call invokes one registered task. Args overlay the incoming payload. When
// Tag is set the task's output is nested under it instead of merged flat,
// which keeps group members from clobbering each other.
type Call struct {
	Task string
	Args Payload
	Tag  string
}

// Chain runs its nodes in order, feeding each the merged output of its
// predecessors.
type Chain struct {
	Nodes []Node
}

// Group runs its nodes concurrently and merges their outputs. The merged
// result is order-independent as long as members write disjoint keys or use
// tags.
type Group struct {
	Nodes []Node
}

func (Call) isNode()  {}
func (Chain) isNode() {}
func (Group) isNode() {}

// NewChain builds a chain from the given nodes.
func NewChain(nodes ...Node) Chain { return Chain{Nodes: nodes} }

// NewGroup builds a group from the given nodes.
func NewGroup(nodes ...Node) Group { return Group{Nodes: nodes} }

// Task is one registered unit of work.
type Task struct {
	Name      string
	Queue     string
	TimeLimit time.Duration
	Run       func(ctx context.Context, args Payload) (Payload, error)
}

// Registry holds the task table built at startup.
type Registry struct {
	tasks map[string]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a task. Registering the same name twice is a configuration
// error caught at startup.
func (r *Registry) Register(task *Task) error {
	if task == nil || task.Name == "" || task.Run == nil {
		return errors.Newf("task registration requires a name and a run function").
			Component("flow").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if _, exists := r.tasks[task.Name]; exists {
		return errors.Newf("task %q registered twice", task.Name).
			Component("flow").
			Category(errors.CategoryConfiguration).
			Build()
	}
	r.tasks[task.Name] = task
	return nil
}

// Get looks a task up by name.
func (r *Registry) Get(name string) (*Task, error) {
	task, ok := r.tasks[name]
	if !ok {
		return nil, errors.Newf("unknown task %q", name).
			Component("flow").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return task, nil
}

// Names lists the registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Chunk splits items into batches of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	var chunks [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
