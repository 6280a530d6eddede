// Package dag implements a small dependency-graph task executor: graphs of
// named tasks are ordered topologically (Kahn's algorithm) and executed
// sequentially, with upstream results merged into each task's context and
// upstream failures converted into downstream skips.
package dag

import (
	"io"
	"log/slog"
)

// Graph is a directed acyclic graph of TaskNodes.
//
// A Graph is built once, run once: node status is mutated in place during a
// run, so it is not safe for concurrent runs. Callers needing simultaneous
// runs must each build an independent graph.
type Graph struct {
	name   string
	tasks  map[string]*TaskNode
	order  []string // insertion order, keeps scheduling deterministic
	logger *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets a structured logger for run progress. Defaults to a no-op.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// New creates an empty graph with the given name.
func New(name string, opts ...Option) *Graph {
	g := &Graph{
		name:  name,
		tasks: make(map[string]*TaskNode),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return g
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// Add registers a named task. Dependencies may name tasks that have not been
// added yet; existence is checked when the graph is scheduled, not here.
// Returns a DuplicateTaskError if the name is already taken.
func (g *Graph) Add(name string, fn TaskFunc, dependsOn ...string) error {
	if _, exists := g.tasks[name]; exists {
		return &DuplicateTaskError{Name: name}
	}
	g.tasks[name] = &TaskNode{
		Name:      name,
		Execute:   fn,
		DependsOn: dependsOn,
		Status:    StatusPending,
		Result:    Result{},
	}
	g.order = append(g.order, name)
	return nil
}

// Task returns the node registered under name, or nil.
func (g *Graph) Task(name string) *TaskNode {
	return g.tasks[name]
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int {
	return len(g.tasks)
}
