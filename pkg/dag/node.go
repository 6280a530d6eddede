package dag

// TaskStatus describes where a task is in its lifecycle.
// Transitions are one-directional: pending -> running -> (success|failed),
// or pending -> skipped. A visited node never returns to pending.
type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
	StatusSkipped TaskStatus = "skipped"
)

// Context is the accumulating key-value state passed into each task.
// It starts as the caller's initial context and grows with upstream results.
type Context map[string]any

// Result is the partial context a task contributes on success.
type Result map[string]any

// TaskFunc is the unit of work a node executes. It receives the merged
// upstream context and returns its result, or an error. Errors are contained
// by the executor: they fail the node, not the run.
type TaskFunc func(ctx Context) (Result, error)

// TaskNode is a single named unit of work inside a Graph.
// Run-time fields (Status, Result, Err, DurationMS) are mutated in place by
// the executor; a fresh run needs a freshly built graph.
type TaskNode struct {
	Name       string
	Execute    TaskFunc
	DependsOn  []string
	Status     TaskStatus
	Result     Result
	Err        string
	DurationMS float64
}
