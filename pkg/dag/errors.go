package dag

import "fmt"

// DuplicateTaskError is returned when a task name is registered twice.
type DuplicateTaskError struct {
	Name string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task name: %s", e.Name)
}

// UnknownDependencyError is returned at schedule time when a task declares a
// dependency that was never added to the graph.
type UnknownDependencyError struct {
	Task       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task '%s' depends on unknown task '%s'", e.Task, e.Dependency)
}

// CycleError is returned at schedule time when the dependency relation is
// not acyclic. It does not enumerate the cycle members.
type CycleError struct {
	Graph string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in graph '%s'", e.Graph)
}
