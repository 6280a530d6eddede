package dag

import (
	"math"
	"time"
)

// RunStatus is the overall outcome of one graph execution.
type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// TaskSummary is the per-task record inside a Summary. Duration and Err are
// nil for skipped tasks; Err is nil on success.
type TaskSummary struct {
	Status     TaskStatus `json:"status"`
	DurationMS *float64   `json:"duration_ms,omitempty"`
	Err        *string    `json:"error,omitempty"`
}

// Summary is the structured report of one full graph execution. It is a
// snapshot: it holds no live references back into the graph.
type Summary struct {
	Pipeline string                 `json:"pipeline"`
	Status   RunStatus              `json:"status"`
	Tasks    map[string]TaskSummary `json:"tasks"`
}

// Run executes every task exactly once, sequentially, in the order produced
// by Schedule, and returns a Summary.
//
// Task errors are contained: a failing task is recorded as failed and its
// dependents (direct and, because skips are contagious, transitive) are
// skipped without being invoked. Run itself only fails for schedule-time
// problems (unknown dependency, cycle), before any task executes.
//
// Each task receives the running context: the caller's initial context plus
// the results of its dependencies, merged in declared order with
// later-merged keys winning on collision.
func (g *Graph) Run(initial Context) (*Summary, error) {
	order, err := g.Schedule()
	if err != nil {
		return nil, err
	}

	context := Context{}
	for k, v := range initial {
		context[k] = v
	}

	summary := &Summary{
		Pipeline: g.name,
		Tasks:    make(map[string]TaskSummary, len(g.tasks)),
	}

	g.logger.Info("starting graph run", "graph", g.name, "tasks", len(g.tasks))

	for _, name := range order {
		task := g.tasks[name]

		// An upstream failure poisons the whole downstream cone. Skipped
		// counts as contagious so the skip cascades through intermediates.
		blocked := false
		for _, dep := range task.DependsOn {
			if s := g.tasks[dep].Status; s == StatusFailed || s == StatusSkipped {
				blocked = true
				break
			}
		}
		if blocked {
			task.Status = StatusSkipped
			g.logger.Warn("skipping task, upstream dependency failed", "task", name)
			summary.Tasks[name] = TaskSummary{Status: StatusSkipped}
			continue
		}

		for _, dep := range task.DependsOn {
			for k, v := range g.tasks[dep].Result {
				context[k] = v
			}
		}

		task.Status = StatusRunning
		g.logger.Info("running task", "task", name)
		start := time.Now()
		result, err := task.Execute(context)
		task.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)

		if err != nil {
			task.Status = StatusFailed
			task.Err = err.Error()
			g.logger.Error("task failed", "task", name, "error", err)
		} else {
			if result == nil {
				result = Result{}
			}
			task.Result = result
			task.Status = StatusSuccess
		}

		entry := TaskSummary{Status: task.Status}
		rounded := math.Round(task.DurationMS*100) / 100
		entry.DurationMS = &rounded
		if task.Err != "" {
			errMsg := task.Err
			entry.Err = &errMsg
		}
		summary.Tasks[name] = entry
	}

	summary.Status = RunCompleted
	for _, task := range g.tasks {
		if task.Status != StatusSuccess {
			summary.Status = RunFailed
			break
		}
	}
	g.logger.Info("graph run finished", "graph", g.name, "status", summary.Status)

	return summary, nil
}
