package dag

// TaskDefinition is the build-time shape of a single task.
type TaskDefinition struct {
	DependsOn []string `json:"depends_on"`
}

// Definition is a structural snapshot of a graph: its name and each task's
// declared dependencies. It reflects build-time data only, never run state,
// so it is identical before and after a run.
type Definition struct {
	Name  string                    `json:"name"`
	Tasks map[string]TaskDefinition `json:"tasks"`
}

// Definition returns the graph's structural snapshot, suitable for audit
// storage alongside run records.
func (g *Graph) Definition() Definition {
	def := Definition{
		Name:  g.name,
		Tasks: make(map[string]TaskDefinition, len(g.tasks)),
	}
	for name, task := range g.tasks {
		deps := make([]string, len(task.DependsOn))
		copy(deps, task.DependsOn)
		def.Tasks[name] = TaskDefinition{DependsOn: deps}
	}
	return def
}
