package dag

// Schedule computes a topological execution order using Kahn's algorithm.
//
// The ready queue is FIFO and is seeded in task insertion order, so an
// unmodified graph always schedules identically. Every declared dependency
// must resolve to a registered task (UnknownDependencyError otherwise); if
// the emitted order is shorter than the task count, the remainder forms at
// least one cycle (CycleError).
func (g *Graph) Schedule() ([]string, error) {
	inDegree := make(map[string]int, len(g.tasks))
	for _, name := range g.order {
		inDegree[name] = 0
	}
	for _, name := range g.order {
		task := g.tasks[name]
		for _, dep := range task.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, &UnknownDependencyError{Task: task.Name, Dependency: dep}
			}
			inDegree[task.Name]++
		}
	}

	queue := make([]string, 0, len(g.tasks))
	for _, name := range g.order {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(g.tasks))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, name := range g.order {
			for _, dep := range g.tasks[name].DependsOn {
				if dep != current {
					continue
				}
				inDegree[name]--
				if inDegree[name] == 0 {
					queue = append(queue, name)
				}
			}
		}
	}

	if len(order) != len(g.tasks) {
		return nil, &CycleError{Graph: g.name}
	}
	return order, nil
}
