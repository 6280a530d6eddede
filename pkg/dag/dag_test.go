package dag_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
)

func noop(ctx dag.Context) (dag.Result, error) {
	return nil, nil
}

func TestGraph_Add(t *testing.T) {
	t.Run("Duplicate Name Rejected", func(t *testing.T) {
		g := dag.New("dupes")
		require.NoError(t, g.Add("extract", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"marker": "original"}, nil
		}))

		err := g.Add("extract", noop, "something")
		var dupErr *dag.DuplicateTaskError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, "extract", dupErr.Name)

		// The original definition is untouched.
		assert.Empty(t, g.Task("extract").DependsOn)
		assert.Equal(t, 1, g.Len())
	})

	t.Run("Forward Dependency Declaration Allowed", func(t *testing.T) {
		g := dag.New("forward")
		require.NoError(t, g.Add("late", noop, "early"))
		require.NoError(t, g.Add("early", noop))

		_, err := g.Schedule()
		assert.NoError(t, err)
	})
}

func TestGraph_Schedule(t *testing.T) {
	t.Run("Order Respects Dependencies", func(t *testing.T) {
		g := dag.New("order")
		require.NoError(t, g.Add("d", noop, "b", "c"))
		require.NoError(t, g.Add("b", noop, "a"))
		require.NoError(t, g.Add("c", noop, "a"))
		require.NoError(t, g.Add("a", noop))

		order, err := g.Schedule()
		require.NoError(t, err)
		require.Len(t, order, 4)

		pos := make(map[string]int, len(order))
		for i, name := range order {
			pos[name] = i
		}
		assert.Less(t, pos["a"], pos["b"])
		assert.Less(t, pos["a"], pos["c"])
		assert.Less(t, pos["b"], pos["d"])
		assert.Less(t, pos["c"], pos["d"])
	})

	t.Run("Deterministic Across Repeated Calls", func(t *testing.T) {
		g := dag.New("deterministic")
		for i := 0; i < 10; i++ {
			require.NoError(t, g.Add(fmt.Sprintf("leaf-%d", i), noop))
		}
		require.NoError(t, g.Add("sink", noop, "leaf-3", "leaf-7"))

		first, err := g.Schedule()
		require.NoError(t, err)
		for i := 0; i < 20; i++ {
			again, err := g.Schedule()
			require.NoError(t, err)
			assert.Equal(t, first, again)
		}
	})

	t.Run("Cycle Detected", func(t *testing.T) {
		g := dag.New("cyclic")
		require.NoError(t, g.Add("a", noop, "b"))
		require.NoError(t, g.Add("b", noop, "a"))

		_, err := g.Schedule()
		var cycleErr *dag.CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.Equal(t, "cyclic", cycleErr.Graph)
	})

	t.Run("Unknown Dependency", func(t *testing.T) {
		g := dag.New("dangling")
		require.NoError(t, g.Add("load", noop, "transform"))

		_, err := g.Schedule()
		var unknownErr *dag.UnknownDependencyError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, "load", unknownErr.Task)
		assert.Equal(t, "transform", unknownErr.Dependency)
	})
}

func TestGraph_Run(t *testing.T) {
	t.Run("Linear Chain Executes In Order", func(t *testing.T) {
		var log []string

		g := dag.New("linear")
		require.NoError(t, g.Add("a", func(ctx dag.Context) (dag.Result, error) {
			log = append(log, "a")
			return dag.Result{"from_a": 1}, nil
		}))
		require.NoError(t, g.Add("b", func(ctx dag.Context) (dag.Result, error) {
			log = append(log, "b")
			assert.Equal(t, 1, ctx["from_a"])
			return dag.Result{"from_b": 2}, nil
		}, "a"))
		require.NoError(t, g.Add("c", func(ctx dag.Context) (dag.Result, error) {
			log = append(log, "c")
			assert.Equal(t, 2, ctx["from_b"])
			return nil, nil
		}, "b"))

		summary, err := g.Run(nil)
		require.NoError(t, err)
		assert.Equal(t, dag.RunCompleted, summary.Status)
		assert.Equal(t, []string{"a", "b", "c"}, log)
	})

	t.Run("Diamond Merges Both Branches", func(t *testing.T) {
		g := dag.New("diamond")
		require.NoError(t, g.Add("a", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"val": 1}, nil
		}))
		require.NoError(t, g.Add("b", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"b_val": ctx["val"].(int) + 10}, nil
		}, "a"))
		require.NoError(t, g.Add("c", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"c_val": ctx["val"].(int) + 20}, nil
		}, "a"))
		require.NoError(t, g.Add("d", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"total": ctx["b_val"].(int) + ctx["c_val"].(int)}, nil
		}, "b", "c"))

		summary, err := g.Run(nil)
		require.NoError(t, err)
		assert.Equal(t, dag.RunCompleted, summary.Status)
		assert.Equal(t, 32, g.Task("d").Result["total"])
	})

	t.Run("Failure Skips Downstream", func(t *testing.T) {
		g := dag.New("failure")
		require.NoError(t, g.Add("fail", func(ctx dag.Context) (dag.Result, error) {
			return nil, errors.New("intentional failure")
		}))
		require.NoError(t, g.Add("after", func(ctx dag.Context) (dag.Result, error) {
			t.Fatal("should not have run")
			return nil, nil
		}, "fail"))

		summary, err := g.Run(nil)
		require.NoError(t, err)
		assert.Equal(t, dag.RunFailed, summary.Status)
		assert.Equal(t, dag.StatusFailed, g.Task("fail").Status)
		assert.Equal(t, dag.StatusSkipped, g.Task("after").Status)
		assert.Equal(t, "intentional failure", g.Task("fail").Err)

		// Skipped entries carry no duration and no error.
		entry := summary.Tasks["after"]
		assert.Equal(t, dag.StatusSkipped, entry.Status)
		assert.Nil(t, entry.DurationMS)
		assert.Nil(t, entry.Err)
	})

	t.Run("Skip Cascades Transitively", func(t *testing.T) {
		// A fails, B is skipped, and C (which only depends on B) must be
		// skipped too: skipped dependencies are as contagious as failed ones.
		g := dag.New("cascade")
		require.NoError(t, g.Add("a", func(ctx dag.Context) (dag.Result, error) {
			return nil, errors.New("boom")
		}))
		require.NoError(t, g.Add("b", noop, "a"))
		require.NoError(t, g.Add("c", func(ctx dag.Context) (dag.Result, error) {
			t.Fatal("should not have run")
			return nil, nil
		}, "b"))

		summary, err := g.Run(nil)
		require.NoError(t, err)
		assert.Equal(t, dag.RunFailed, summary.Status)
		assert.Equal(t, dag.StatusSkipped, g.Task("b").Status)
		assert.Equal(t, dag.StatusSkipped, g.Task("c").Status)
	})

	t.Run("Unknown Dependency Fails Before Any Task Runs", func(t *testing.T) {
		executed := false
		g := dag.New("no-side-effects")
		require.NoError(t, g.Add("a", func(ctx dag.Context) (dag.Result, error) {
			executed = true
			return nil, nil
		}))
		require.NoError(t, g.Add("b", noop, "ghost"))

		_, err := g.Run(nil)
		var unknownErr *dag.UnknownDependencyError
		require.ErrorAs(t, err, &unknownErr)
		assert.False(t, executed)
	})

	t.Run("Initial Context Reaches First Task", func(t *testing.T) {
		g := dag.New("seeded")
		require.NoError(t, g.Add("only", func(ctx dag.Context) (dag.Result, error) {
			assert.Equal(t, "patients.csv", ctx["file"])
			return nil, nil
		}))

		summary, err := g.Run(dag.Context{"file": "patients.csv"})
		require.NoError(t, err)
		assert.Equal(t, dag.RunCompleted, summary.Status)
	})

	t.Run("Later Dependency Wins On Key Collision", func(t *testing.T) {
		g := dag.New("collision")
		require.NoError(t, g.Add("first", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"shared": "first"}, nil
		}))
		require.NoError(t, g.Add("second", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"shared": "second"}, nil
		}))
		require.NoError(t, g.Add("sink", func(ctx dag.Context) (dag.Result, error) {
			return dag.Result{"observed": ctx["shared"]}, nil
		}, "first", "second"))

		_, err := g.Run(nil)
		require.NoError(t, err)
		assert.Equal(t, "second", g.Task("sink").Result["observed"])
	})

	t.Run("Summary Durations Are Recorded", func(t *testing.T) {
		g := dag.New("timing")
		require.NoError(t, g.Add("work", noop))
		require.NoError(t, g.Add("broken", func(ctx dag.Context) (dag.Result, error) {
			return nil, errors.New("nope")
		}))

		summary, err := g.Run(nil)
		require.NoError(t, err)

		// Duration is present whether the task succeeded or failed.
		require.NotNil(t, summary.Tasks["work"].DurationMS)
		require.NotNil(t, summary.Tasks["broken"].DurationMS)
		assert.GreaterOrEqual(t, *summary.Tasks["broken"].DurationMS, 0.0)
		require.NotNil(t, summary.Tasks["broken"].Err)
		assert.Equal(t, "nope", *summary.Tasks["broken"].Err)
		assert.Nil(t, summary.Tasks["work"].Err)
	})
}

func TestGraph_Definition(t *testing.T) {
	t.Run("Reports Structure", func(t *testing.T) {
		g := dag.New("serialize_test")
		require.NoError(t, g.Add("x", noop))
		require.NoError(t, g.Add("y", noop, "x"))

		def := g.Definition()
		assert.Equal(t, "serialize_test", def.Name)
		assert.Equal(t, []string{"x"}, def.Tasks["y"].DependsOn)
		assert.Empty(t, def.Tasks["x"].DependsOn)
	})

	t.Run("Identical Before And After A Run", func(t *testing.T) {
		g := dag.New("stable")
		require.NoError(t, g.Add("x", func(ctx dag.Context) (dag.Result, error) {
			return nil, errors.New("failure does not leak into the definition")
		}))
		require.NoError(t, g.Add("y", noop, "x"))

		before := g.Definition()
		_, err := g.Run(nil)
		require.NoError(t, err)
		after := g.Definition()

		assert.Equal(t, before, after)
	})
}
