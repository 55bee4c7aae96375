//go:build property

package graph

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// randomDAG builds n tasks where task i may only depend on tasks with a
// smaller index, which guarantees the result is acyclic.
func randomDAG(n int, edges []int) []Task {
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		tasks[i] = Task{Name: fmt.Sprintf("t%02d", i), Action: noop}
	}
	for k, e := range edges {
		from := k % n
		if from == 0 {
			continue
		}
		to := e % from
		tasks[from].Deps = append(tasks[from].Deps, tasks[to].Name)
	}
	// Deduplicate so Deps stays a set.
	for i := range tasks {
		seen := map[string]bool{}
		var deps []string
		for _, d := range tasks[i].Deps {
			if !seen[d] {
				seen[d] = true
				deps = append(deps, d)
			}
		}
		tasks[i].Deps = deps
	}
	return tasks
}

func TestGraphProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("acyclic graphs order every prerequisite first", prop.ForAll(
		func(n int, edges []int) bool {
			tasks := randomDAG(n, edges)
			g, err := Build(tasks...)
			if err != nil {
				return false
			}
			pos := map[string]int{}
			for i, name := range g.Order() {
				pos[name] = i
			}
			if len(pos) != n {
				return false
			}
			for _, tk := range tasks {
				for _, dep := range tk.Deps {
					if pos[dep] >= pos[tk.Name] {
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 25),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.Property("a back edge is always rejected", prop.ForAll(
		func(n int, edges []int) bool {
			tasks := randomDAG(n, edges)
			// Chain every task to its predecessor and close the loop.
			for i := 1; i < n; i++ {
				tasks[i].Deps = append(tasks[i].Deps, tasks[i-1].Name)
			}
			tasks[0].Deps = append(tasks[0].Deps, tasks[n-1].Name)
			_, err := Build(tasks...)
			return err != nil
		},
		gen.IntRange(1, 25),
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
