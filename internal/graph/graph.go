// Package graph holds the explicit task dependency graph. A Graph is
// validated when it is built: unknown prerequisites and cycles are
// rejected before any task can run.
package graph

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"

	"go.trai.ch/zerr"
)

// Action is the work a task performs.
type Action func(ctx context.Context) error

// Task is a named unit of work with ordered prerequisites.
type Task struct {
	Name        string
	Description string
	Deps        []string
	Action      Action
	// Tolerate lets dependents run even when this task fails.
	Tolerate bool
	// Strict tasks run only when every transitive prerequisite in the
	// run succeeded; a tolerated failure upstream skips them.
	Strict bool
}

// Graph is an immutable, acyclic set of tasks.
type Graph struct {
	tasks      map[string]Task
	dependents map[string][]string
	order      []string
}

// Build validates tasks and returns the graph. The execution order is
// computed once here, visiting tasks by name so it is deterministic.
func Build(tasks ...Task) (*Graph, error) {
	g := &Graph{
		tasks:      make(map[string]Task, len(tasks)),
		dependents: make(map[string][]string),
	}

	for _, t := range tasks {
		if strings.TrimSpace(t.Name) == "" {
			return nil, ErrInvalidTaskName
		}
		if _, exists := g.tasks[t.Name]; exists {
			return nil, zerr.With(zerr.Wrap(ErrTaskAlreadyExists, "invalid task graph"), "task", t.Name)
		}
		g.tasks[t.Name] = t
	}

	names := g.Names()
	for _, name := range names {
		for _, dep := range g.tasks[name].Deps {
			if _, ok := g.tasks[dep]; !ok {
				err := zerr.With(zerr.Wrap(ErrMissingDependency, "invalid task graph"), "task", name)
				return nil, zerr.With(err, "dependency", dep)
			}
			g.dependents[dep] = append(g.dependents[dep], name)
		}
	}

	order, err := TopoSort(names, func(n string) []string { return g.tasks[n].Deps })
	if err != nil {
		var cycle *CycleError
		if errors.As(err, &cycle) {
			return nil, zerr.With(zerr.Wrap(err, "invalid task graph"), "cycle", strings.Join(cycle.Path, " -> "))
		}
		return nil, err
	}
	g.order = order

	return g, nil
}

// Task returns the named task.
func (g *Graph) Task(name string) (Task, bool) {
	t, ok := g.tasks[name]
	return t, ok
}

// Names returns all task names sorted.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.tasks))
	for name := range g.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Order returns every task in a valid execution order.
func (g *Graph) Order() []string {
	return slices.Clone(g.order)
}

// Dependents returns the tasks listing name as a prerequisite.
func (g *Graph) Dependents(name string) []string {
	return slices.Clone(g.dependents[name])
}

// Closure returns the targets plus all their transitive prerequisites,
// in execution order.
func (g *Graph) Closure(targets ...string) ([]string, error) {
	include := make(map[string]bool)
	queue := make([]string, 0, len(targets))
	for _, name := range targets {
		if _, ok := g.tasks[name]; !ok {
			return nil, zerr.With(zerr.Wrap(ErrTaskNotFound, "unknown target"), "task", name)
		}
		if !include[name] {
			include[name] = true
			queue = append(queue, name)
		}
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, dep := range g.tasks[current].Deps {
			if !include[dep] {
				include[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	closure := make([]string, 0, len(include))
	for _, name := range g.order {
		if include[name] {
			closure = append(closure, name)
		}
	}

	return closure, nil
}
