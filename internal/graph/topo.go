package graph

import (
	"strings"
)

// CycleError reports a dependency cycle. Path starts and ends with the
// same node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// Is makes errors.Is(err, ErrCycleDetected) hold for every CycleError.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// TopoSort orders nodes so every node comes after the nodes deps
// returns for it. Nodes are visited in the given order and their deps
// in the order deps returns them, so equal inputs always give equal
// output. deps may name nodes outside the input; those are ignored.
func TopoSort(nodes []string, deps func(string) []string) ([]string, error) {
	const (
		unvisited = iota
		visiting
		visited
	)

	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n] = true
	}

	state := make(map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))
	var path []string

	var visit func(u string) error
	visit = func(u string) error {
		state[u] = visiting
		path = append(path, u)

		for _, dep := range deps(u) {
			if !known[dep] {
				continue
			}
			switch state[dep] {
			case visiting:
				return &CycleError{Path: cyclePath(path, dep)}
			case unvisited:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		state[u] = visited
		path = path[:len(path)-1]
		order = append(order, u)
		return nil
	}

	for _, n := range nodes {
		if state[n] == unvisited {
			if err := visit(n); err != nil {
				return nil, err
			}
		}
	}

	return order, nil
}

func cyclePath(path []string, dep string) []string {
	start := 0
	for i, node := range path {
		if node == dep {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, dep)
}
