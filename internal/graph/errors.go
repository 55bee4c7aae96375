package graph

import "go.trai.ch/zerr"

var (
	// ErrTaskAlreadyExists is returned when two tasks share a name.
	ErrTaskAlreadyExists = zerr.New("task already exists")

	// ErrMissingDependency is returned when a task lists a prerequisite that is not in the graph.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when the prerequisite relation contains a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrTaskNotFound is returned when a requested task is not in the graph.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrInvalidTaskName is returned for an empty task name.
	ErrInvalidTaskName = zerr.New("invalid task name")
)
