// Package scheduler runs tasks of a graph.Graph concurrently while
// honoring prerequisite order.
package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.trai.ch/zerr"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/graph"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/metrics"
)

// TaskStatus represents the status of a task.
type TaskStatus string

const (
	// StatusPending indicates the task is waiting to be executed.
	StatusPending TaskStatus = "pending"
	// StatusRunning indicates the task is currently executing.
	StatusRunning TaskStatus = "running"
	// StatusCompleted indicates the task has finished successfully.
	StatusCompleted TaskStatus = "completed"
	// StatusFailed indicates the task action returned an error.
	StatusFailed TaskStatus = "failed"
	// StatusSkipped indicates a prerequisite failed without being tolerated.
	StatusSkipped TaskStatus = "skipped"
)

var (
	// ErrTaskExecutionFailed wraps every error returned by a task action.
	ErrTaskExecutionFailed = zerr.New("task execution failed")
	// ErrPrerequisiteFailed is returned for a strict task skipped because
	// a tolerated prerequisite failed.
	ErrPrerequisiteFailed = zerr.New("prerequisite failed")
)

// Result is the outcome of one task in a run.
type Result struct {
	Task     string        `json:"task"`
	Status   TaskStatus    `json:"status"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a run. Finished lists tasks in the order their
// results arrived.
type Report struct {
	Targets  []string          `json:"targets"`
	Results  map[string]Result `json:"results"`
	Finished []string          `json:"finished"`
}

// Status returns the final status of a task in this run.
func (r *Report) Status(task string) TaskStatus {
	if res, ok := r.Results[task]; ok {
		return res.Status
	}
	return ""
}

// Scheduler executes graph tasks.
type Scheduler struct {
	graph       *graph.Graph
	logger      logging.Logger
	metrics     metrics.Recorder
	handler     *gerrors.ErrorHandler
	parallelism int

	// triggerMu serializes watch-triggered runs so two runs never write
	// the same output files at once.
	triggerMu sync.Mutex

	mu         sync.RWMutex
	taskStatus map[string]TaskStatus
	lastErr    map[string]string
	coalescers map[string]*Coalescer
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for task start/finish lines.
func WithLogger(l logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l.WithComponent("scheduler") }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithErrorHandler routes task failures through h.
func WithErrorHandler(h *gerrors.ErrorHandler) Option {
	return func(s *Scheduler) { s.handler = h }
}

// WithParallelism caps how many actions run at once.
func WithParallelism(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// New creates a Scheduler for g.
func New(g *graph.Graph, opts ...Option) *Scheduler {
	s := &Scheduler{
		graph:       g,
		logger:      logging.NewNopLogger(),
		metrics:     metrics.Nop{},
		parallelism: runtime.NumCPU(),
		taskStatus:  make(map[string]TaskStatus),
		lastErr:     make(map[string]string),
		coalescers:  make(map[string]*Coalescer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Graph returns the graph the scheduler runs.
func (s *Scheduler) Graph() *graph.Graph {
	return s.graph
}

// Status returns the last known status of a task.
func (s *Scheduler) Status(name string) TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.taskStatus[name]; ok {
		return st
	}
	return StatusPending
}

// Snapshot returns the last known status and error of every task that
// ran at least once.
func (s *Scheduler) Snapshot() map[string]Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Result, len(s.taskStatus))
	for name, st := range s.taskStatus {
		out[name] = Result{Task: name, Status: st, Error: s.lastErr[name]}
	}
	return out
}

func (s *Scheduler) updateStatus(name string, status TaskStatus, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskStatus[name] = status
	if err != nil {
		s.lastErr[name] = err.Error()
	} else if status == StatusCompleted {
		delete(s.lastErr, name)
	}
}

// Trigger runs target (with its prerequisites) through the target's
// coalescer. A trigger that arrives while the previous run of the same
// target is active or queued waits for the single follow-up run that
// covers it and returns that run's error. Triggered runs of different
// targets are serialized.
func (s *Scheduler) Trigger(ctx context.Context, target string) error {
	c := s.coalescer(target)
	ran, err := c.Do(ctx, func(ctx context.Context) error {
		s.triggerMu.Lock()
		defer s.triggerMu.Unlock()
		_, err := s.Run(ctx, target)
		return err
	})
	if !ran {
		s.metrics.IncCoalesced(target)
		s.logger.Debug(ctx, "Trigger folded into pending run", "task", target)
	}
	return err
}

func (s *Scheduler) coalescer(name string) *Coalescer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coalescers[name]
	if !ok {
		c = &Coalescer{}
		s.coalescers[name] = c
	}
	return c
}

// Run executes targets and their transitive prerequisites. The
// returned error joins the failures of every untolerated task; the
// report holds the outcome of each task either way.
func (s *Scheduler) Run(ctx context.Context, targets ...string) (*Report, error) {
	closure, err := s.graph.Closure(targets...)
	if err != nil {
		return nil, err
	}

	state := s.newRunState(ctx, targets, closure)
	return state.report, state.runExecutionLoop()
}

type result struct {
	task     string
	err      error
	duration time.Duration
}

type runState struct {
	s         *Scheduler
	ctx       context.Context
	tasks     map[string]graph.Task
	inDegree  map[string]int
	ready     []string
	active    int
	resultsCh chan result
	errs      error
	report    *Report
	// degraded holds finished tasks that failed, or that depend on one.
	degraded map[string]bool
}

func (s *Scheduler) newRunState(ctx context.Context, targets, closure []string) *runState {
	inRun := make(map[string]bool, len(closure))
	for _, name := range closure {
		inRun[name] = true
	}

	tasks := make(map[string]graph.Task, len(closure))
	inDegree := make(map[string]int, len(closure))
	var ready []string

	// closure is in execution order, so ready starts deterministic.
	for _, name := range closure {
		t, _ := s.graph.Task(name)
		tasks[name] = t
		degree := 0
		for _, dep := range t.Deps {
			if inRun[dep] {
				degree++
			}
		}
		inDegree[name] = degree
		if degree == 0 {
			ready = append(ready, name)
		}
		s.updateStatus(name, StatusPending, nil)
	}

	return &runState{
		s:         s,
		ctx:       ctx,
		tasks:     tasks,
		inDegree:  inDegree,
		ready:     ready,
		resultsCh: make(chan result, len(closure)),
		degraded:  make(map[string]bool),
		report: &Report{
			Targets: append([]string(nil), targets...),
			Results: make(map[string]Result, len(closure)),
		},
	}
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) runExecutionLoop() error {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		if state.ctx.Err() != nil && state.active == 0 {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			// Let running actions report; nothing new is scheduled.
			if state.active > 0 {
				state.handleResult(<-state.resultsCh)
			}
		}
	}

	if err := state.ctx.Err(); err != nil {
		state.skipRemaining()
		state.errs = errors.Join(state.errs, err)
	}

	return state.errs
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.s.parallelism && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		t := state.tasks[name]
		if failed := state.degradedDep(t); t.Strict && failed != "" {
			state.record(name, StatusSkipped, nil, 0)
			state.s.logger.Warn(state.ctx, nil, "Skipping task", "task", name, "failed_prerequisite", failed)
			err := zerr.With(zerr.Wrap(ErrPrerequisiteFailed, "task skipped"), "task", name)
			state.errs = errors.Join(state.errs, zerr.With(err, "prerequisite", failed))
			state.skipDependents(name)
			continue
		}

		state.active++
		state.s.updateStatus(name, StatusRunning, nil)

		go state.executeTask(t)
	}
}

func (state *runState) executeTask(t graph.Task) {
	start := time.Now()
	state.s.logger.Info(state.ctx, "Starting task", "task", t.Name)

	var err error
	if t.Action != nil {
		err = runAction(state.ctx, t.Action)
	}

	state.resultsCh <- result{task: t.Name, err: err, duration: time.Since(start)}
}

// runAction converts a panicking action into a failure so one broken
// task cannot take the watch loop down.
func runAction(ctx context.Context, action graph.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = gerrors.NewInternalError(gerrors.ErrCodeInternalError, "task panicked", nil).
				WithContext("panic", r)
		}
	}()
	return action(ctx)
}

func (state *runState) handleResult(res result) {
	state.active--
	t := state.tasks[res.task]

	if res.err != nil {
		state.degraded[res.task] = true
		state.record(res.task, StatusFailed, res.err, res.duration)
		if state.s.handler != nil {
			state.s.handler.Handle(state.ctx, res.err)
		} else {
			state.s.logger.Warn(state.ctx, res.err, "Task failed",
				"task", res.task,
				"duration", res.duration.String(),
				"tolerated", t.Tolerate)
		}

		if !t.Tolerate {
			enhanced := zerr.With(zerr.Wrap(res.err, ErrTaskExecutionFailed.Error()), "task", res.task)
			state.errs = errors.Join(state.errs, enhanced)
			state.skipDependents(res.task)
			return
		}
	} else {
		if state.degradedDep(t) != "" {
			state.degraded[res.task] = true
		}
		state.record(res.task, StatusCompleted, nil, res.duration)
		state.s.logger.Info(state.ctx, "Finished task",
			"task", res.task,
			"duration", res.duration.String())
	}

	dependents := state.s.graph.Dependents(res.task)
	sort.Strings(dependents)
	for _, dep := range dependents {
		if _, ok := state.tasks[dep]; !ok {
			continue
		}
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

func (state *runState) record(name string, status TaskStatus, err error, d time.Duration) {
	res := Result{Task: name, Status: status, Err: err, Duration: d}
	if err != nil {
		res.Error = err.Error()
	}
	state.report.Results[name] = res
	state.report.Finished = append(state.report.Finished, name)
	state.s.updateStatus(name, status, err)
	state.s.metrics.ObserveTask(name, string(status), d)
}

// degradedDep returns the first prerequisite of t that failed or
// depends on a failure in this run, or "".
func (state *runState) degradedDep(t graph.Task) string {
	for _, dep := range t.Deps {
		if state.degraded[dep] {
			return dep
		}
	}
	return ""
}

// skipDependents marks every transitive dependent in this run skipped.
func (state *runState) skipDependents(failed string) {
	queue := state.s.graph.Dependents(failed)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, ok := state.tasks[name]; !ok {
			continue
		}
		if _, done := state.report.Results[name]; done {
			continue
		}
		state.record(name, StatusSkipped, nil, 0)
		state.s.logger.Warn(state.ctx, nil, "Skipping task", "task", name, "failed_prerequisite", failed)
		queue = append(queue, state.s.graph.Dependents(name)...)
	}
}

func (state *runState) skipRemaining() {
	for name := range state.tasks {
		if _, done := state.report.Results[name]; !done {
			state.record(name, StatusSkipped, nil, 0)
		}
	}
	state.ready = nil
}
