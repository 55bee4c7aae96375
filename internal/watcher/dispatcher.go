package watcher

import (
	"context"
	"path"
	"strings"
	"sync"

	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/metrics"
)

// Task names the dispatcher triggers.
const (
	TaskStyles  = "styles"
	TaskScripts = "scripts"
	TaskInject  = "inject"
)

// TaskTrigger runs a named task, folding overlapping requests.
type TaskTrigger interface {
	Trigger(ctx context.Context, target string) error
}

// Reloader receives the path that caused a reload.
type Reloader interface {
	Signal(path string)
}

// Route maps a change under the source directory src to the task it
// needs. An empty task with ok set means reload only; ok false means the
// change is ignored.
func Route(ev ChangeEvent, src string) (task string, ok bool) {
	src = strings.TrimSuffix(path.Clean(src), "/")
	if ev.Path == "bower.json" {
		return TaskInject, true
	}
	if !strings.HasPrefix(ev.Path, src+"/") {
		return "", false
	}

	switch path.Ext(ev.Path) {
	case ".scss", ".css":
		if ev.Kind == KindChanged {
			return TaskStyles, true
		}
		return TaskInject, true
	case ".js":
		if ev.Kind == KindChanged {
			return TaskScripts, true
		}
		return TaskInject, true
	case ".html":
		if ev.Path == src+"/index.html" {
			return TaskInject, true
		}
		return "", true
	}
	return "", false
}

// Dispatcher routes settled change batches to tasks, then signals every
// reload channel once the task has finished.
type Dispatcher struct {
	tasks   TaskTrigger
	src     string
	reloads []Reloader
	metrics metrics.Recorder
	logger  logging.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher for changes under src.
func NewDispatcher(tasks TaskTrigger, src string, reloads []Reloader, rec metrics.Recorder, logger logging.Logger) *Dispatcher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Dispatcher{
		tasks:   tasks,
		src:     src,
		reloads: reloads,
		metrics: rec,
		logger:  logger.WithComponent("dispatcher"),
	}
}

type job struct {
	task string
	path string
}

// Handle is a ChangeHandler. Each task runs once per batch, in the order
// its first change appeared; the reload carries the batch's last path
// for that task.
func (d *Dispatcher) Handle(ctx context.Context, events []ChangeEvent) error {
	var (
		jobs   []job
		pos    = make(map[string]int)
		reload string
	)

	for _, ev := range events {
		d.metrics.IncWatchEvent(ev.Kind.String(), extLabel(ev.Path))
		task, ok := Route(ev, d.src)
		if !ok {
			d.logger.Debug(ctx, "Ignoring change", "path", ev.Path, "kind", ev.Kind.String())
			continue
		}
		d.logger.Info(ctx, "File "+ev.Kind.String(), "path", ev.Path, "task", task)

		if task == "" {
			reload = ev.Path
			continue
		}
		if i, seen := pos[task]; seen {
			jobs[i].path = ev.Path
			continue
		}
		pos[task] = len(jobs)
		jobs = append(jobs, job{task: task, path: ev.Path})
	}

	if reload != "" {
		d.signal(reload)
	}
	for _, j := range jobs {
		d.wg.Add(1)
		go func(j job) {
			defer d.wg.Done()
			if err := d.tasks.Trigger(ctx, j.task); err != nil {
				d.logger.Warn(ctx, err, "Task failed, watching for the next change", "task", j.task)
			}
			d.signal(j.path)
		}(j)
	}
	return nil
}

func (d *Dispatcher) signal(p string) {
	for _, r := range d.reloads {
		r.Signal(p)
	}
}

// Wait blocks until every triggered task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func extLabel(p string) string {
	if ext := strings.TrimPrefix(path.Ext(p), "."); ext != "" {
		return ext
	}
	return "none"
}
