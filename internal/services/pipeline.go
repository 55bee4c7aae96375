// Package services wires the pipeline packages into the named task
// graph the CLI runs, and owns the long-running services (watcher,
// dev servers, continuous tests) some of those tasks start.
package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/olivejs/ginger/internal/build"
	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/graph"
	"github.com/olivejs/ginger/internal/inject"
	"github.com/olivejs/ginger/internal/lint"
	"github.com/olivejs/ginger/internal/livereload"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/metrics"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/scheduler"
	"github.com/olivejs/ginger/internal/styles"
	"github.com/olivejs/ginger/internal/templates"
	"github.com/olivejs/ginger/internal/testrunner"
	"github.com/olivejs/ginger/internal/tool"
	"github.com/olivejs/ginger/internal/watcher"
)

// Task names.
const (
	TaskCleanTmp  = "clean:tmp"
	TaskCleanDist = "clean:dist"
	TaskClean     = "clean"
	TaskStyles    = watcher.TaskStyles
	TaskScripts   = watcher.TaskScripts
	TaskLint      = "lint"
	TaskTemplates = "templates"
	TaskInject    = watcher.TaskInject
	TaskApp       = "app"
	TaskFonts     = "fonts"
	TaskAssets    = "assets"
	TaskBuild     = "build"
	TaskWatch     = "watch"
	TaskServe     = "serve"
	TaskTest      = "test"
	TaskTestAuto  = "test:auto"
	TaskDefault   = "default"
)

// Reload channels.
const (
	ChannelBrowser = "browser"
	ChannelReport  = "report"
)

// Config holds what the pipeline is built from. Only Options is
// required.
type Config struct {
	Options *config.Options
	Runner  tool.Runner
	Logger  logging.Logger
	// Metrics receives task, watch and reload counters. MetricsHandler,
	// when set, is mounted on the dev server.
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	// Open launches the browser when the dev server starts.
	Open bool
	// TestOutput receives karma output as it runs.
	TestOutput io.Writer
}

// Pipeline is the configured task graph for one project.
type Pipeline struct {
	opts           *config.Options
	scanner        *scanner.Scanner
	runner         tool.Runner
	logger         logging.Logger
	recorder       metrics.Recorder
	metricsHandler http.Handler
	collector      *gerrors.ErrorCollector
	buildMetrics   *build.BuildMetrics
	open           bool
	testOutput     io.Writer

	browser       *livereload.Hub
	report        *livereload.Hub
	browserReload *watcher.Debouncer
	reportReload  *watcher.Debouncer

	graph *graph.Graph
	sched *scheduler.Scheduler

	mu      sync.Mutex
	life    context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	started map[string]bool
}

// NewPipeline builds the task graph for cfg.Options.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if cfg.Options == nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigMissing, "pipeline needs options", nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Runner == nil {
		allowed := append([]string(nil), tool.DefaultAllowed...)
		for _, name := range []string{cfg.Options.Tools.Sass, cfg.Options.Tools.Karma, cfg.Options.Tools.Postcss, cfg.Options.Tools.Lint} {
			if name != "" {
				allowed = append(allowed, name)
			}
		}
		cfg.Runner = tool.NewExecRunner(cfg.Logger, allowed...)
	}

	sc, err := scanner.New(cfg.Options.Root)
	if err != nil {
		return nil, gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "invalid project root", err)
	}

	p := &Pipeline{
		opts:           cfg.Options,
		scanner:        sc,
		runner:         cfg.Runner,
		logger:         cfg.Logger,
		recorder:       cfg.Metrics,
		metricsHandler: cfg.MetricsHandler,
		collector:      gerrors.NewErrorCollector(),
		buildMetrics:   build.NewBuildMetrics(),
		open:           cfg.Open,
		testOutput:     cfg.TestOutput,
		started:        make(map[string]bool),
	}

	p.browser = livereload.NewHub(ChannelBrowser, livereload.WithLogger(p.logger), livereload.WithMetrics(p.recorder))
	p.report = livereload.NewHub(ChannelReport, livereload.WithLogger(p.logger), livereload.WithMetrics(p.recorder))
	p.browserReload = watcher.NewDebouncer(p.opts.Watch.Debounce, p.browser.Reload)
	p.reportReload = watcher.NewDebouncer(p.opts.Watch.Debounce, p.report.Reload)

	g, err := graph.Build(p.Tasks()...)
	if err != nil {
		return nil, err
	}
	p.graph = g
	p.sched = scheduler.New(g,
		scheduler.WithLogger(p.logger),
		scheduler.WithMetrics(p.recorder),
		scheduler.WithErrorHandler(gerrors.NewErrorHandler(p.logger)),
	)
	return p, nil
}

// Tasks returns the task definitions.
func (p *Pipeline) Tasks() []graph.Task {
	return []graph.Task{
		{Name: TaskCleanTmp, Description: "Remove the tmp directory", Action: p.cleanTmp},
		{Name: TaskCleanDist, Description: "Empty the dist directory", Action: p.cleanDist},
		{Name: TaskClean, Description: "Remove every generated file", Deps: []string{TaskCleanTmp, TaskCleanDist}},

		// Compile and lint failures are reported and the pipeline goes
		// on with the previous output.
		{Name: TaskStyles, Description: "Compile the root stylesheet", Action: p.styles, Tolerate: true},
		{Name: TaskScripts, Description: "Check application scripts", Action: p.scripts, Tolerate: true},
		{Name: TaskLint, Description: "Alias of scripts", Deps: []string{TaskScripts}},
		{Name: TaskTemplates, Description: "Build the template cache script", Action: p.templates},
		{Name: TaskInject, Description: "Inject styles and scripts into index.html", Deps: []string{TaskStyles, TaskScripts}, Action: p.inject},

		// A production bundle is never built from failed styles or scripts.
		{Name: TaskApp, Description: "Bundle the application into dist", Deps: []string{TaskInject, TaskTemplates}, Action: p.app, Strict: true},
		{Name: TaskFonts, Description: "Copy fonts into dist", Action: p.fonts},
		{Name: TaskAssets, Description: "Copy static assets into dist", Action: p.assets},
		{Name: TaskBuild, Description: "Production build", Deps: []string{TaskApp, TaskFonts, TaskAssets}},

		{Name: TaskWatch, Description: "Rebuild on change", Deps: []string{TaskInject}, Action: p.watch},
		{Name: TaskServe, Description: "Serve with live reload", Deps: []string{TaskWatch}, Action: p.serve},
		{Name: TaskTest, Description: "Run unit tests once", Deps: []string{TaskScripts}, Action: p.test},
		{Name: TaskTestAuto, Description: "Run unit tests on change", Deps: []string{TaskWatch}, Action: p.testAuto},

		{Name: TaskDefault, Description: "Inject vendor and app files", Deps: []string{TaskInject}},
	}
}

// Graph returns the validated task graph.
func (p *Pipeline) Graph() *graph.Graph { return p.graph }

// Scheduler returns the scheduler running the graph.
func (p *Pipeline) Scheduler() *scheduler.Scheduler { return p.sched }

// Collector holds the diagnostics of the latest run of every stage.
func (p *Pipeline) Collector() *gerrors.ErrorCollector { return p.collector }

// BuildMetrics returns production build statistics.
func (p *Pipeline) BuildMetrics() *build.BuildMetrics { return p.buildMetrics }

// Run executes targets with their prerequisites. When a target starts a
// long-running service, Run blocks until ctx is cancelled or a service
// fails. Otherwise it returns the failures of the run, including
// tolerated ones.
func (p *Pipeline) Run(ctx context.Context, targets ...string) error {
	if len(targets) == 0 {
		targets = []string{TaskDefault}
	}

	p.mu.Lock()
	if p.group == nil {
		life, cancel := context.WithCancel(ctx)
		p.group, p.life = errgroup.WithContext(life)
		p.cancel = cancel
	}
	p.mu.Unlock()

	report, err := p.sched.Run(ctx, targets...)
	if err != nil {
		p.stopServices()
		_ = p.Wait()
		return err
	}

	failed := failures(report)
	if p.servicesStarted() {
		if failed != nil {
			p.logger.Warn(ctx, failed, "Serving with failed tasks; fix the sources to rebuild")
		}
		return p.Wait()
	}
	_ = p.Wait()
	return failed
}

func failures(report *scheduler.Report) error {
	var errs []error
	for _, name := range report.Finished {
		if res := report.Results[name]; res.Status == scheduler.StatusFailed {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every started service returned.
func (p *Pipeline) Wait() error {
	p.mu.Lock()
	group, cancel := p.group, p.cancel
	p.mu.Unlock()
	if group == nil {
		return nil
	}

	err := group.Wait()
	cancel()

	p.mu.Lock()
	p.group, p.life, p.cancel = nil, nil, nil
	p.started = make(map[string]bool)
	p.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// goService runs fn for the lifetime of the current Run. Each service
// starts at most once per Run.
func (p *Pipeline) goService(name string, fn func(ctx context.Context) error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.group == nil || p.started[name] {
		return false
	}
	p.started[name] = true
	life := p.life
	p.group.Go(func() error { return fn(life) })
	return true
}

func (p *Pipeline) servicesStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.started) > 0
}

func (p *Pipeline) stopServices() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pipeline) cleanTmp(ctx context.Context) error {
	if err := build.Remove(p.opts.TmpDir()); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "cleaning tmp", err)
	}
	// Diagnostics describe the removed output.
	p.collector.Clear()
	p.logger.Info(ctx, "Removed", "dir", p.opts.Paths.Tmp)
	return nil
}

func (p *Pipeline) cleanDist(ctx context.Context) error {
	if err := build.Clean(p.opts.DistDir()); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "cleaning dist", err)
	}
	p.logger.Info(ctx, "Emptied", "dir", p.opts.Paths.Dist, "kept", build.Sentinel)
	return nil
}

func (p *Pipeline) styles(ctx context.Context) error {
	return styles.New(p.opts, p.scanner, p.runner, p.collector, p.logger).Run(ctx)
}

func (p *Pipeline) scripts(ctx context.Context) error {
	return lint.New(p.opts, p.scanner, p.runner, p.collector, p.logger).Run(ctx)
}

func (p *Pipeline) templates(ctx context.Context) error {
	return templates.New(p.opts, p.scanner, p.logger).Run(ctx)
}

func (p *Pipeline) inject(ctx context.Context) error {
	return inject.NewTask(p.opts, p.scanner, p.logger).Run(ctx)
}

func (p *Pipeline) app(ctx context.Context) error {
	return build.NewPipeline(p.opts, p.buildMetrics, p.collector, p.logger).Run(ctx)
}

func (p *Pipeline) fonts(ctx context.Context) error {
	n, err := build.CopyFonts(ctx, p.opts, p.scanner)
	if err != nil {
		return err
	}
	p.logger.Info(ctx, "Copied fonts", "count", n)
	return nil
}

func (p *Pipeline) assets(ctx context.Context) error {
	n, err := build.CopyAssets(ctx, p.opts, p.scanner)
	if err != nil {
		return err
	}
	p.logger.Info(ctx, "Copied assets", "count", n)
	return nil
}

func (p *Pipeline) testRunner(options ...testrunner.Option) *testrunner.Task {
	if p.testOutput != nil {
		options = append(options, testrunner.WithOutput(p.testOutput))
	}
	return testrunner.New(p.opts, p.scanner, p.runner, p.collector, p.logger, options...)
}

func (p *Pipeline) test(ctx context.Context) error {
	return p.testRunner().Run(ctx)
}
