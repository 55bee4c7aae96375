package services

import (
	"context"
	"strconv"

	"github.com/olivejs/ginger/internal/server"
	"github.com/olivejs/ginger/internal/testrunner"
	"github.com/olivejs/ginger/internal/watcher"
)

// watchedExts are the source types the dispatcher has routes for.
var watchedExts = []string{".scss", ".css", ".js", ".html"}

// watch starts the file watcher. Changes under src/ and to bower.json
// rerun the matching task and then signal both reload channels.
func (p *Pipeline) watch(ctx context.Context) error {
	fw, err := watcher.NewFileWatcher(p.opts.Root, p.opts.Watch.Debounce, p.logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.ExtFilter(watchedExts...))
	if err := fw.AddRecursive(p.opts.SrcDir()); err != nil {
		_ = fw.Stop()
		return err
	}
	// The root holds bower.json; it is watched without descending.
	if err := fw.AddPath(p.opts.Root); err != nil {
		_ = fw.Stop()
		return err
	}

	dispatcher := watcher.NewDispatcher(p.sched, p.opts.Paths.Src,
		[]watcher.Reloader{p.browserReload, p.reportReload}, p.recorder, p.logger)
	fw.AddHandler(dispatcher.Handle)

	started := p.goService(TaskWatch, func(life context.Context) error {
		if err := fw.Start(life); err != nil {
			return err
		}
		<-life.Done()
		_ = fw.Stop()
		dispatcher.Wait()
		p.browserReload.Stop()
		p.reportReload.Stop()
		return life.Err()
	})
	if !started {
		_ = fw.Stop()
		return nil
	}
	p.logger.Info(ctx, "Watching for changes", "dir", p.opts.Paths.Src, "debounce", p.opts.Watch.Debounce)
	return nil
}

// serve starts the app and reload servers.
func (p *Pipeline) serve(ctx context.Context) error {
	srv := server.New(server.Config{
		Options:      p.opts,
		Collector:    p.collector,
		BuildMetrics: p.buildMetrics,
		Tasks:        p.sched,
		Metrics:      p.metricsHandler,
		Browser:      p.browser,
		Report:       p.report,
		ReportDir:    p.opts.Path(testrunner.ReportDir),
		Open:         p.open,
		Logger:       p.logger,
	})
	if p.goService(TaskServe, srv.Start) {
		p.logger.Info(ctx, "Dev server starting",
			"app", "http://localhost:"+strconv.Itoa(p.opts.Ports.App),
			"reload_port", p.opts.Ports.BS)
	}
	return nil
}

// testAuto starts karma in watch mode. Every finished run refreshes the
// coverage report page.
func (p *Pipeline) testAuto(ctx context.Context) error {
	runner := p.testRunner(testrunner.WithResultHook(func(s testrunner.Summary) {
		p.reportReload.Signal(testrunner.ReportDir)
	}))
	if p.goService(TaskTestAuto, runner.RunAuto) {
		p.logger.Info(ctx, "Running tests on change", "port", p.opts.Ports.Karma)
	}
	return nil
}
