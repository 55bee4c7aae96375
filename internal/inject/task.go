package inject

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/olivejs/ginger/internal/appinfo"
	"github.com/olivejs/ginger/internal/config"
	"github.com/olivejs/ginger/internal/csp"
	"github.com/olivejs/ginger/internal/depsort"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/vendor"
)

// Stage labels failures of the inject task.
const Stage = "inject"

// IndexName is the root document.
const IndexName = "index.html"

// Task writes tmp/serve/index.html from src/index.html with every
// region filled in.
type Task struct {
	opts    *config.Options
	scanner *scanner.Scanner
	logger  logging.Logger
}

// NewTask creates the inject task.
func NewTask(opts *config.Options, sc *scanner.Scanner, logger logging.Logger) *Task {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Task{opts: opts, scanner: sc, logger: logger.WithComponent(Stage)}
}

// AppScripts returns the application scripts under src/app in module
// dependency order. Spec and mock files are left out.
func AppScripts(ctx context.Context, opts *config.Options, sc *scanner.Scanner) ([]string, error) {
	appDir := path.Join(filepath.ToSlash(opts.Paths.Src), "app")
	files, err := sc.FindAndRead(ctx, appDir, scanner.All(
		scanner.Ext(".js"),
		scanner.Not(scanner.Suffix(".spec.js", ".mock.js")),
	))
	if err != nil {
		return nil, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning scripts", err).WithStage(Stage)
	}

	candidates := make([]depsort.File, len(files))
	for i, f := range files {
		candidates[i] = depsort.File{Path: f.Path, Content: f.Content}
	}
	sorted, err := depsort.Sort(candidates)
	if err != nil {
		return nil, err
	}
	return depsort.Paths(sorted), nil
}

// Run injects the root document.
func (t *Task) Run(ctx context.Context) error {
	start := time.Now()
	src := filepath.ToSlash(t.opts.Paths.Src)
	serve := path.Join(filepath.ToSlash(t.opts.Paths.Tmp), "serve")
	strip := StripRoots(serve, src)

	docs, err := t.scanner.Read(ctx, []string{path.Join(src, IndexName)})
	if err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "reading root document", err).WithStage(Stage)
	}
	doc := docs[0].Content

	generated, err := t.scanner.Find(serve, scanner.Ext(".css"))
	if err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning styles", err).WithStage(Stage)
	}
	plain, err := t.scanner.Find(path.Join(src, "app"), scanner.Ext(".css"))
	if err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning styles", err).WithStage(Stage)
	}

	scripts, err := AppScripts(ctx, t.opts, t.scanner)
	if err != nil {
		return err
	}

	info, err := appinfo.Read(t.scanner.Root())
	if err != nil {
		return err
	}
	if _, err := appinfo.Write(info, t.opts.ServeDir()); err != nil {
		return err
	}

	vendored, err := vendor.Resolve(vendor.Options{Root: t.scanner.Root(), Dir: t.opts.Paths.Vendor})
	if err != nil {
		return err
	}
	if len(vendored.Missing) > 0 {
		t.logger.Warn(ctx, nil, "Vendor packages are not installed", "packages", strings.Join(vendored.Missing, ", "))
	}

	local := []Injection{
		{Markers: HTMLInject("csp"), Lines: csp.Lines(t.opts)},
		{Markers: HTMLInject("css"), Lines: Tags(append(generated, plain...), strip)},
		{Markers: HTMLInject("appinfo"), Lines: []string{Tag(appinfo.FileName)}},
		{Markers: HTMLInject("js"), Lines: Tags(scripts, strip)},
	}
	vendorRegions := []Injection{
		{Markers: HTMLBower("css"), Lines: Tags(vendored.CSS, nil)},
		{Markers: HTMLBower("js"), Lines: Tags(vendored.JS, nil)},
	}

	out, err := Apply(doc, local, vendorRegions)
	if err != nil {
		return gerrors.NewToolError(Stage, "injecting root document", err)
	}

	target := filepath.Join(t.opts.ServeDir(), IndexName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "creating "+filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, out, 0o644); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "writing "+target, err)
	}

	t.logger.Info(ctx, "Injected root document",
		"styles", len(generated)+len(plain),
		"scripts", len(scripts),
		"vendor", len(vendored.JS)+len(vendored.CSS),
		"duration", time.Since(start),
	)
	return nil
}
