// Package styles compiles the application stylesheet.
//
// The root stylesheet src/app/index.scss carries two marker regions:
// "// injector" receives an @import for every other application scss
// file and "// bower:scss" one for each vendor scss file. The injected
// copy is written to tmp/serve/app/index.scss and compiled with the
// sass executable to index.css next to it.
package styles

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/inject"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/tool"
	"github.com/olivejs/ginger/internal/vendor"
)

// Stage labels diagnostics and failures of this task.
const Stage = "styles"

const (
	rootName = "index.scss"
	cssName  = "index.css"
)

// Task is the style compilation task.
type Task struct {
	opts      *config.Options
	scanner   *scanner.Scanner
	runner    tool.Runner
	collector *gerrors.ErrorCollector
	parser    *gerrors.ErrorParser
	logger    logging.Logger
}

// New creates the style task.
func New(opts *config.Options, sc *scanner.Scanner, runner tool.Runner, collector *gerrors.ErrorCollector, logger logging.Logger) *Task {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if collector == nil {
		collector = gerrors.NewErrorCollector()
	}
	return &Task{
		opts:      opts,
		scanner:   sc,
		runner:    runner,
		collector: collector,
		parser:    gerrors.NewErrorParser(),
		logger:    logger.WithComponent(Stage),
	}
}

// appDir is the root-relative directory of the root stylesheet.
func (t *Task) appDir() string { return path.Join(filepath.ToSlash(t.opts.Paths.Src), "app") }

// outDir is the root-relative directory the compiled css lands in.
func (t *Task) outDir() string {
	return path.Join(filepath.ToSlash(t.opts.Paths.Tmp), "serve", "app")
}

// Prepare writes the injected root stylesheet and returns its
// root-relative path.
func (t *Task) Prepare(ctx context.Context) (string, error) {
	rootRel := path.Join(t.appDir(), rootName)
	files, err := t.scanner.Read(ctx, []string{rootRel})
	if err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "reading root stylesheet", err).WithStage(Stage)
	}
	doc := files[0].Content

	partials, err := t.scanner.Find(t.appDir(), scanner.All(
		scanner.Ext(".scss"),
		func(rel string) bool { return rel != rootRel },
	))
	if err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning stylesheets", err).WithStage(Stage)
	}

	vendored, err := vendor.Resolve(vendor.Options{Root: t.scanner.Root(), Dir: t.opts.Paths.Vendor})
	if err != nil {
		return "", err
	}

	outDir := t.outDir()
	doc, err = inject.Apply(doc,
		[]inject.Injection{{Markers: inject.SCSSInject(), Lines: inject.SCSSImports(partials, outDir)}},
		[]inject.Injection{{Markers: inject.SCSSBower(), Lines: inject.SCSSImports(vendored.SCSS, outDir)}},
	)
	if err != nil {
		return "", gerrors.NewToolError(Stage, "injecting imports", err)
	}

	outRel := path.Join(outDir, rootName)
	out := t.scanner.Abs(outRel)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "creating "+outDir, err)
	}
	if err := os.WriteFile(out, doc, 0o644); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "writing "+outRel, err)
	}
	return outRel, nil
}

// Run injects and compiles the stylesheet. Compiler diagnostics replace
// the previous ones for this stage in the collector.
func (t *Task) Run(ctx context.Context) error {
	start := time.Now()

	input, err := t.Prepare(ctx)
	if err != nil {
		return err
	}
	output := path.Join(t.outDir(), cssName)

	args := []string{"--no-error-css"}
	if t.opts.Build.Sourcemaps {
		args = append(args, "--source-map", "--embed-sources")
	} else {
		args = append(args, "--no-source-map")
	}
	args = append(args, "--load-path="+filepath.ToSlash(t.opts.Paths.Vendor), input, output)

	out, err := t.runner.Run(ctx, tool.Command{Name: t.opts.Tools.Sass, Args: args, Dir: t.scanner.Root()})
	if err != nil {
		return t.fail("sass failed", out, err)
	}

	if t.opts.Build.Autoprefix {
		cmd := tool.Command{
			Name: t.opts.Tools.Postcss,
			Args: []string{output, "--use", "autoprefixer", "--replace"},
			Dir:  t.scanner.Root(),
		}
		if out, err := t.runner.Run(ctx, cmd); err != nil {
			return t.fail("postcss failed", out, err)
		}
	}

	t.collector.ClearStage(Stage)
	t.logger.Info(ctx, "Compiled stylesheet", "output", output, "duration", time.Since(start))
	return nil
}

func (t *Task) fail(msg string, output []byte, cause error) error {
	diags := t.parser.Parse(Stage, string(output))
	t.collector.Replace(Stage, diags)

	ge := gerrors.NewToolError(Stage, msg, cause).WithContext("output", string(output))
	if len(diags) > 0 {
		ge = ge.WithLocation(diags[0].File, diags[0].Line, diags[0].Column)
	}
	return ge
}

// Output returns the root-relative path of the compiled stylesheet.
func (t *Task) Output() string { return path.Join(t.outDir(), cssName) }
