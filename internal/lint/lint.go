// Package lint checks application scripts. It never rewrites them: every
// script is parsed with esbuild to catch syntax errors, and when a
// linter executable is configured it runs over the source directory.
// Problems end up as diagnostics in the error collector.
package lint

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/tool"
)

// Stage labels diagnostics and failures of this task.
const Stage = "scripts"

// Task is the script lint task.
type Task struct {
	opts      *config.Options
	scanner   *scanner.Scanner
	runner    tool.Runner
	collector *gerrors.ErrorCollector
	parser    *gerrors.ErrorParser
	logger    logging.Logger
}

// New creates the lint task. runner may be nil when no external linter
// is configured.
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
		logger:    logger.WithComponent("lint"),
	}
}

// Check parses one script and returns its syntax diagnostics.
func Check(path string, content []byte) []gerrors.Diagnostic {
	result := api.Transform(string(content), api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: path,
		LogLevel:   api.LogLevelSilent,
	})

	diags := make([]gerrors.Diagnostic, 0, len(result.Errors)+len(result.Warnings))
	for _, m := range result.Errors {
		diags = append(diags, toDiagnostic(path, m, gerrors.ErrorSeverityError))
	}
	for _, m := range result.Warnings {
		diags = append(diags, toDiagnostic(path, m, gerrors.ErrorSeverityWarning))
	}
	return diags
}

func toDiagnostic(path string, m api.Message, severity gerrors.ErrorSeverity) gerrors.Diagnostic {
	d := gerrors.Diagnostic{
		Stage:     Stage,
		File:      path,
		Message:   m.Text,
		Severity:  severity,
		Timestamp: time.Now(),
	}
	if m.Location != nil {
		d.Line = m.Location.Line
		// esbuild columns are zero-based.
		d.Column = m.Location.Column + 1
	}
	return d
}

// Run checks every script under the source directory. Spec files are
// included. It returns a tool error when any error-level diagnostic was
// found.
func (t *Task) Run(ctx context.Context) error {
	start := time.Now()

	files, err := t.scanner.FindAndRead(ctx, filepath.ToSlash(t.opts.Paths.Src), scanner.Ext(".js"))
	if err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning scripts", err).WithStage(Stage)
	}

	results := make([][]gerrors.Diagnostic, len(files)+1)
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			results[i] = Check(f.Path, f.Content)
			return nil
		})
	}
	if t.runner != nil && t.opts.Tools.Lint != "" {
		g.Go(func() error {
			diags, err := t.external(gctx)
			results[len(files)] = diags
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var diags []gerrors.Diagnostic
	for _, r := range results {
		diags = append(diags, r...)
	}
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		return diags[i].Line < diags[j].Line
	})
	t.collector.Replace(Stage, diags)

	errorCount := 0
	for _, d := range diags {
		if d.Severity == gerrors.ErrorSeverityError {
			errorCount++
			t.logger.Warn(ctx, nil, d.Message, "file", d.File, "line", d.Line, "column", d.Column)
		}
	}

	t.logger.Info(ctx, "Checked scripts", "files", len(files), "problems", len(diags), "duration", time.Since(start))
	if errorCount > 0 {
		first := diags[0]
		for _, d := range diags {
			if d.Severity == gerrors.ErrorSeverityError {
				first = d
				break
			}
		}
		return gerrors.NewToolError(Stage, fmt.Sprintf("%d problem(s) in scripts", errorCount), nil).
			WithLocation(first.File, first.Line, first.Column)
	}
	return nil
}

// external runs the configured linter. A non-zero exit with parsable
// output is a lint result, not a task failure; a missing linter is.
func (t *Task) external(ctx context.Context) ([]gerrors.Diagnostic, error) {
	cmd := tool.Command{
		Name: t.opts.Tools.Lint,
		Args: []string{filepath.ToSlash(t.opts.Paths.Src)},
		Dir:  t.scanner.Root(),
	}
	out, err := t.runner.Run(ctx, cmd)
	diags := t.parser.Parse(Stage, string(out))
	if err != nil && len(diags) == 0 {
		return nil, gerrors.NewToolError(Stage, t.opts.Tools.Lint+" failed", err).WithContext("output", string(out))
	}
	return diags, nil
}
