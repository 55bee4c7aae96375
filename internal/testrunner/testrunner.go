// Package testrunner drives karma. It writes the ordered file list the
// project's karma.conf.js loads, then starts karma once or in watch
// mode.
package testrunner

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/inject"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scanner"
	"github.com/olivejs/ginger/internal/tool"
	"github.com/olivejs/ginger/internal/vendor"
)

// Stage labels diagnostics and failures of the test task.
const Stage = "test"

const (
	// FilesName is the manifest karma.conf.js reads, under the tmp dir.
	FilesName = "karma-files.json"
	// ReportDir is where the coverage reporter writes, relative to the
	// project root.
	ReportDir = "coverage"
	// ConfigName is the karma configuration file.
	ConfigName = "karma.conf.js"
)

// Manifest is the content of FilesName.
type Manifest struct {
	// Files are loaded by the browser in this order.
	Files []string `json:"files"`
	// Preprocess lists the application scripts instrumented for coverage.
	Preprocess []string `json:"preprocess"`
	Reporters  []string `json:"reporters"`
	Port       int      `json:"port"`
	ReportDir  string   `json:"reportDir"`
}

// Summary is the result line karma prints after each run.
type Summary struct {
	Executed int
	Total    int
	Failed   int
	Skipped  int
}

// Passed reports whether every spec that was not skipped ran and
// succeeded.
func (s Summary) Passed() bool {
	return s.Failed == 0 && s.Executed+s.Skipped == s.Total
}

var summaryRe = regexp.MustCompile(`Executed (\d+) of (\d+)(?: \((\d+) FAILED\))?(?: \(skipped (\d+)\))?`)

// ParseSummary finds the last result line in karma output.
func ParseSummary(output string) (Summary, bool) {
	matches := summaryRe.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return Summary{}, false
	}
	m := matches[len(matches)-1]
	s := Summary{}
	s.Executed, _ = strconv.Atoi(m[1])
	s.Total, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		s.Failed, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		s.Skipped, _ = strconv.Atoi(m[4])
	}
	return s, true
}

// Reporters picks karma reporters for an environment. Development gets
// the progress bar; every other environment gets compact dots. Coverage
// is always on so the report stays current.
func Reporters(env string) []string {
	if env == config.DefaultEnvironment {
		return []string{"progress", "coverage"}
	}
	return []string{"dots", "coverage"}
}

// Task runs the unit tests.
type Task struct {
	opts      *config.Options
	scanner   *scanner.Scanner
	runner    tool.Runner
	collector *gerrors.ErrorCollector
	parser    *gerrors.ErrorParser
	logger    logging.Logger
	output    io.Writer
	onResult  func(Summary)
}

// Option configures a Task.
type Option func(*Task)

// WithOutput streams karma output to w while it runs.
func WithOutput(w io.Writer) Option {
	return func(t *Task) { t.output = w }
}

// WithResultHook calls fn after every completed karma run, including
// each rerun in watch mode.
func WithResultHook(fn func(Summary)) Option {
	return func(t *Task) { t.onResult = fn }
}

// New creates the test task.
func New(opts *config.Options, sc *scanner.Scanner, runner tool.Runner, collector *gerrors.ErrorCollector, logger logging.Logger, options ...Option) *Task {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if collector == nil {
		collector = gerrors.NewErrorCollector()
	}
	t := &Task{
		opts:      opts,
		scanner:   sc,
		runner:    runner,
		collector: collector,
		parser:    gerrors.NewErrorParser(),
		logger:    logger.WithComponent(Stage),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Manifest builds the file list: vendor scripts including dev
// dependencies in dependency order, application scripts in module
// order, then spec and mock files.
func (t *Task) Manifest(ctx context.Context) (*Manifest, error) {
	vendored, err := vendor.Resolve(vendor.Options{Root: t.scanner.Root(), Dir: t.opts.Paths.Vendor, Dev: true})
	if err != nil {
		return nil, err
	}
	if len(vendored.Missing) > 0 {
		t.logger.Warn(ctx, nil, "Vendor packages are not installed", "packages", strings.Join(vendored.Missing, ", "))
	}

	app, err := inject.AppScripts(ctx, t.opts, t.scanner)
	if err != nil {
		return nil, err
	}

	specs, err := t.scanner.Find(path.Join(filepath.ToSlash(t.opts.Paths.Src), "app"), scanner.Suffix(".spec.js", ".mock.js"))
	if err != nil {
		return nil, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning specs", err).WithStage(Stage)
	}

	files := make([]string, 0, len(vendored.JS)+len(app)+len(specs))
	files = append(files, vendored.JS...)
	files = append(files, app...)
	files = append(files, specs...)

	return &Manifest{
		Files:      files,
		Preprocess: app,
		Reporters:  Reporters(t.opts.Environment),
		Port:       t.opts.Ports.Karma,
		ReportDir:  ReportDir,
	}, nil
}

// WriteManifest writes the manifest under the tmp dir and returns its
// path.
func (t *Task) WriteManifest(ctx context.Context) (string, error) {
	m, err := t.Manifest(ctx)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", gerrors.NewInternalError(gerrors.ErrCodeInternalError, "encoding test manifest", err)
	}

	target := filepath.Join(t.opts.TmpDir(), FilesName)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "creating "+filepath.Dir(target), err)
	}
	if err := os.WriteFile(target, append(data, '\n'), 0o644); err != nil {
		return "", gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "writing "+target, err)
	}
	return target, nil
}

// Run executes the suite once.
func (t *Task) Run(ctx context.Context) error {
	return t.run(ctx, false)
}

// RunAuto starts karma in watch mode; it returns when karma exits or
// ctx is cancelled.
func (t *Task) RunAuto(ctx context.Context) error {
	err := t.run(ctx, true)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Args returns the karma command line.
func (t *Task) Args(auto bool) []string {
	args := []string{"start", ConfigName}
	if auto {
		args = append(args, "--no-single-run", "--auto-watch")
	} else {
		args = append(args, "--single-run", "--no-auto-watch")
	}
	return append(args,
		"--port", strconv.Itoa(t.opts.Ports.Karma),
		"--reporters", strings.Join(Reporters(t.opts.Environment), ","),
	)
}

func (t *Task) run(ctx context.Context, auto bool) error {
	start := time.Now()
	if _, err := t.WriteManifest(ctx); err != nil {
		return err
	}

	w := &summaryWriter{onResult: t.result}
	cmd := tool.Command{
		Name:   t.opts.Tools.Karma,
		Args:   t.Args(auto),
		Dir:    t.scanner.Root(),
		Env:    []string{"GINGER_ENV=" + t.opts.Environment},
		Stdout: w,
	}
	if t.output != nil {
		cmd.Stdout = io.MultiWriter(t.output, w)
	}

	out, err := t.runner.Run(ctx, cmd)
	w.Flush()
	summary, found := ParseSummary(string(out))

	if err != nil || (found && !summary.Passed()) {
		diags := t.parser.Parse(Stage, string(out))
		t.collector.Replace(Stage, diags)
		msg := "karma failed"
		if found {
			msg = strconv.Itoa(summary.Failed) + " of " + strconv.Itoa(summary.Total) + " specs failed"
		}
		ge := gerrors.NewToolError(Stage, msg, err).WithContext("output", string(out))
		if len(diags) > 0 {
			ge = ge.WithLocation(diags[0].File, diags[0].Line, diags[0].Column)
		}
		return ge
	}

	t.collector.ClearStage(Stage)
	t.logger.Info(ctx, "Tests passed", "executed", summary.Executed, "duration", time.Since(start))
	return nil
}

func (t *Task) result(s Summary) {
	if t.onResult != nil {
		t.onResult(s)
	}
}

// summaryWriter watches streamed output for result lines.
type summaryWriter struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	onResult func(Summary)
}

func (w *summaryWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Partial line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.scan(line)
	}
	return len(p), nil
}

// Flush scans a trailing line without a newline.
func (w *summaryWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.scan(w.buf.String())
		w.buf.Reset()
	}
}

// scan reports lines that end a run. Progress output repeats the
// "Executed" line while specs run, so only lines carrying the final
// SUCCESS or ERROR marker count.
func (w *summaryWriter) scan(line string) {
	if !strings.Contains(line, "SUCCESS") && !strings.Contains(line, "ERROR") {
		return
	}
	if s, ok := ParseSummary(line); ok {
		w.onResult(s)
	}
}
