// Package templates inlines the application's HTML views into a single
// script that registers each of them in Angular's $templateCache, so a
// production page needs no request per template.
package templates

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/scanner"
)

// Stage labels failures of this task.
const Stage = "templates"

// FileName is the generated script.
const FileName = "templateCacheHtml.js"

// DefaultModule is the Angular module the cache is attached to.
const DefaultModule = "app"

// Template is one cached view.
type Template struct {
	// Key is the URL the application requests, relative to src/app.
	Key     string
	Content []byte
}

// NewMinifier returns an HTML minifier that keeps what Angular views
// rely on (attribute quotes, end tags, default attribute values).
func NewMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &html.Minifier{
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})
	return m
}

// Task is the template cache task.
type Task struct {
	opts     *config.Options
	scanner  *scanner.Scanner
	minifier *minify.M
	module   string
	logger   logging.Logger
}

// New creates the template cache task.
func New(opts *config.Options, sc *scanner.Scanner, logger logging.Logger) *Task {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Task{
		opts:     opts,
		scanner:  sc,
		minifier: NewMinifier(),
		module:   DefaultModule,
		logger:   logger.WithComponent(Stage),
	}
}

// Collect reads and minifies every view under src/app.
func (t *Task) Collect(ctx context.Context) ([]Template, error) {
	appDir := path.Join(filepath.ToSlash(t.opts.Paths.Src), "app")
	files, err := t.scanner.FindAndRead(ctx, appDir, scanner.Ext(".html"))
	if err != nil {
		return nil, gerrors.NewIOError(gerrors.ErrCodeFileNotFound, "scanning templates", err).WithStage(Stage)
	}

	out := make([]Template, 0, len(files))
	for _, f := range files {
		minified, err := t.minifier.Bytes("text/html", f.Content)
		if err != nil {
			return nil, gerrors.NewToolError(Stage, "minifying template", err).WithLocation(f.Path, 0, 0)
		}
		out = append(out, Template{
			Key:     strings.TrimPrefix(f.Path, appDir+"/"),
			Content: minified,
		})
	}
	return out, nil
}

// Render builds the registration script.
func Render(module string, templates []Template) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "angular.module(%s).run(['$templateCache', function($templateCache) {\n", quote(module))
	for _, tpl := range templates {
		fmt.Fprintf(&b, "  $templateCache.put(%s, %s);\n", quote(tpl.Key), quote(string(tpl.Content)))
	}
	b.WriteString("}]);\n")
	return b.Bytes()
}

// Run writes the template cache script to tmp/partials and returns
// nothing else; the build injects it later.
func (t *Task) Run(ctx context.Context) error {
	start := time.Now()

	templates, err := t.Collect(ctx)
	if err != nil {
		return err
	}

	dir := t.opts.PartialsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "creating "+dir, err)
	}
	out := filepath.Join(dir, FileName)
	if err := os.WriteFile(out, Render(t.module, templates), 0o644); err != nil {
		return gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "writing "+out, err)
	}

	t.logger.Info(ctx, "Cached templates", "count", len(templates), "output", out, "duration", time.Since(start))
	return nil
}

var jsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	"\n", `\n`,
	"\r", `\r`,
	"\u2028", `\u2028`,
	"\u2029", `\u2029`,
	"</script", `<\/script`,
)

// quote renders s as a single-quoted JavaScript string literal.
func quote(s string) string {
	return "'" + jsEscaper.Replace(s) + "'"
}
