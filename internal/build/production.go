// Package build produces the distribution bundle: the injected document
// gets the template cache script, its build blocks are concatenated,
// minified and renamed after their content hash, references are
// rewritten to the hashed names and the document itself is minified.
package build

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"

	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/inject"
	"github.com/olivejs/ginger/internal/logging"
	"github.com/olivejs/ginger/internal/templates"
)

// Stage labels, in execution order.
const (
	StagePartials  = "partials"
	StageBundleCSS = "bundle:css"
	StageBundleJS  = "bundle:js"
	StageRev       = "rev"
	StageMinify    = "minify"
)

// ManifestName is the revision manifest written next to the bundle.
const ManifestName = "rev-manifest.json"

// Artifacts describes one finished build.
type Artifacts struct {
	Index    string        `json:"index"`
	Manifest Manifest      `json:"manifest"`
	Bundles  []string      `json:"bundles"`
	Duration time.Duration `json:"duration"`
}

// Pipeline is the production build of the app task.
type Pipeline struct {
	opts      *config.Options
	minifier  *minify.M
	metrics   *BuildMetrics
	collector *gerrors.ErrorCollector
	logger    logging.Logger
}

// NewPipeline creates a production build pipeline.
func NewPipeline(opts *config.Options, metrics *BuildMetrics, collector *gerrors.ErrorCollector, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = NewBuildMetrics()
	}
	if collector == nil {
		collector = gerrors.NewErrorCollector()
	}

	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepSpecialComments: true,
		KeepDefaultAttrVals: true,
		KeepDocumentTags:    true,
		KeepEndTags:         true,
		KeepQuotes:          true,
	})

	return &Pipeline{
		opts:      opts,
		minifier:  m,
		metrics:   metrics,
		collector: collector,
		logger:    logger.WithComponent("build"),
	}
}

// Metrics exposes the run statistics.
func (p *Pipeline) Metrics() *BuildMetrics { return p.metrics }

// Run is the task action.
func (p *Pipeline) Run(ctx context.Context) error {
	_, err := p.Build(ctx)
	return err
}

// Build runs every stage in order. The first failing stage stops the
// build with a tool error carrying the stage label.
func (p *Pipeline) Build(ctx context.Context) (*Artifacts, error) {
	start := time.Now()
	artifacts, stage, err := p.build(ctx)
	duration := time.Since(start)
	p.metrics.RecordBuild(duration, stage, err)

	if err != nil {
		p.collector.Replace("build", []gerrors.Diagnostic{{
			Stage:     stage,
			Message:   err.Error(),
			Severity:  gerrors.ErrorSeverityError,
			Timestamp: time.Now(),
		}})
		p.logger.Error(ctx, err, "Production build failed", "stage", stage)
		return nil, err
	}

	p.collector.ClearStage("build")
	artifacts.Duration = duration
	p.logger.Info(ctx, "Production build finished", "bundles", len(artifacts.Bundles), "duration", duration)
	return artifacts, nil
}

func (p *Pipeline) build(ctx context.Context) (*Artifacts, string, error) {
	source := filepath.Join(p.opts.ServeDir(), inject.IndexName)
	doc, err := os.ReadFile(source)
	if err != nil {
		return nil, StagePartials, p.stageError(StagePartials, "reading injected document", err)
	}

	doc, err = p.injectPartials(doc)
	if err != nil {
		return nil, StagePartials, p.stageError(StagePartials, "injecting template cache", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, StagePartials, err
	}

	dist := p.opts.DistDir()
	bundler := NewBundler(p.opts.Root, true,
		path.Join(filepath.ToSlash(p.opts.Paths.Tmp), "serve"),
		path.Join(filepath.ToSlash(p.opts.Paths.Tmp), "partials"),
		filepath.ToSlash(p.opts.Paths.Src),
		".",
	)

	manifest := Manifest{}
	blocks := ParseBlocks(doc)
	for _, typ := range []string{"css", "js"} {
		stage := StageBundleCSS
		if typ == "js" {
			stage = StageBundleJS
		}
		for _, block := range blocks {
			if block.Type != typ {
				continue
			}
			content, err := bundler.Bundle(block)
			if err != nil {
				return nil, stage, p.stageError(stage, "bundling "+block.Output, err)
			}
			hashed := RevName(block.Output, content)
			if err := writeFile(filepath.Join(dist, filepath.FromSlash(hashed)), content); err != nil {
				return nil, stage, p.stageError(stage, "writing "+hashed, err)
			}
			manifest[block.Output] = hashed
		}
		if err := ctx.Err(); err != nil {
			return nil, stage, err
		}
	}
	doc = ReplaceBlocks(doc, blocks, func(b Block) string { return b.Tag(b.Output) })

	doc, err = RewriteReferences(doc, manifest)
	if err != nil {
		return nil, StageRev, p.stageError(StageRev, "rewriting references", err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, StageRev, p.stageError(StageRev, "encoding manifest", err)
	}
	if err := writeFile(filepath.Join(dist, ManifestName), append(data, '\n')); err != nil {
		return nil, StageRev, p.stageError(StageRev, "writing manifest", err)
	}

	doc, err = p.minifier.Bytes("text/html", doc)
	if err != nil {
		return nil, StageMinify, p.stageError(StageMinify, "minifying document", err)
	}
	index := filepath.Join(dist, inject.IndexName)
	if err := writeFile(index, doc); err != nil {
		return nil, StageMinify, p.stageError(StageMinify, "writing document", err)
	}

	bundles := make([]string, 0, len(manifest))
	for _, hashed := range manifest {
		bundles = append(bundles, hashed)
	}
	sort.Strings(bundles)

	return &Artifacts{Index: index, Manifest: manifest, Bundles: bundles}, "", nil
}

// injectPartials references the template cache script generated by the
// templates task.
func (p *Pipeline) injectPartials(doc []byte) ([]byte, error) {
	script := filepath.Join(p.opts.PartialsDir(), templates.FileName)
	if _, err := os.Stat(script); err != nil {
		return nil, err
	}
	out, _, err := inject.Replace(doc, inject.HTMLInject("partials"), []string{inject.Tag(templates.FileName)})
	return out, err
}

func (p *Pipeline) stageError(stage, msg string, cause error) error {
	return gerrors.NewToolError(stage, msg, cause)
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}
