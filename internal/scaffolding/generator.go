// Package scaffolding writes new seed projects and application pods
// from built-in templates.
package scaffolding

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/olivejs/ginger/internal/appinfo"
	"github.com/olivejs/ginger/internal/config"
	gerrors "github.com/olivejs/ginger/internal/errors"
)

// FileTemplate is one generated file. Path and Content are both
// templates; they use [[ ]] delimiters so Angular's {{ }} bindings pass
// through untouched.
type FileTemplate struct {
	Path    string
	Content string
}

// TemplateContext is the data every template is executed with.
type TemplateContext struct {
	// Name is the npm package name of the project.
	Name    string
	Version string
	// Module is the root Angular module.
	Module  string
	// Pod is the pod being generated, empty for a project scaffold.
	Pod     string
	Options *config.Options
}

// Result lists what a generation wrote and what it left alone.
type Result struct {
	Created []string
	Skipped []string
}

// Generator renders FileTemplates below a directory.
type Generator struct {
	force bool
	funcs template.FuncMap
}

// Option configures a Generator.
type Option func(*Generator)

// WithForce overwrites files that already exist.
func WithForce(force bool) Option {
	return func(g *Generator) { g.force = force }
}

// NewGenerator creates a generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{}
	g.funcs = template.FuncMap{
		"pascal": Pascal,
		"camel":  Camel,
		"title":  appinfo.Title,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate renders files into dir. Existing files are skipped unless the
// generator forces overwrites.
func (g *Generator) Generate(dir string, files []FileTemplate, ctx TemplateContext) (*Result, error) {
	res := &Result{}
	for _, f := range files {
		rel, err := g.render(f.Path+":path", f.Path, ctx)
		if err != nil {
			return res, err
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))

		if !g.force {
			if _, err := os.Stat(target); err == nil {
				res.Skipped = append(res.Skipped, rel)
				continue
			}
		}

		content, err := g.render(rel, f.Content, ctx)
		if err != nil {
			return res, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return res, gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "cannot create directory", err).
				WithContext("path", filepath.Dir(target))
		}
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return res, gerrors.NewIOError(gerrors.ErrCodeWriteFailed, "cannot write file", err).
				WithContext("path", target)
		}
		res.Created = append(res.Created, rel)
	}
	return res, nil
}

func (g *Generator) render(name, text string, ctx TemplateContext) (string, error) {
	tmpl, err := template.New(name).Delims("[[", "]]").Funcs(g.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", gerrors.NewInternalError(gerrors.ErrCodeInternalError, "bad template "+name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", gerrors.NewInternalError(gerrors.ErrCodeInternalError, "cannot render "+name, err)
	}
	return buf.String(), nil
}

var (
	packageNameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	podNameRe     = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)
)

// ValidateProjectName checks name against npm package naming rules.
func ValidateProjectName(name string) error {
	if name == "" {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid, "project name cannot be empty", nil)
	}
	if len(name) > 214 || !packageNameRe.MatchString(name) {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid project name %q", name), nil).
			WithContext("hint", "use lower case letters, digits, '.', '-' and '_'")
	}
	return nil
}

// ValidatePodName accepts kebab-case names such as "user-profile".
func ValidatePodName(name string) error {
	if !podNameRe.MatchString(name) {
		return gerrors.NewConfigError(gerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("invalid pod name %q", name), nil).
			WithContext("hint", "use kebab-case, e.g. user-profile")
	}
	return nil
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

// Pascal turns "user-profile" into "UserProfile".
func Pascal(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == '.' })
	for i, p := range parts {
		parts[i] = titleCaser.String(p)
	}
	return strings.Join(parts, "")
}

// Camel turns "user-profile" into "userProfile".
func Camel(name string) string {
	p := Pascal(name)
	if p == "" {
		return p
	}
	return strings.ToLower(p[:1]) + p[1:]
}
