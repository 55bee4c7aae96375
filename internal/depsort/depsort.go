// Package depsort orders Angular.js script files so each file comes
// after the files defining the modules it depends on.
//
// A call of the form angular.module('name', [deps...]) defines a module;
// angular.module('name') with a single argument retrieves one, which
// makes the file depend on wherever 'name' is defined. Modules that no
// candidate file defines (ngRoute, ui.router, ...) are external and
// ignored.
package depsort

import (
	"errors"
	"regexp"
	"sort"

	gerrors "github.com/olivejs/ginger/internal/errors"
	"github.com/olivejs/ginger/internal/graph"
)

// File is a candidate script.
type File struct {
	Path    string
	Content []byte
}

// Module holds what a single file declares.
type Module struct {
	Defines  []string
	Requires []string
}

var (
	// angular.module('x', ['a', "b"]) possibly spread over lines.
	defineRe = regexp.MustCompile(`(?s)angular\s*\.\s*module\s*\(\s*['"]([^'"]+)['"]\s*,\s*\[([^\]]*)\]`)
	// angular.module('x') used as a getter.
	getterRe = regexp.MustCompile(`(?s)angular\s*\.\s*module\s*\(\s*['"]([^'"]+)['"]\s*\)`)
	quotedRe = regexp.MustCompile(`['"]([^'"]+)['"]`)
	// Line and block comments, so commented-out declarations don't count.
	commentRe = regexp.MustCompile(`(?s)/\*.*?\*/|(^|[^:])//[^\n]*`)
)

// Analyze extracts module definitions and requirements from a script.
// Requirements include both declared dependencies and getter lookups;
// modules the file itself defines are dropped from Requires.
func Analyze(content []byte) Module {
	src := commentRe.ReplaceAll(content, []byte("$1"))

	var m Module
	defined := map[string]bool{}
	for _, match := range defineRe.FindAllSubmatch(src, -1) {
		name := string(match[1])
		if !defined[name] {
			defined[name] = true
			m.Defines = append(m.Defines, name)
		}
	}

	required := map[string]bool{}
	addRequire := func(name string) {
		if !defined[name] && !required[name] {
			required[name] = true
			m.Requires = append(m.Requires, name)
		}
	}
	for _, match := range defineRe.FindAllSubmatch(src, -1) {
		for _, dep := range quotedRe.FindAllSubmatch(match[2], -1) {
			addRequire(string(dep[1]))
		}
	}
	for _, match := range getterRe.FindAllSubmatch(src, -1) {
		addRequire(string(match[1]))
	}

	sort.Strings(m.Requires)
	return m
}

// Sort returns files ordered by module dependency. Files are first put
// in lexical path order, which is kept wherever dependencies allow. A
// cycle between files is reported as a cycle error naming the files.
func Sort(files []File) ([]File, error) {
	sorted := make([]File, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	byPath := make(map[string]File, len(sorted))
	modules := make(map[string]Module, len(sorted))
	definedBy := make(map[string]string)
	paths := make([]string, 0, len(sorted))

	for _, f := range sorted {
		if _, dup := byPath[f.Path]; dup {
			continue
		}
		byPath[f.Path] = f
		paths = append(paths, f.Path)

		m := Analyze(f.Content)
		modules[f.Path] = m
		for _, name := range m.Defines {
			// The lexically first definition wins.
			if _, ok := definedBy[name]; !ok {
				definedBy[name] = f.Path
			}
		}
	}

	deps := func(path string) []string {
		var out []string
		for _, name := range modules[path].Requires {
			if owner, ok := definedBy[name]; ok && owner != path {
				out = append(out, owner)
			}
		}
		return out
	}

	order, err := graph.TopoSort(paths, deps)
	if err != nil {
		var cycle *graph.CycleError
		if errors.As(err, &cycle) {
			ce := gerrors.NewCycleError("module", cycle.Path)
			ce.Cause = err
			return nil, ce
		}
		return nil, err
	}

	out := make([]File, len(order))
	for i, path := range order {
		out[i] = byPath[path]
	}
	return out, nil
}

// Paths is a convenience returning only the ordered paths.
func Paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
