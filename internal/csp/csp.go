// Package csp renders the Content-Security-Policy meta tag for the
// active environment.
package csp

import (
	"html"
	"sort"
	"strings"

	"github.com/olivejs/ginger/internal/config"
)

// Policy returns the directives of env joined with "; ", sorted by
// directive name. It reports false when env has no entry or the entry
// is empty.
func Policy(policies map[string]map[string]string, env string) (string, bool) {
	directives, ok := policies[env]
	if !ok || len(directives) == 0 {
		return "", false
	}

	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		sources := strings.Join(strings.Fields(directives[name]), " ")
		if sources == "" {
			parts = append(parts, name)
			continue
		}
		parts = append(parts, name+" "+sources)
	}
	return strings.Join(parts, "; "), true
}

// MetaTag renders the meta element, or "" when there is no policy.
func MetaTag(policies map[string]map[string]string, env string) string {
	policy, ok := Policy(policies, env)
	if !ok {
		return ""
	}
	return `<meta http-equiv="Content-Security-Policy" content="` + html.EscapeString(policy) + `">`
}

// Lines returns the injection lines for the csp region of opts.
func Lines(opts *config.Options) []string {
	if tag := MetaTag(opts.CSP, opts.Environment); tag != "" {
		return []string{tag}
	}
	return nil
}
