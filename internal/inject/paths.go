package inject

import (
	"html"
	"path"
	"path/filepath"
	"strings"
)

// Transform maps a file path to the reference written into a document.
type Transform func(p string) string

// StripRoots removes the first matching root prefix from a
// slash-separated path, leaving a reference relative to the server
// root. Paths under no root are returned cleaned.
func StripRoots(roots ...string) Transform {
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.Trim(path.Clean(filepath.ToSlash(r)), "/")
		if r != "" && r != "." {
			cleaned = append(cleaned, r)
		}
	}

	return func(p string) string {
		p = strings.TrimPrefix(path.Clean(filepath.ToSlash(p)), "/")
		for _, r := range cleaned {
			if p == r {
				return ""
			}
			if strings.HasPrefix(p, r+"/") {
				return strings.TrimPrefix(p, r+"/")
			}
		}
		return p
	}
}

// RelativeTo makes paths relative to the directory of the document.
func RelativeTo(docDir string) Transform {
	return func(p string) string {
		rel, err := filepath.Rel(docDir, p)
		if err != nil {
			return filepath.ToSlash(p)
		}
		return filepath.ToSlash(rel)
	}
}

// Tag renders the reference for a file by extension. Unknown
// extensions render as nothing.
func Tag(ref string) string {
	escaped := html.EscapeString(ref)
	switch strings.ToLower(path.Ext(ref)) {
	case ".css":
		return `<link rel="stylesheet" href="` + escaped + `">`
	case ".js":
		return `<script src="` + escaped + `"></script>`
	case ".html":
		return `<link rel="import" href="` + escaped + `">`
	default:
		return ""
	}
}

// Tags applies t to every path and renders the tags, dropping paths
// without a known tag.
func Tags(paths []string, t Transform) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if t != nil {
			p = t(p)
		}
		if tag := Tag(p); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// SCSSImports renders @import lines for stylesheet partials, relative
// to the root stylesheet's directory and without extension.
func SCSSImports(paths []string, rootDir string) []string {
	rel := RelativeTo(rootDir)
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		r := rel(p)
		r = strings.TrimSuffix(r, path.Ext(r))
		out = append(out, `@import "`+r+`";`)
	}
	return out
}
