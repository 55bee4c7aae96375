// Package inject rewrites marker regions in documents. A region is the
// text between a start marker and the next end marker; injecting
// replaces whatever the region holds, so running the same injection
// twice gives the same document.
package inject

import (
	"bytes"
	"fmt"
	"regexp"
)

// Markers identifies a region.
type Markers struct {
	Name  string
	Start *regexp.Regexp
	End   *regexp.Regexp
}

// HTMLInject matches <!-- inject:name --> ... <!-- endinject -->.
func HTMLInject(name string) Markers {
	return Markers{
		Name:  "inject:" + name,
		Start: regexp.MustCompile(`<!--\s*inject:` + regexp.QuoteMeta(name) + `\s*-->`),
		End:   regexp.MustCompile(`<!--\s*endinject\s*-->`),
	}
}

// HTMLBower matches <!-- bower:ext --> ... <!-- endbower -->.
func HTMLBower(ext string) Markers {
	return Markers{
		Name:  "bower:" + ext,
		Start: regexp.MustCompile(`<!--\s*bower:` + regexp.QuoteMeta(ext) + `\s*-->`),
		End:   regexp.MustCompile(`<!--\s*endbower\s*-->`),
	}
}

// SCSSInject matches // injector ... // endinjector in a stylesheet.
func SCSSInject() Markers {
	return Markers{
		Name:  "injector",
		Start: regexp.MustCompile(`//\s*injector\b`),
		End:   regexp.MustCompile(`//\s*endinjector\b`),
	}
}

// SCSSBower matches // bower:scss ... // endbower in a stylesheet.
func SCSSBower() Markers {
	return Markers{
		Name:  "bower:scss",
		Start: regexp.MustCompile(`//\s*bower:scss\b`),
		End:   regexp.MustCompile(`//\s*endbower\b`),
	}
}

// Replace rewrites every region marked by m with lines, one per line,
// each indented like its start marker. It reports whether any region
// was found. A start marker without a matching end marker is an error.
func Replace(doc []byte, m Markers, lines []string) ([]byte, bool, error) {
	var out bytes.Buffer
	found := false
	rest := doc

	for {
		loc := m.Start.FindIndex(rest)
		if loc == nil {
			out.Write(rest)
			break
		}
		endLoc := m.End.FindIndex(rest[loc[1]:])
		if endLoc == nil {
			return doc, found, fmt.Errorf("%s: start marker without end marker", m.Name)
		}
		found = true

		indent := indentBefore(rest, loc[0])
		endStart := loc[1] + endLoc[0]
		endStop := loc[1] + endLoc[1]

		out.Write(rest[:loc[1]])
		out.WriteByte('\n')
		for _, line := range lines {
			out.WriteString(indent)
			out.WriteString(line)
			out.WriteByte('\n')
		}
		out.WriteString(indent)
		out.Write(rest[endStart:endStop])

		rest = rest[endStop:]
	}

	return out.Bytes(), found, nil
}

// indentBefore returns the whitespace between the previous newline and
// pos, or "" when anything other than whitespace precedes pos on its line.
func indentBefore(doc []byte, pos int) string {
	lineStart := bytes.LastIndexByte(doc[:pos], '\n') + 1
	prefix := doc[lineStart:pos]
	for _, c := range prefix {
		if c != ' ' && c != '\t' {
			return ""
		}
	}
	return string(prefix)
}

// Injection pairs a region with its content.
type Injection struct {
	Markers Markers
	Lines   []string
}

// Apply performs local injections in order, then vendor injections, so
// the vendor regions are always written last.
func Apply(doc []byte, local, vendor []Injection) ([]byte, error) {
	var err error
	for _, inj := range append(append([]Injection(nil), local...), vendor...) {
		doc, _, err = Replace(doc, inj.Markers, inj.Lines)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}
