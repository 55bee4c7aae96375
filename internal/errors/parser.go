package errors

import (
	"regexp"
	"strconv"
	"strings"
)

type errorPattern struct {
	regex    *regexp.Regexp
	severity ErrorSeverity
	// locates marks a pattern that only carries the position of the
	// previous message, as dart-sass prints it on a later line.
	locates     bool
	parseFields func(matches []string) (file string, line int, column int, message string)
}

// ErrorParser turns raw tool output (sass, eslint, karma, postcss) into
// diagnostics. Lines that match no pattern are ignored unless they look
// like an error.
type ErrorParser struct {
	patterns []errorPattern
}

// NewErrorParser creates a new error parser.
func NewErrorParser() *ErrorParser {
	return &ErrorParser{patterns: buildToolPatterns()}
}

// Parse parses tool output into diagnostics labeled with stage.
func (ep *ErrorParser) Parse(stage, output string) []Diagnostic {
	var diags []Diagnostic
	var currentFile string

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if d, locates, ok := ep.match(line); ok {
			if locates {
				if n := len(diags); n > 0 && diags[n-1].File == "" {
					diags[n-1].File = d.File
					diags[n-1].Line = d.Line
					diags[n-1].Column = d.Column
				}
				continue
			}
			if d.File == "" {
				d.File = currentFile
			}
			d.Stage = stage
			diags = append(diags, d)
			continue
		}

		// eslint's stylish formatter prints the file on its own line
		// followed by indented "line:col  error  message" rows.
		if !strings.HasPrefix(raw, " ") && looksLikePath(line) {
			currentFile = line
			continue
		}

		lower := strings.ToLower(line)
		if strings.HasPrefix(lower, "error") || strings.Contains(lower, " failed") {
			diags = append(diags, Diagnostic{
				Stage:    stage,
				Message:  line,
				Severity: ErrorSeverityError,
			})
		}
	}

	return diags
}

func (ep *ErrorParser) match(line string) (Diagnostic, bool, bool) {
	for _, p := range ep.patterns {
		matches := p.regex.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		file, ln, col, msg := p.parseFields(matches)
		severity := p.severity
		if strings.HasPrefix(strings.ToLower(msg), "warning") {
			severity = ErrorSeverityWarning
		}

		return Diagnostic{
			File:     file,
			Line:     ln,
			Column:   col,
			Message:  msg,
			Severity: severity,
		}, p.locates, true
	}

	return Diagnostic{}, false, false
}

func looksLikePath(line string) bool {
	if strings.ContainsAny(line, " \t") {
		return false
	}
	for _, ext := range []string{".js", ".scss", ".css", ".html"} {
		if strings.HasSuffix(line, ext) {
			return true
		}
	}

	return false
}

func buildToolPatterns() []errorPattern {
	return []errorPattern{
		{
			// dart-sass: "  src/app/index.scss 12:3  root stylesheet"
			regex:    regexp.MustCompile(`^(\S+\.s?css) (\d+):(\d+)\s+(.+)$`),
			severity: ErrorSeverityError,
			locates:  true,
			parseFields: func(m []string) (string, int, int, string) {
				line, _ := strconv.Atoi(m[2])
				column, _ := strconv.Atoi(m[3])
				return m[1], line, column, m[4]
			},
		},
		{
			// eslint stylish: "12:3  error  Missing semicolon  semi"
			regex:    regexp.MustCompile(`^(\d+):(\d+)\s+(error|warning)\s+(.+)$`),
			severity: ErrorSeverityError,
			parseFields: func(m []string) (string, int, int, string) {
				line, _ := strconv.Atoi(m[1])
				column, _ := strconv.Atoi(m[2])
				msg := m[4]
				if m[3] == "warning" {
					msg = "warning: " + msg
				}
				return "", line, column, msg
			},
		},
		{
			// compact and unix formats: "file:line:col: message"
			regex:    regexp.MustCompile(`^(.+?):(\d+):(\d+):? (.+)$`),
			severity: ErrorSeverityError,
			parseFields: func(m []string) (string, int, int, string) {
				line, _ := strconv.Atoi(m[2])
				column, _ := strconv.Atoi(m[3])
				return m[1], line, column, m[4]
			},
		},
		{
			regex:    regexp.MustCompile(`^Error: (.+)$`),
			severity: ErrorSeverityError,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[1]
			},
		},
	}
}
