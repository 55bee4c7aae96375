package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Diagnostic is a single problem reported by a pipeline stage, usually
// parsed out of a tool's output.
type Diagnostic struct {
	Stage     string        `json:"stage"`
	File      string        `json:"file,omitempty"`
	Line      int           `json:"line,omitempty"`
	Column    int           `json:"column,omitempty"`
	Message   string        `json:"message"`
	Severity  ErrorSeverity `json:"severity"`
	Timestamp time.Time     `json:"timestamp"`
}

// ErrorSeverity represents the severity of a diagnostic.
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	if d.File == "" {
		return fmt.Sprintf("%s: %s: %s", d.Stage, d.Severity, d.Message)
	}

	return fmt.Sprintf("%s:%d:%d: %s: %s", d.File, d.Line, d.Column, d.Severity, d.Message)
}

// ErrorCollector keeps the latest diagnostics per stage. A stage that
// runs again replaces its previous diagnostics, so a fixed error
// disappears from the overlay on the next successful run.
type ErrorCollector struct {
	byStage map[string][]Diagnostic
	mutex   sync.RWMutex
}

// NewErrorCollector creates a new error collector.
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		byStage: make(map[string][]Diagnostic),
	}
}

// Add appends a diagnostic to its stage.
func (ec *ErrorCollector) Add(d Diagnostic) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	ec.byStage[d.Stage] = append(ec.byStage[d.Stage], d)
}

// Replace sets the diagnostics of a stage, dropping what was there.
func (ec *ErrorCollector) Replace(stage string, diags []Diagnostic) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if len(diags) == 0 {
		delete(ec.byStage, stage)
		return
	}
	now := time.Now()
	copied := make([]Diagnostic, len(diags))
	for i, d := range diags {
		d.Stage = stage
		if d.Timestamp.IsZero() {
			d.Timestamp = now
		}
		copied[i] = d
	}
	ec.byStage[stage] = copied
}

// ClearStage drops the diagnostics of a single stage.
func (ec *ErrorCollector) ClearStage(stage string) {
	ec.Replace(stage, nil)
}

// GetErrors returns all diagnostics ordered by stage name, then by
// insertion order within a stage.
func (ec *ErrorCollector) GetErrors() []Diagnostic {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	stages := make([]string, 0, len(ec.byStage))
	for stage := range ec.byStage {
		stages = append(stages, stage)
	}
	sort.Strings(stages)

	var result []Diagnostic
	for _, stage := range stages {
		result = append(result, ec.byStage[stage]...)
	}

	return result
}

// GetErrorsByFile returns diagnostics for a specific file.
func (ec *ErrorCollector) GetErrorsByFile(file string) []Diagnostic {
	var fileErrors []Diagnostic
	for _, d := range ec.GetErrors() {
		if d.File == file {
			fileErrors = append(fileErrors, d)
		}
	}

	return fileErrors
}

// HasErrors reports whether any diagnostic of error severity is held.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	for _, diags := range ec.byStage {
		for _, d := range diags {
			if d.Severity >= ErrorSeverityError {
				return true
			}
		}
	}

	return false
}

// Clear removes all diagnostics.
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.byStage = make(map[string][]Diagnostic)
}
