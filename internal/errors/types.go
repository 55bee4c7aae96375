// Package errors provides the structured error types used across the
// ginger pipeline and a central handler that logs them by category.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeTool marks a failure reported by an external compiler,
	// linter, minifier or test runner.
	ErrorTypeTool     ErrorType = "tool"
	ErrorTypeNetwork  ErrorType = "network"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeCycle    ErrorType = "cycle"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeInternal ErrorType = "internal"
)

// GingerError is a structured error type with context.
type GingerError struct {
	Type        ErrorType
	Code        string
	Message     string
	Stage       string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *GingerError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GingerError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *GingerError) Is(target error) bool {
	var t *GingerError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *GingerError) WithContext(key string, value interface{}) *GingerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *GingerError) WithLocation(filePath string, line, column int) *GingerError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithStage labels the pipeline stage that failed.
func (e *GingerError) WithStage(stage string) *GingerError {
	e.Stage = stage

	return e
}

// NewToolError creates a tool failure. Tool failures are recoverable:
// the stage that produced them stops, the process keeps running.
func NewToolError(stage, message string, cause error) *GingerError {
	return &GingerError{
		Type:        ErrorTypeTool,
		Code:        ErrCodeToolFailed,
		Stage:       stage,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(code, message string, cause error) *GingerError {
	return &GingerError{
		Type:        ErrorTypeNetwork,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string, cause error) *GingerError {
	return &GingerError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewCycleError creates a dependency cycle error. path lists the nodes
// of the cycle, first node repeated at the end.
func NewCycleError(kind string, path []string) *GingerError {
	return &GingerError{
		Type:        ErrorTypeCycle,
		Code:        ErrCodeCycle,
		Message:     fmt.Sprintf("%s dependency cycle: %s", kind, strings.Join(path, " -> ")),
		Context:     map[string]interface{}{"cycle": path},
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *GingerError {
	return &GingerError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *GingerError {
	return &GingerError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var ge *GingerError
	if errors.As(err, &ge) {
		return ge.Recoverable
	}

	return false
}

// IsToolError checks if an error was reported by an external tool.
func IsToolError(err error) bool {
	return hasType(err, ErrorTypeTool)
}

// IsCycleError checks if an error is a dependency cycle.
func IsCycleError(err error) bool {
	return hasType(err, ErrorTypeCycle)
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

func hasType(err error, t ErrorType) bool {
	var ge *GingerError
	if errors.As(err, &ge) {
		return ge.Type == t
	}

	return false
}

// ErrorHandler provides centralized error handling.
type ErrorHandler struct {
	logger Logger
}

// Logger interface for error logging.
type Logger interface {
	Error(ctx context.Context, err error, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
}

// NewErrorHandler creates a new error handler.
func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs an error according to its category. Recoverable errors
// are logged as warnings; the caller decides whether to stop.
func (h *ErrorHandler) Handle(ctx context.Context, err error) {
	if err == nil || h.logger == nil {
		return
	}

	var ge *GingerError
	if !errors.As(err, &ge) {
		h.logger.Error(ctx, err, "Unhandled error occurred")
		return
	}

	switch ge.Type {
	case ErrorTypeTool:
		h.logger.Warn(ctx, err, "Tool failure",
			"stage", ge.Stage,
			"code", ge.Code,
			"file", ge.FilePath)
	case ErrorTypeNetwork:
		h.logger.Warn(ctx, err, "Network failure",
			"code", ge.Code)
	case ErrorTypeCycle:
		h.logger.Error(ctx, err, "Dependency cycle detected",
			"code", ge.Code)
	default:
		h.logger.Error(ctx, err, "Error occurred",
			"type", ge.Type,
			"code", ge.Code)
	}
}

// Common error codes.
const (
	ErrCodeToolFailed     = "ERR_TOOL_FAILED"
	ErrCodeToolNotFound   = "ERR_TOOL_NOT_FOUND"
	ErrCodeCycle          = "ERR_DEPENDENCY_CYCLE"
	ErrCodeConfigInvalid  = "ERR_CONFIG_INVALID"
	ErrCodeConfigMissing  = "ERR_CONFIG_MISSING"
	ErrCodeRequestFailed  = "ERR_REQUEST_FAILED"
	ErrCodeBadResponse    = "ERR_BAD_RESPONSE"
	ErrCodeListenFailed   = "ERR_LISTEN_FAILED"
	ErrCodeFileNotFound   = "ERR_FILE_NOT_FOUND"
	ErrCodeWriteFailed    = "ERR_WRITE_FAILED"
	ErrCodeMarkerNotFound = "ERR_MARKER_NOT_FOUND"
	ErrCodeInternalError  = "ERR_INTERNAL"
)
