// Package errors provides centralized error definitions and error handling utilities
// for nwbprep. It defines sentinel errors, domain error types for the preparation
// pipeline, semantic error types, and classification helpers.
//
// # Error Types
//
// Domain-specific errors describe where in a preparation run something failed:
//   - StepError: a pipeline step (paths, parse_log, save_task, ...) failed
//   - ParseError: a session log or metadata file could not be decoded
//
// Semantic errors represent common error conditions:
//   - NotFoundError: a file or directory the run needs does not exist
//   - ValidationError: invalid input, such as an empty session identifier
//
// # Usage
//
//	err := errors.NewStepError(errors.StepCollectMetadata, cause).WithSession("S1_E1_01")
//
//	if errors.Is(err, errors.ErrNotFound) { ... }
//
//	var stepErr *errors.StepError
//	if errors.As(err, &stepErr) { ... }
//
// Nothing in nwbprep recovers from these errors. They exist so the command
// line can say which step failed and so tests can assert on the cause.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityWarning is for conditions that did not stop the run.
	SeverityWarning Severity = iota
	// SeverityError is for errors that stopped the run.
	SeverityError
	// SeverityCritical is for errors that may have left the session folder inconsistent.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates that a required file or directory does not exist.
	ErrNotFound = New("not found")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrParse indicates that a session log or YAML file could not be decoded.
	ErrParse = New("parse failed")
	// ErrSessionLocked indicates that another process is preparing the same session.
	ErrSessionLocked = New("session is locked by another process")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PrepError is the base interface for all nwbprep errors.
type PrepError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity
}

// baseError provides common functionality for all error types.
type baseError struct {
	message  string
	cause    error
	severity Severity
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// Step names a stage of a preparation run.
type Step string

// Preparation steps, in run order.
const (
	StepPaths           Step = "paths"
	StepLock            Step = "lock"
	StepParseLog        Step = "parse_log"
	StepSaveTask        Step = "save_task"
	StepCollectMetadata Step = "collect_metadata"
	StepSaveMetadata    Step = "save_metadata"
)

// StepError records which preparation step failed.
//
// Example:
//
//	err := errors.NewStepError(errors.StepSaveTask, cause).WithSession("S1_E1_01")
//	fmt.Println(err) // "save_task failed [session=S1_E1_01]: <cause>"
type StepError struct {
	baseError
	Step    Step
	Session string
}

// NewStepError creates a new StepError wrapping cause.
func NewStepError(step Step, cause error) *StepError {
	return &StepError{
		baseError: baseError{
			message:  string(step) + " failed",
			cause:    cause,
			severity: SeverityError,
		},
		Step: step,
	}
}

// WithSession adds the session name to the error context.
func (e *StepError) WithSession(name string) *StepError {
	e.Session = name
	return e
}

// WithSeverity sets the error severity.
func (e *StepError) WithSeverity(s Severity) *StepError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *StepError) Error() string {
	prefix := e.message
	if e.Session != "" {
		prefix = fmt.Sprintf("%s [session=%s]", e.message, e.Session)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *StepError) Is(target error) bool {
	if t, ok := target.(*StepError); ok {
		return t.Step == "" || t.Step == e.Step
	}
	return false
}

// ParseError represents a file whose contents could not be decoded.
// Line is 1-based; zero means the whole document.
type ParseError struct {
	baseError
	File string
	Line int
}

// NewParseError creates a new ParseError for file.
func NewParseError(file string, cause error) *ParseError {
	return &ParseError{
		baseError: baseError{
			message:  "parse failed",
			cause:    cause,
			severity: SeverityError,
		},
		File: file,
	}
}

// WithLine sets the offending line number.
func (e *ParseError) WithLine(line int) *ParseError {
	e.Line = line
	return e
}

// Error returns the formatted error message.
func (e *ParseError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line=%d", e.Line))
	}

	prefix := e.message
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", e.message, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *ParseError) Is(target error) bool {
	if _, ok := target.(*ParseError); ok {
		return true
	}
	return target == ErrParse
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a file or directory that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("metadata directory", "../metadata")
//	fmt.Println(err) // "metadata directory '../metadata' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityError,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	return e.baseError.Error()
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return target == ErrNotFound
}

// ValidationError represents invalid input.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityError,
		},
	}
}

// WithField sets the offending field name.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue sets the offending value.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed")
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" [field=%s]", e.Field))
	}
	sb.WriteString(": ")
	sb.WriteString(e.message)
	if e.Value != nil {
		sb.WriteString(fmt.Sprintf(" (got: %v)", e.Value))
	}
	return sb.String()
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Error Classification
// -----------------------------------------------------------------------------

// IsNotFound reports whether err is, or wraps, a missing file or directory.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsParse reports whether err is, or wraps, a decoding failure.
func IsParse(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PrepError.
func GetSeverity(err error) Severity {
	var prepErr PrepError
	if As(err, &prepErr) {
		return prepErr.Severity()
	}
	return SeverityError
}

// FailedStep returns the pipeline step recorded in err, if any.
func FailedStep(err error) (Step, bool) {
	var stepErr *StepError
	if As(err, &stepErr) {
		return stepErr.Step, true
	}
	return "", false
}
