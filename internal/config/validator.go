package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "session.subject")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.ProjectPath) == "" {
		errors = append(errors, ValidationError{
			Field:   "project_path",
			Value:   c.ProjectPath,
			Message: "must not be empty",
		})
	}

	errors = append(errors, c.validateSession()...)
	errors = append(errors, c.validateMetadata()...)
	errors = append(errors, c.validateTask()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateSession validates the session identifiers
func (c *Config) validateSession() []ValidationError {
	var errors []ValidationError

	fields := []struct {
		name  string
		value string
	}{
		{"session.subject", c.Session.Subject},
		{"session.experiment", c.Session.Experiment},
		{"session.session", c.Session.Session},
	}
	for _, f := range fields {
		switch {
		case strings.TrimSpace(f.value) == "":
			errors = append(errors, ValidationError{
				Field:   f.name,
				Value:   f.value,
				Message: "must not be empty",
			})
		case strings.ContainsAny(f.value, `/\`) || f.value == "." || f.value == "..":
			errors = append(errors, ValidationError{
				Field:   f.name,
				Value:   f.value,
				Message: "must be a single folder name",
			})
		}
	}

	return errors
}

// validateMetadata validates the MetadataConfig
func (c *Config) validateMetadata() []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(c.Metadata.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "metadata.dir",
			Value:   c.Metadata.Dir,
			Message: "path contains invalid null character",
		})
	}

	if strings.TrimSpace(c.Metadata.Select) == "" {
		errors = append(errors, ValidationError{
			Field:   "metadata.select",
			Value:   c.Metadata.Select,
			Message: "must not be empty",
		})
	}

	for i, pattern := range c.Metadata.Ignore {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("metadata.ignore[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

// validateTask validates the TaskConfig
func (c *Config) validateTask() []ValidationError {
	var errors []ValidationError

	if c.Settings.ParseLog && strings.TrimSpace(c.Task.Select) == "" {
		errors = append(errors, ValidationError{
			Field:   "task.select",
			Value:   c.Task.Select,
			Message: "must not be empty when settings.parse_log is enabled",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
