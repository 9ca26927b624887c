package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeCanceled      ErrorType = "canceled"
	ErrorTypeCommand       ErrorType = "command"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Sentinels for errors.Is; they match any *Error of the same type.
var (
	ErrConfiguration = &Error{Type: ErrorTypeConfiguration}
	ErrCanceled      = &Error{Type: ErrorTypeCanceled}
)

// Error represents a typed error. Field names the offending setting for
// configuration errors; Err carries the underlying cause, if any.
type Error struct {
	Type    ErrorType
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("%s error (%s): %s", e.Type, e.Field, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type, so
// errors.Is(err, ErrConfiguration) works for any configuration error.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return other.Type == e.Type
}

// NewConfigurationError returns a ConfigurationError for the named setting.
func NewConfigurationError(field, format string, args ...interface{}) *Error {
	return &Error{
		Type:    ErrorTypeConfiguration,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewCanceledError wraps the context error that ended a wait.
func NewCanceledError(target string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeCanceled,
		Field:   target,
		Message: "wait abandoned",
		Err:     cause,
	}
}

// NewCommandError reports a failed job run.
func NewCommandError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeCommand,
		Message: message,
		Err:     cause,
	}
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsCanceled reports whether err is or wraps an abandoned wait.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// TypeOf returns the ErrorType of the first *Error in err's chain.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeCommand:
		return true
	case ErrorTypeConfiguration, ErrorTypeCanceled:
		return false
	default:
		return false
	}
}
