package scyllastore

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeUnsupported   ErrorType = "unsupported"
	ErrorTypeRead          ErrorType = "read"
	ErrorTypeWrite         ErrorType = "write"
	ErrorTypeConnection    ErrorType = "connection"
	ErrorTypeState         ErrorType = "state"
)

// Error codes
const (
	ErrCodeMissingSchema     = "MISSING_SCHEMA"
	ErrCodeSchemaInvalid     = "SCHEMA_INVALID"
	ErrCodeConfigInvalid     = "CONFIG_INVALID"
	ErrCodeUnsupportedSearch = "UNSUPPORTED_SEARCH"
	ErrCodeInvalidIdentifier = "INVALID_IDENTIFIER"
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeReadFailed        = "READ_FAILED"
	ErrCodeWriteFailed       = "WRITE_FAILED"
	ErrCodeConnectionFailed  = "CONNECTION_FAILED"
	ErrCodeCircuitOpen       = "CIRCUIT_OPEN"
	ErrCodeNotConnected      = "NOT_CONNECTED"
	ErrCodeInvalidState      = "INVALID_STATE"
)

// AdapterError is the error type returned by every adapter operation.
// The engine error, when there is one, is kept as Cause.
type AdapterError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Op      string         `json:"op,omitempty"`
	Field   string         `json:"field,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

func (e *AdapterError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Op, msg)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s:%s] field '%s': %s", e.Type, e.Code, e.Field, msg)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, msg)
}

func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a single detail
func (e *AdapterError) WithDetail(key string, value any) *AdapterError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause adds a cause
func (e *AdapterError) WithCause(cause error) *AdapterError {
	e.Cause = cause
	return e
}

// WithField adds field context
func (e *AdapterError) WithField(field string) *AdapterError {
	e.Field = field
	return e
}

// WithOp records the adapter operation that failed.
func (e *AdapterError) WithOp(op string) *AdapterError {
	e.Op = op
	return e
}

// NewAdapterError creates a new AdapterError
func NewAdapterError(errorType ErrorType, code, message string) *AdapterError {
	return &AdapterError{
		Type:    errorType,
		Code:    code,
		Message: message,
	}
}

// NewMissingSchemaError is returned by Init when the host supplies no schema or model name.
func NewMissingSchemaError() *AdapterError {
	return NewAdapterError(ErrorTypeConfiguration, ErrCodeMissingSchema,
		"missing `modelName` or `name` definition in schema of service")
}

func NewSchemaInvalidError(message string) *AdapterError {
	return NewAdapterError(ErrorTypeConfiguration, ErrCodeSchemaInvalid, message)
}

func NewConfigInvalidError(message string) *AdapterError {
	return NewAdapterError(ErrorTypeConfiguration, ErrCodeConfigInvalid, message)
}

// NewUnsupportedSearchError is returned when a search term arrives without target fields.
func NewUnsupportedSearchError() *AdapterError {
	return NewAdapterError(ErrorTypeUnsupported, ErrCodeUnsupportedSearch,
		"full-text search requires explicit target fields")
}

// NewInvalidIdentifierError reports a value that cannot be read as an identifier.
func NewInvalidIdentifierError(value any) *AdapterError {
	return NewAdapterError(ErrorTypeValidation, ErrCodeInvalidIdentifier,
		fmt.Sprintf("invalid identifier format: %v", value)).WithDetail("value", value)
}

func NewInvalidFilterError(field, message string) *AdapterError {
	return NewAdapterError(ErrorTypeValidation, ErrCodeInvalidFilter, message).WithField(field)
}

// NewReadError wraps an engine failure on a read path.
func NewReadError(op string, cause error) *AdapterError {
	return NewAdapterError(ErrorTypeRead, ErrCodeReadFailed, "read failed").WithOp(op).WithCause(cause)
}

// NewWriteError wraps an engine failure on a write path.
func NewWriteError(op string, cause error) *AdapterError {
	return NewAdapterError(ErrorTypeWrite, ErrCodeWriteFailed, "write failed").WithOp(op).WithCause(cause)
}

func NewConnectionError(message string, cause error) *AdapterError {
	return NewAdapterError(ErrorTypeConnection, ErrCodeConnectionFailed, message).WithCause(cause)
}

func NewCircuitOpenError(op string) *AdapterError {
	return NewAdapterError(ErrorTypeConnection, ErrCodeCircuitOpen, "engine circuit breaker is open").WithOp(op)
}

func NewNotConnectedError(op string, state string) *AdapterError {
	return NewAdapterError(ErrorTypeState, ErrCodeNotConnected,
		fmt.Sprintf("adapter is %s, operation requires a connected adapter", state)).WithOp(op)
}

func NewInvalidStateError(op string, state string) *AdapterError {
	return NewAdapterError(ErrorTypeState, ErrCodeInvalidState,
		fmt.Sprintf("operation not allowed while adapter is %s", state)).WithOp(op)
}

func hasCode(err error, code string) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}

func hasType(err error, t ErrorType) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

func IsUnsupportedSearchError(err error) bool { return hasCode(err, ErrCodeUnsupportedSearch) }
func IsInvalidIdentifierError(err error) bool { return hasCode(err, ErrCodeInvalidIdentifier) }
func IsNotConnectedError(err error) bool      { return hasCode(err, ErrCodeNotConnected) }
func IsCircuitOpenError(err error) bool       { return hasCode(err, ErrCodeCircuitOpen) }
func IsConfigurationError(err error) bool     { return hasType(err, ErrorTypeConfiguration) }
func IsReadError(err error) bool              { return hasType(err, ErrorTypeRead) }
func IsWriteError(err error) bool             { return hasType(err, ErrorTypeWrite) }
func IsConnectionError(err error) bool        { return hasType(err, ErrorTypeConnection) }
