package domain

import (
	"errors"
	"fmt"
	"time"
)

// OncoprintError represents a standardized error response
type OncoprintError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *OncoprintError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput       = "INVALID_INPUT"
	ErrDatabaseError      = "DATABASE_ERROR"
	ErrExternalAPI        = "EXTERNAL_API_ERROR"
	ErrRateLimit          = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer     = "INTERNAL_SERVER_ERROR"
	ErrValidation         = "VALIDATION_ERROR"
	ErrPageNotFound       = "PAGE_NOT_FOUND"
	ErrSessionNotFound    = "SESSION_NOT_FOUND"
	ErrExportUnavailable  = "EXPORT_UNAVAILABLE"
	ErrInvariantViolation = "INVARIANT_VIOLATION"
	ErrDataNotReady       = "DATA_NOT_READY"
	ErrTimeout            = "TIMEOUT"
	ErrServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// Sentinel errors checked with errors.Is across packages.
var (
	// ErrInvariant marks an upstream contract breach, e.g. several heatmap rows for one sample.
	ErrInvariant = errors.New("invariant violation")
	// ErrNotReady is returned when an operation needs data that has not finished loading.
	ErrNotReady = errors.New("data not ready")
	// ErrUnsupportedExport is returned when the rendering engine cannot produce a format.
	ErrUnsupportedExport = errors.New("export format not supported by renderer")
	// ErrNoRenderer is returned when a download is requested before a renderer is attached.
	ErrNoRenderer = errors.New("no renderer attached")
	// ErrUnknownDownload is returned for an unrecognised download type.
	ErrUnknownDownload = errors.New("unknown download type")
)

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewOncoprintError creates a new OncoprintError with timestamp
func NewOncoprintError(code, message, details, requestID string) *OncoprintError {
	return &OncoprintError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// InvariantError wraps ErrInvariant with a description of the breached contract.
func InvariantError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
