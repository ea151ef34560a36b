package common

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeConfiguration  ErrorType = "configuration"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeSession        ErrorType = "session"
	ErrorTypeExtraction     ErrorType = "extraction"
	ErrorTypeClassification ErrorType = "classification"
	ErrorTypeStorage        ErrorType = "storage"
	ErrorTypeOutput         ErrorType = "output"
	ErrorTypeNetwork        ErrorType = "network"
	ErrorTypeInternal       ErrorType = "internal"
)

var (
	// ErrRunNotFound is returned when no run is stored under the requested ID.
	ErrRunNotFound = errors.New("run not found")
	// ErrRunInProgress is returned when a run is requested while another one holds the browser.
	ErrRunInProgress = errors.New("a collector run is already in progress")
)

// CollectorError represents a structured error with context
type CollectorError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *CollectorError) Error() string {
	msg := fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *CollectorError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *CollectorError) WithContext(key string, value interface{}) *CollectorError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails sets a human readable detail string
func (e *CollectorError) WithDetails(details string) *CollectorError {
	e.Details = details
	return e
}

// NewError creates a new CollectorError
func NewError(errorType ErrorType, code, message string) *CollectorError {
	return &CollectorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

func NewConfigurationError(code, message string) *CollectorError {
	return NewError(ErrorTypeConfiguration, code, message)
}

func NewValidationError(code, message string) *CollectorError {
	return NewError(ErrorTypeValidation, code, message)
}

func NewSessionError(code, message string) *CollectorError {
	return NewError(ErrorTypeSession, code, message)
}

func NewExtractionError(code, message string) *CollectorError {
	return NewError(ErrorTypeExtraction, code, message)
}

func NewClassificationError(code, message string) *CollectorError {
	return NewError(ErrorTypeClassification, code, message)
}

// WrapError wraps an existing error with CollectorError context
func WrapError(err error, errorType ErrorType, code, message string) *CollectorError {
	return &CollectorError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
		Cause:     err,
	}
}

// IsErrorType reports whether any CollectorError in err's chain has the given type.
func IsErrorType(err error, errorType ErrorType) bool {
	for err != nil {
		var ce *CollectorError
		if !errors.As(err, &ce) {
			return false
		}
		if ce.Type == errorType {
			return true
		}
		err = ce.Cause
	}
	return false
}
