package errors

import (
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeConfig    ErrorType = "CONFIG"
	ErrTypeDecode    ErrorType = "DECODE"
	ErrTypeCrypto    ErrorType = "CRYPTO"
	ErrTypeNetwork   ErrorType = "NETWORK"
	ErrTypeRejected  ErrorType = "REJECTED"
	ErrTypeTransient ErrorType = "TRANSIENT"
	ErrTypeStorage   ErrorType = "STORAGE"
	ErrTypeNotFound  ErrorType = "NOT_FOUND"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Helper constructors for the engine's failure taxonomy. Routine invalid
// licenses are not modeled as errors; these cover operational failures only.

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}

// NewDecodeError creates a decode error (malformed export string, bad
// base64, malformed server JSON)
func NewDecodeError(message string, cause error) *AppError {
	return NewAppError(ErrTypeDecode, message, cause)
}

// NewCryptoError creates a crypto error (missing keys, signing failure)
func NewCryptoError(message string, cause error) *AppError {
	return NewAppError(ErrTypeCrypto, message, cause)
}

// NewNetworkError creates a network-related error
func NewNetworkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeNetwork, message, cause)
}

// NewRejectedError creates an authoritative-rejection error. The license
// server terminally refused the key; callers must not retry.
func NewRejectedError(message string, cause error) *AppError {
	return NewAppError(ErrTypeRejected, message, cause)
}

// NewTransientError creates a transient server error, tolerated via the
// grace counter until it escalates.
func NewTransientError(message string, cause error) *AppError {
	return NewAppError(ErrTypeTransient, message, cause)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}
