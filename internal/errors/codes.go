package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for tracker operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeAIDisabled indicates AI features are disabled or no API key is configured.
	ErrCodeAIDisabled ErrorCode = "AI_DISABLED"
	// ErrCodeNoRecentHistory indicates there is no watch history in the report window.
	ErrCodeNoRecentHistory ErrorCode = "NO_RECENT_HISTORY"
	// ErrCodeClassifierUnavailable indicates the external classifier could not be reached.
	ErrCodeClassifierUnavailable ErrorCode = "CLASSIFIER_UNAVAILABLE"
	// ErrCodeStorageFailure indicates a persistence layer failure.
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
)

// TrackerError represents a structured error for tracker operations.
type TrackerError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *TrackerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *TrackerError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *TrackerError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *TrackerError {
	return &TrackerError{Code: ErrCodeInvalidArgument, Message: msg}
}

// AIDisabled creates an AI disabled error.
func AIDisabled(msg string) *TrackerError {
	return &TrackerError{Code: ErrCodeAIDisabled, Message: msg}
}

// NoRecentHistory creates a no recent history error.
func NoRecentHistory(msg string) *TrackerError {
	return &TrackerError{Code: ErrCodeNoRecentHistory, Message: msg}
}

// ClassifierUnavailable creates a classifier unavailable error.
func ClassifierUnavailable(msg string, cause error) *TrackerError {
	return &TrackerError{Code: ErrCodeClassifierUnavailable, Message: msg, Cause: cause}
}

// StorageFailure creates a storage failure error.
func StorageFailure(msg string, cause error) *TrackerError {
	return &TrackerError{Code: ErrCodeStorageFailure, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if terr, ok := err.(*TrackerError); ok {
		return terr.Code == code
	}
	return false
}
