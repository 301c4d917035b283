/**
 * Custom error types for the OCR worker.
 *
 * Every failure that can leave the core carries a stable code so the queue
 * layer and API consumers can distinguish "no text found" from "could not
 * attempt recognition" and from bad input.
 */

package errors

import (
	"fmt"
	"time"
)

// ErrorCode enum for structured error handling
type ErrorCode string

const (
	// Input errors: fail fast, no retry.
	ErrorInputInvalid ErrorCode = "INPUT_INVALID"

	// Capability absence surfaced at the terminal recognition step.
	ErrorEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrorLangPackMissing   ErrorCode = "LANGPACK_MISSING"

	// Processing errors
	ErrorExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrorProcessingTimeout ErrorCode = "PROCESSING_TIMEOUT"

	// Collaborator errors
	ErrorOracleUnavailable ErrorCode = "ORACLE_UNAVAILABLE"
	ErrorStorageFailed     ErrorCode = "STORAGE_FAILED"
)

// ProcessingError represents a structured processing error
type ProcessingError struct {
	Code      ErrorCode
	Message   string
	JobID     string
	Timestamp time.Time
	Details   map[string]interface{}
	Cause     error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// CodeOf returns the error code carried by err, or empty string if err is not
// a *ProcessingError.
func CodeOf(err error) ErrorCode {
	if pe, ok := err.(*ProcessingError); ok {
		return pe.Code
	}
	return ""
}

// Factory functions for common errors

func NewInputInvalidError(jobID string, reason string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorInputInvalid,
		Message:   fmt.Sprintf("Invalid input image: %s", reason),
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewEngineUnavailableError(jobID string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorEngineUnavailable,
		Message:   "Recognition engine is not installed or not usable",
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

func NewLangPackMissingError(jobID string, lang string) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorLangPackMissing,
		Message:   fmt.Sprintf("Language pack not installed: %s", lang),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"language": lang,
		},
	}
}

func NewExtractionFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorExtractionFailed,
		Message:   "Final recognition pass failed",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

func NewProcessingTimeoutError(jobID string, duration time.Duration, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorProcessingTimeout,
		Message:   fmt.Sprintf("Processing timed out after %v", duration),
		JobID:     jobID,
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"timeout_duration": duration.String(),
		},
		Cause: cause,
	}
}

func NewStorageFailedError(jobID string, cause error) *ProcessingError {
	return &ProcessingError{
		Code:      ErrorStorageFailed,
		Message:   "Failed to store extraction results",
		JobID:     jobID,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// ToMap converts error to map for database storage
func (e *ProcessingError) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"error_code": string(e.Code),
		"message":    e.Message,
		"timestamp":  e.Timestamp,
	}

	for k, v := range e.Details {
		result[k] = v
	}

	if e.Cause != nil {
		result["cause"] = e.Cause.Error()
	}

	return result
}
