package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError by code so sentinel values work with errors.Is.
func (e *DomainError) Is(target error) bool {
	other, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return other.Code == e.Code && other.Err == nil
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Domain error codes
const (
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeEmbeddingService  = "EMBEDDING_SERVICE_ERROR"
	ErrCodeStoreWrite        = "STORE_WRITE_ERROR"
	ErrCodeInvalidChunk      = "INVALID_CHUNK"
	ErrCodeRunInProgress     = "RUN_IN_PROGRESS"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
)

// Fatal errors
var (
	ErrSourceUnavailable = NewDomainError(ErrCodeSourceUnavailable, "knowledge source unavailable")
	ErrConfiguration     = NewDomainError(ErrCodeConfiguration, "invalid configuration")
)

// Batch errors
var (
	ErrEmbeddingService = NewDomainError(ErrCodeEmbeddingService, "embedding service failed")
	ErrStoreWrite       = NewDomainError(ErrCodeStoreWrite, "vector store write failed")
	ErrInvalidChunk     = NewDomainError(ErrCodeInvalidChunk, "invalid chunk")
)

// Operation errors
var (
	ErrRunInProgress = NewDomainError(ErrCodeRunInProgress, "an ingestion run is already in progress")
	ErrChunkNotFound = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrNoRunYet      = NewDomainError(ErrCodeNotFound, "no ingestion run has completed yet")
)

// SourceUnavailable wraps a read or parse failure of the knowledge source.
func SourceUnavailable(location string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSourceUnavailable, fmt.Sprintf("cannot load knowledge source %q", location), err)
}

// ConfigurationError reports a missing or invalid setting.
func ConfigurationError(message string) *DomainError {
	return NewDomainError(ErrCodeConfiguration, message)
}

// EmbeddingServiceError wraps a failure of the embedding provider.
func EmbeddingServiceError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingService, "embedding request failed", err)
}

// StoreWriteError wraps a failure of the vector store.
func StoreWriteError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStoreWrite, "upsert failed", err)
}

// IsFatal reports whether err must abort a run rather than a single batch.
func IsFatal(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return de.Code == ErrCodeSourceUnavailable || de.Code == ErrCodeConfiguration
}

// ErrorCode extracts the DomainError code from err, or INTERNAL_ERROR.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ErrCodeInternalError
}
