package domain

import "fmt"

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

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeUnavailable      = "UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Validation errors
var (
	ErrInvalidEntityType    = NewDomainError(ErrCodeValidation, "invalid medical entity type")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrEmbeddingDimension   = NewDomainError(ErrCodeValidation, "embedding has wrong dimensions")
)

// Not found errors
var (
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "knowledge chunk not found")
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "knowledge document not found")
)

// Availability errors. These are degradation signals inside the retrieval
// path, never surfaced to API callers as request failures.
var (
	ErrIndexNotBuilt        = NewDomainError(ErrCodeUnavailable, "term index has not been built yet")
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeUnavailable, "embedding provider unavailable")
)

// Operation errors
var (
	ErrCannotDeleteChunks = NewDomainError(ErrCodeInvalidOperation, "chunks cannot be deleted, use deactivation instead")
)
