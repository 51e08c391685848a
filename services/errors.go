package services

import (
	"errors"
	"fmt"
)

// Semantic error codes consumed by handlers. Codes are HTTP-status
// agnostic; the handler layer maps them to response statuses.
const (
	ErrCodeValidation             = "VALIDATION_ERROR"
	ErrCodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	ErrCodeSystemOnlyField        = "SYSTEM_ONLY_FIELD"
	ErrCodeRegionImmutable        = "REGION_IMMUTABLE"
	ErrCodeConcurrencyConflict    = "CONCURRENCY_CONFLICT"
	ErrCodeNoEligibleDCA          = "NO_ELIGIBLE_DCA"
	ErrCodeNoCapacity             = "NO_CAPACITY"
	ErrCodeForbidden              = "FORBIDDEN"
	ErrCodeNotFound               = "NOT_FOUND"
)

// DomainError is the error envelope every rejected mutation carries: a
// machine-readable code, a human-readable message and optional details
// (e.g. blocked field names, the allowed next statuses).
type DomainError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDomainError creates a DomainError without details
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithDetails creates a DomainError carrying details
func NewDomainErrorWithDetails(code, message string, details map[string]interface{}) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

// AsDomainError extracts a DomainError from an error chain
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
