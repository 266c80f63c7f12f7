package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDraftNotFound        = errors.New("draft not found")
	ErrSessionNotFound      = errors.New("checkout session not found")
	ErrDraftSubmitted       = errors.New("draft already submitted")
	ErrInvalidTransition    = errors.New("invalid checkout state transition")
	ErrCouponAlreadyApplied = errors.New("coupon already applied")
	ErrLookupSuperseded     = errors.New("slot lookup superseded by a newer request")
	ErrYachtNotFound        = errors.New("yacht not found")
	ErrNotSignedIn          = errors.New("sign in required")
)

// ValidationError is raised for malformed input that must not silently default.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// BackendRejection is a non-2xx answer from the yacht backend.
type BackendRejection struct {
	Endpoint string
	Status   int
	Message  string
}

func (e *BackendRejection) Error() string {
	return fmt.Sprintf("backend rejected %s (%d): %s", e.Endpoint, e.Status, e.Message)
}

// TransportError covers network failures, an open breaker and undecodable responses.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// RejectionMessage returns the backend message carried by err, or fallback.
func RejectionMessage(err error, fallback string) string {
	var br *BackendRejection
	if errors.As(err, &br) && br.Message != "" {
		return br.Message
	}
	return fallback
}
