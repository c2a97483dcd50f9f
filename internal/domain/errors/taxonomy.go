package errors

import (
	"errors"
	"fmt"
)

// ValidationError is a local input problem. It is never persisted and only blocks the submit.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PersistenceError is a store read/write failure. Retryable; the stage does not advance.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Persistence wraps err unless it already is a domain not-found/conflict, which callers
// handle explicitly.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// UploadError is a blob store failure for one document slot. Retryable per file.
type UploadError struct {
	Slot string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed: %v", e.Slot, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// GatewayError is a payment initiate/poll failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ReconciliationConflict marks a concurrent bootstrap that lost the insert race.
// It is recovered locally by re-fetching and never reaches API clients.
type ReconciliationConflict struct {
	IdentityID string
}

func (e *ReconciliationConflict) Error() string {
	return "member profile for " + e.IdentityID + " was created concurrently"
}

func (e *ReconciliationConflict) Unwrap() error { return ErrAlreadyExists }

// SchemaDriftError reports that an optional column or table is absent.
// The caller degrades the specific feature instead of failing the operation.
type SchemaDriftError struct {
	Feature string
	Err     error
}

func (e *SchemaDriftError) Error() string {
	if e.Err == nil {
		return "schema feature unavailable: " + e.Feature
	}
	return fmt.Sprintf("schema feature unavailable: %s: %v", e.Feature, e.Err)
}

func (e *SchemaDriftError) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller may simply retry the same request.
func IsRetryable(err error) bool {
	var pe *PersistenceError
	var ue *UploadError
	var ge *GatewayError
	return errors.As(err, &pe) || errors.As(err, &ue) || errors.As(err, &ge)
}
