package sync

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrMappingNotFound is returned when no identity mapping exists for a key
	ErrMappingNotFound = errors.New("sync: identity mapping not found")
	// ErrRunNotFound is returned when a sync run cannot be located
	ErrRunNotFound = errors.New("sync: run not found")
	// ErrRunFinalized is returned when finalizing a run that already reached a terminal state
	ErrRunFinalized = errors.New("sync: run already finalized")
	// ErrBusy is returned when a module is triggered while a run for it is in progress
	ErrBusy = errors.New("sync: run already in progress for module")
	// ErrUnknownModule is returned when a trigger names a module with no synchronizer
	ErrUnknownModule = errors.New("sync: unknown module")

	// ErrAuth indicates the ERP rejected the credentials or session.
	// One re-authentication is attempted; a second failure is fatal to the run.
	ErrAuth = errors.New("sync: erp authentication failed")
	// ErrTransport indicates a network-level failure talking to the ERP.
	// Transport failures are retried with backoff before surfacing.
	ErrTransport = errors.New("sync: erp transport failure")
	// ErrRemote indicates the ERP returned an application-level fault for a call
	ErrRemote = errors.New("sync: erp remote fault")
	// ErrCapability indicates the ERP endpoint does not expose the execute RPC
	// this engine requires. Surfaced at startup as a configuration error.
	ErrCapability = errors.New("sync: erp execute rpc unavailable")
)

// ConflictError reports an identity mapping collision: the (entity type,
// external id) key already maps to a different internal entity. The prior
// mapping is left untouched; the record is skipped and the run marked partial.
type ConflictError struct {
	EntityType EntityType
	ExternalID int64
	ExistingID uuid.UUID
	ClaimedID  uuid.UUID
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("sync: mapping conflict for %s/%d: bound to %s, record claims %s",
		e.EntityType, e.ExternalID, e.ExistingID, e.ClaimedID)
}

// ValidationError reports a malformed remote record. The record is skipped
// and counted as failed; it is never defaulted silently.
type ValidationError struct {
	EntityType EntityType
	ExternalID int64
	Field      string
	Reason     string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("sync: invalid %s record %d: field %q %s",
		e.EntityType, e.ExternalID, e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single bad field
func NewValidationError(entityType EntityType, externalID int64, field, reason string) *ValidationError {
	return &ValidationError{EntityType: entityType, ExternalID: externalID, Field: field, Reason: reason}
}

// IsConflict reports whether err is (or wraps) a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsValidation reports whether err is (or wraps) a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
