package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMappingInvalidTenantID is returned for a nil tenant ID
	ErrMappingInvalidTenantID = errors.New("sync: invalid tenant ID")
	// ErrMappingInvalidEntityType is returned for an unknown entity type
	ErrMappingInvalidEntityType = errors.New("sync: invalid entity type")
	// ErrMappingInvalidExternalID is returned for a non-positive external ID
	ErrMappingInvalidExternalID = errors.New("sync: invalid external ID")
	// ErrMappingInvalidInternalID is returned for a nil internal ID
	ErrMappingInvalidInternalID = errors.New("sync: invalid internal ID")
)

// IdentityMapping is the durable link between an ERP record and an internal
// entity. At most one internal ID may exist per (tenant, entity type,
// external id); mappings are created on first successful sync and never
// deleted automatically — stale mappings are a reconciliation concern.
type IdentityMapping struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	EntityType   EntityType
	ExternalID   int64
	InternalID   uuid.UUID
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewIdentityMapping creates a mapping for a freshly synced external record
func NewIdentityMapping(tenantID uuid.UUID, entityType EntityType, externalID int64, internalID uuid.UUID) (*IdentityMapping, error) {
	if tenantID == uuid.Nil {
		return nil, ErrMappingInvalidTenantID
	}
	if !entityType.IsValid() {
		return nil, ErrMappingInvalidEntityType
	}
	if externalID <= 0 {
		return nil, ErrMappingInvalidExternalID
	}
	if internalID == uuid.Nil {
		return nil, ErrMappingInvalidInternalID
	}

	now := time.Now()
	return &IdentityMapping{
		ID:           uuid.New(),
		TenantID:     tenantID,
		EntityType:   entityType,
		ExternalID:   externalID,
		InternalID:   internalID,
		LastSyncedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IdentityMappingRepository is the Identity Mapper port. Implementations must
// guarantee the (tenant, entity type, external id) uniqueness invariant.
type IdentityMappingRepository interface {
	// Resolve looks up the internal ID for an external key. Pure read;
	// returns ErrMappingNotFound when no mapping exists.
	Resolve(ctx context.Context, tenantID uuid.UUID, entityType EntityType, externalID int64) (uuid.UUID, error)

	// Bind persists a new mapping. Binding an identical mapping again is a
	// no-op; binding the key to a different internal ID fails with
	// *ConflictError and leaves the existing mapping untouched.
	Bind(ctx context.Context, mapping *IdentityMapping) error

	// Touch advances LastSyncedAt for a processed mapping. Mappings whose
	// LastSyncedAt stops advancing are deactivation candidates.
	Touch(ctx context.Context, tenantID uuid.UUID, entityType EntityType, externalID int64, at time.Time) error

	// ListByType returns all mappings of one entity type for a tenant
	ListByType(ctx context.Context, tenantID uuid.UUID, entityType EntityType) ([]IdentityMapping, error)

	// FindStale returns mappings not touched since the given instant.
	// Used by reconciliation passes; never consulted on the sync fast path.
	FindStale(ctx context.Context, tenantID uuid.UUID, entityType EntityType, before time.Time) ([]IdentityMapping, error)
}
