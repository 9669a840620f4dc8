package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// IdentityMappingModel is the persistence model for identity mappings.
// The composite unique index enforces the one-internal-ID-per-external-key
// invariant at the database level.
type IdentityMappingModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_mapping_key"`
	EntityType   string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_mapping_key"`
	ExternalID   int64     `gorm:"not null;uniqueIndex:idx_mapping_key"`
	InternalID   uuid.UUID `gorm:"type:uuid;not null;index"`
	LastSyncedAt time.Time `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IdentityMappingModel) TableName() string {
	return "identity_mappings"
}

// ToDomain converts the model to a domain identity mapping
func (m *IdentityMappingModel) ToDomain() *sync.IdentityMapping {
	return &sync.IdentityMapping{
		ID:           m.ID,
		TenantID:     m.TenantID,
		EntityType:   sync.EntityType(m.EntityType),
		ExternalID:   m.ExternalID,
		InternalID:   m.InternalID,
		LastSyncedAt: m.LastSyncedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// IdentityMappingModelFromDomain converts a domain identity mapping to a model
func IdentityMappingModelFromDomain(mapping *sync.IdentityMapping) *IdentityMappingModel {
	return &IdentityMappingModel{
		ID:           mapping.ID,
		TenantID:     mapping.TenantID,
		EntityType:   string(mapping.EntityType),
		ExternalID:   mapping.ExternalID,
		InternalID:   mapping.InternalID,
		LastSyncedAt: mapping.LastSyncedAt,
		CreatedAt:    mapping.CreatedAt,
		UpdatedAt:    mapping.UpdatedAt,
	}
}

// SyncRunModel is the persistence model for the run log
type SyncRunModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	TenantID         uuid.UUID  `gorm:"type:uuid;not null;index:idx_run_module"`
	Module           string     `gorm:"type:varchar(20);not null;index:idx_run_module"`
	Status           string     `gorm:"type:varchar(20);not null"`
	StartedAt        time.Time  `gorm:"not null;index"`
	FinishedAt       *time.Time `gorm:""`
	RecordsProcessed int        `gorm:"not null;default:0"`
	RecordsFailed    int        `gorm:"not null;default:0"`
	ErrorMessage     string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the model to a domain sync run
func (m *SyncRunModel) ToDomain() *sync.SyncRun {
	return &sync.SyncRun{
		ID:               m.ID,
		TenantID:         m.TenantID,
		Module:           sync.Module(m.Module),
		Status:           sync.RunStatus(m.Status),
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
		RecordsProcessed: m.RecordsProcessed,
		RecordsFailed:    m.RecordsFailed,
		ErrorMessage:     m.ErrorMessage,
	}
}

// SyncRunModelFromDomain converts a domain sync run to a model
func SyncRunModelFromDomain(run *sync.SyncRun) *SyncRunModel {
	return &SyncRunModel{
		ID:               run.ID,
		TenantID:         run.TenantID,
		Module:           string(run.Module),
		Status:           string(run.Status),
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		RecordsProcessed: run.RecordsProcessed,
		RecordsFailed:    run.RecordsFailed,
		ErrorMessage:     run.ErrorMessage,
	}
}
