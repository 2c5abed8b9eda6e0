package model

import (
	"time"
)

// Exporter metadata scopes
const (
	ExporterMetadataTypeSystem  = "system"
	ExporterMetadataTypePerUser = "per_user"
)

// ExporterMetadata tracks the creation time of the last manifest applied
// for a scope. The system scope has no owner.
type ExporterMetadata struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"uniqueIndex:idx_exporter_metadata_scope;size:32" json:"type"`
	OwnerID   string    `gorm:"uniqueIndex:idx_exporter_metadata_scope;size:64" json:"owner_id,omitempty"`
	Exported  time.Time `json:"exported"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExporterMetadataStore gives access to export tracking records.
type ExporterMetadataStore interface {
	// GetByType returns the record of an owner-less scope, or (nil, nil).
	GetByType(metadataType string) (*ExporterMetadata, error)
	// GetByTypeAndOwner returns the record for an owner scope, or (nil, nil).
	GetByTypeAndOwner(metadataType, ownerID string) (*ExporterMetadata, error)
	Save(metadata *ExporterMetadata) error
	Delete(metadata *ExporterMetadata) error
}
