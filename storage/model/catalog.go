package model

import (
	"time"

	"gorm.io/datatypes"
)

// ConsumerType is a consumer type known to the system, identified by label.
type ConsumerType struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Label     string    `gorm:"uniqueIndex;size:255" json:"label"`
	Manifest  bool      `json:"manifest"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConsumerTypeStore gives access to consumer types.
type ConsumerTypeStore interface {
	// GetByLabel returns the consumer type with the passed label, or (nil, nil).
	GetByLabel(label string) (*ConsumerType, error)
	List() ([]ConsumerType, error)
	// Upsert creates or updates consumer types by label.
	Upsert(types []*ConsumerType) error
}

// DistributorVersion describes the capabilities of a distributor release.
type DistributorVersion struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	Name         string                      `gorm:"uniqueIndex;size:255" json:"name"`
	DisplayName  string                      `json:"display_name"`
	Capabilities datatypes.JSONSlice[string] `json:"capabilities,omitempty"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// DistributorVersionStore gives access to distributor versions.
type DistributorVersionStore interface {
	List() ([]DistributorVersion, error)
	// Upsert creates or updates distributor versions by name.
	Upsert(versions []*DistributorVersion) error
}

// Cdn is a content delivery network, identified by label.
type Cdn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Label     string    `gorm:"uniqueIndex;size:255" json:"label"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CdnStore gives access to content delivery networks.
type CdnStore interface {
	// GetByLabel returns the cdn with the passed label, or (nil, nil).
	GetByLabel(label string) (*Cdn, error)
	List() ([]Cdn, error)
	// Upsert creates or updates cdns by label.
	Upsert(cdns []*Cdn) error
}
