package model

import (
	"time"
)

// Entitlement is a consumer's claim on a quantity of a pool.
// A dirty entitlement is being recalculated and must not leave the system.
type Entitlement struct {
	ID           string                   `gorm:"primaryKey;size:64" json:"id"`
	ConsumerUUID string                   `gorm:"index;size:64" json:"consumer_uuid"`
	PoolID       string                   `gorm:"index;size:64" json:"pool_id"`
	Pool         *Pool                    `gorm:"foreignKey:PoolID" json:"pool,omitempty"`
	Quantity     int64                    `json:"quantity"`
	Dirty        bool                     `json:"dirty"`
	Certificates []EntitlementCertificate `gorm:"foreignKey:EntitlementID" json:"certificates,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

// EntitlementStore gives access to entitlements.
type EntitlementStore interface {
	// ListByConsumer lists a consumer's entitlements with pool and certificates loaded.
	ListByConsumer(consumerUUID string) ([]Entitlement, error)
	Create(entitlement *Entitlement) error
}
