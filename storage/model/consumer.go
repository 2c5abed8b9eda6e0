package model

import (
	"time"
)

// Consumer is a local consumer. Distributor consumers are the subject of
// manifest exports.
type Consumer struct {
	UUID              string               `gorm:"primaryKey;size:64" json:"uuid"`
	Name              string               `json:"name"`
	TypeLabel         string               `gorm:"size:255" json:"type"`
	OwnerID           string               `gorm:"index;size:64" json:"owner_id"`
	Owner             *Owner               `gorm:"foreignKey:OwnerID" json:"-"`
	ContentAccessMode string               `json:"content_access_mode,omitempty"`
	IdentityCertID    *string              `gorm:"size:64" json:"-"`
	IdentityCert      *IdentityCertificate `gorm:"foreignKey:IdentityCertID" json:"identity_cert,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ConsumerStore gives access to local consumers.
type ConsumerStore interface {
	// Get returns the consumer with its owner and identity certificate
	// loaded, or (nil, nil) if there is none.
	Get(uuid string) (*Consumer, error)
	Create(consumer *Consumer) error
}
