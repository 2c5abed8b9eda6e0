package model

import (
	"time"
)

// Owner is a tenant. An owner is bound to at most one upstream consumer at a
// time; the binding is set by a manifest import and cleared by undoing it.
type Owner struct {
	ID                string            `gorm:"primaryKey;size:64" json:"id"`
	Key               string            `gorm:"column:owner_key;uniqueIndex;size:255" json:"key"`
	DisplayName       string            `json:"display_name"`
	ContentAccessMode string            `json:"content_access_mode,omitempty"`
	UpstreamConsumer  *UpstreamConsumer `gorm:"foreignKey:OwnerID" json:"upstream_consumer,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// UpstreamUUID returns the uuid of the bound upstream consumer or an empty
// string if the owner is unbound.
func (o *Owner) UpstreamUUID() string {
	if o == nil || o.UpstreamConsumer == nil {
		return ""
	}
	return o.UpstreamConsumer.UUID
}

// UpstreamConsumer is the identity of the system a manifest was produced by.
// The uuid is unique across all owners.
type UpstreamConsumer struct {
	ID                string               `gorm:"primaryKey;size:64" json:"id"`
	UUID              string               `gorm:"uniqueIndex;size:255" json:"uuid"`
	Name              string               `json:"name"`
	TypeLabel         string               `json:"type"`
	OwnerID           string               `gorm:"uniqueIndex;size:64" json:"owner_id"`
	WebURL            string               `json:"web_url,omitempty"`
	APIURL            string               `json:"api_url,omitempty"`
	ContentAccessMode string               `json:"content_access_mode,omitempty"`
	IdentityCertID    *string              `gorm:"size:64" json:"-"`
	IdentityCert      *IdentityCertificate `gorm:"foreignKey:IdentityCertID" json:"identity_cert,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// OwnerStore gives access to owners and their upstream binding.
type OwnerStore interface {
	// Get returns the owner with the passed key, or (nil, nil) if there is none.
	Get(key string) (*Owner, error)
	// GetByID returns the owner with the passed id, or (nil, nil) if there is none.
	GetByID(id string) (*Owner, error)
	// GetByUpstreamUUID returns the owner bound to the passed upstream consumer uuid.
	GetByUpstreamUUID(uuid string) (*Owner, error)
	Create(owner *Owner) error
	List() ([]Owner, error)
	// SetUpstreamConsumer replaces the owner's upstream consumer.
	SetUpstreamConsumer(ownerID string, consumer *UpstreamConsumer) error
	// ClearUpstreamConsumer removes the owner's upstream consumer and returns
	// the removed record (nil if the owner was unbound).
	ClearUpstreamConsumer(ownerID string) (*UpstreamConsumer, error)
}
