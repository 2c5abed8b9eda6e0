package model

import (
	"time"

	"gorm.io/datatypes"
)

// PoolType distinguishes pools materialised from subscriptions from the
// different derived pool kinds.
type PoolType string

// Pool types
const (
	PoolTypeNormal             PoolType = "NORMAL"
	PoolTypeEntitlementDerived PoolType = "ENTITLEMENT_DERIVED"
	PoolTypeStackDerived       PoolType = "STACK_DERIVED"
	PoolTypeBonus              PoolType = "BONUS"
	PoolTypeUnmappedGuest      PoolType = "UNMAPPED_GUEST"
	PoolTypeDevelopment        PoolType = "DEVELOPMENT"
)

// IsDerived reports whether pools of this type are generated locally from
// another pool or entitlement.
func (t PoolType) IsDerived() bool {
	switch t {
	case PoolTypeEntitlementDerived, PoolTypeStackDerived, PoolTypeBonus, PoolTypeUnmappedGuest:
		return true
	}
	return false
}

// Branding is a product branding entry carried by pools and subscriptions.
type Branding struct {
	ProductID string `json:"productId" msgpack:"product_id"`
	Type      string `json:"type" msgpack:"type"`
	Name      string `json:"name" msgpack:"name"`
}

// Pool is the durable local bucket of entitlements for a product.
// Pools created from a manifest carry the upstream pool and entitlement ids.
type Pool struct {
	ID                        string                        `gorm:"primaryKey;size:64" json:"id"`
	OwnerID                   string                        `gorm:"index;size:64" json:"owner_id"`
	Type                      PoolType                      `gorm:"size:32;default:NORMAL" json:"type"`
	ProductID                 string                        `gorm:"size:255" json:"product_id"`
	DerivedProductID          string                        `gorm:"size:255" json:"derived_product_id,omitempty"`
	ProvidedProductIDs        datatypes.JSONSlice[string]   `json:"provided_product_ids,omitempty"`
	DerivedProvidedProductIDs datatypes.JSONSlice[string]   `json:"derived_provided_product_ids,omitempty"`
	Quantity                  int64                         `json:"quantity"`
	StartDate                 time.Time                     `json:"start_date"`
	EndDate                   *time.Time                    `json:"end_date,omitempty"`
	SubscriptionID            string                        `gorm:"index;size:64" json:"subscription_id,omitempty"`
	UpstreamPoolID            string                        `gorm:"index;size:255" json:"upstream_pool_id,omitempty"`
	UpstreamEntitlementID     string                        `gorm:"size:255" json:"upstream_entitlement_id,omitempty"`
	UpstreamConsumerID        string                        `gorm:"size:255" json:"upstream_consumer_id,omitempty"`
	AccountNumber             string                        `json:"account_number,omitempty"`
	ContractNumber            string                        `json:"contract_number,omitempty"`
	OrderNumber               string                        `json:"order_number,omitempty"`
	Branding                  datatypes.JSONSlice[Branding] `json:"branding,omitempty"`
	CdnLabel                  string                        `json:"cdn_label,omitempty"`
	CertificateID             *string                       `gorm:"size:64" json:"-"`
	Certificate               *SubscriptionCertificate      `gorm:"foreignKey:CertificateID" json:"certificate,omitempty"`
	CreatedAt                 time.Time                     `json:"created_at"`
	UpdatedAt                 time.Time                     `json:"updated_at"`
}

// FromManifest reports whether the pool was materialised from an imported manifest.
func (p *Pool) FromManifest() bool {
	return p.UpstreamPoolID != ""
}

// PoolStore gives access to pools.
type PoolStore interface {
	// Get returns the pool with the passed id, or (nil, nil).
	Get(id string) (*Pool, error)
	// ListByOwnerAndType lists an owner's pools of one type in creation order.
	ListByOwnerAndType(ownerID string, poolType PoolType) ([]Pool, error)
	// ListFromManifest lists an owner's pools that were created from a manifest.
	ListFromManifest(ownerID string) ([]Pool, error)
	Save(pool *Pool) error
	// DeleteBySubscription removes all pools of a subscription and returns how many were removed.
	DeleteBySubscription(ownerID, subscriptionID string) (int64, error)
	// DeleteFromManifest removes all manifest pools of an owner.
	DeleteFromManifest(ownerID string) (int64, error)
}
