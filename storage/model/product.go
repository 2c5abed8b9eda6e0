package model

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Product attribute names with special meaning for manifest handling.
const (
	ProductAttributeMultiplier = "multiplier"
	ProductAttributeType       = "type"
)

// Product is a product definition. Cross references to other products and
// to content are stored as ids.
type Product struct {
	ID                 string                              `gorm:"primaryKey;size:255" json:"id"`
	Name               string                              `json:"name"`
	Multiplier         int64                               `gorm:"default:1" json:"multiplier"`
	Attributes         datatypes.JSONMap                   `json:"attributes,omitempty"`
	DerivedProductID   string                              `gorm:"size:255" json:"derived_product_id,omitempty"`
	ProvidedProductIDs datatypes.JSONSlice[string]         `json:"provided_product_ids,omitempty"`
	Contents           datatypes.JSONSlice[ProductContent] `json:"contents,omitempty"`
	CreatedAt          time.Time                           `json:"created_at"`
	UpdatedAt          time.Time                           `json:"updated_at"`
}

// ProductContent references a content record from a product.
type ProductContent struct {
	ContentID string `json:"content_id"`
	Enabled   bool   `json:"enabled"`
}

// EffectiveMultiplier returns the product multiplier, treating unset values as 1.
func (p *Product) EffectiveMultiplier() int64 {
	if p == nil || p.Multiplier <= 0 {
		return 1
	}
	return p.Multiplier
}

// HasNumericID reports whether the product id is numeric. Numeric ids mark
// engineering products, which carry a product certificate.
func (p *Product) HasNumericID() bool {
	_, err := strconv.ParseUint(p.ID, 10, 64)
	return err == nil
}

// Content is a content set delivered for products. UUID is the local key;
// ID is the content id shared across systems.
type Content struct {
	UUID               string                      `gorm:"primaryKey;size:64" json:"uuid"`
	ID                 string                      `gorm:"uniqueIndex;size:255" json:"id"`
	Type               string                      `json:"type"`
	Label              string                      `json:"label"`
	Name               string                      `json:"name"`
	Vendor             string                      `json:"vendor"`
	ContentURL         string                      `json:"content_url,omitempty"`
	GPGURL             string                      `json:"gpg_url,omitempty"`
	RequiredTags       string                      `json:"required_tags,omitempty"`
	ReleaseVersion     string                      `json:"release_version,omitempty"`
	Arches             string                      `json:"arches,omitempty"`
	MetadataExpiration *int64                      `json:"metadata_expiration,omitempty"`
	ModifiedProductIDs datatypes.JSONSlice[string] `json:"modified_product_ids,omitempty"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// ProductStore gives access to products.
type ProductStore interface {
	// Get returns the product with the passed id, or (nil, nil).
	Get(id string) (*Product, error)
	// GetMany returns the products with the passed ids keyed by id; unknown ids are omitted.
	GetMany(ids []string) (map[string]*Product, error)
	// Upsert creates or replaces the passed products.
	Upsert(products []*Product) error
}

// ContentStore gives access to content records.
type ContentStore interface {
	// GetMany returns the content with the passed content ids keyed by id.
	GetMany(ids []string) (map[string]*Content, error)
	// Upsert creates or updates content by content id. The local uuid of an
	// existing record is kept; new records get a fresh uuid.
	Upsert(contents []*Content) error
}
