package codec

import (
	"time"
)

// MetaRecord is meta.json
type MetaRecord struct {
	Version       string    `json:"version"`
	Created       time.Time `json:"created"`
	PrincipalName string    `json:"principalName"`
	WebAppPrefix  string    `json:"webAppPrefix,omitempty"`
	CdnLabel      string    `json:"cdnLabel,omitempty"`
}

// OwnerRecord references an owner
type OwnerRecord struct {
	ID          string `json:"id,omitempty"`
	Key         string `json:"key"`
	DisplayName string `json:"displayName,omitempty"`
}

// ConsumerTypeRecord is a file under consumer_types/
type ConsumerTypeRecord struct {
	ID       string `json:"id,omitempty"`
	Label    string `json:"label"`
	Manifest bool   `json:"manifest"`
}

// ConsumerRecord is consumer.json
type ConsumerRecord struct {
	UUID              string              `json:"uuid"`
	Name              string              `json:"name"`
	Type              *ConsumerTypeRecord `json:"type,omitempty"`
	Owner             *OwnerRecord        `json:"owner,omitempty"`
	URLWeb            *string             `json:"urlWeb"`
	URLAPI            *string             `json:"urlApi"`
	ContentAccessMode string              `json:"contentAccessMode,omitempty"`
}

// SerialRecord is the serial of a certificate
type SerialRecord struct {
	ID         uint64     `json:"id"`
	Serial     uint64     `json:"serial"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Collected  bool       `json:"collected"`
	Revoked    bool       `json:"revoked"`
	Created    time.Time  `json:"created"`
	Updated    time.Time  `json:"updated"`
}

// CertificateRecord is a certificate with its key, used for identity
// certificates under upstream_consumer/ and inside entitlement records
type CertificateRecord struct {
	ID      string        `json:"id,omitempty"`
	Key     string        `json:"key"`
	Cert    string        `json:"cert"`
	Serial  *SerialRecord `json:"serial,omitempty"`
	Created time.Time     `json:"created"`
	Updated time.Time     `json:"updated"`
}

// ProvidedProductRecord references a provided product from a pool
type ProvidedProductRecord struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
}

// BrandingRecord is a branding entry of a pool
type BrandingRecord struct {
	ProductID string `json:"productId"`
	Type      string `json:"type"`
	Name      string `json:"name"`
}

// PoolRecord is the pool embedded in an entitlement record
type PoolRecord struct {
	ID                      string                  `json:"id"`
	Type                    string                  `json:"type,omitempty"`
	ContractNumber          string                  `json:"contractNumber,omitempty"`
	AccountNumber           string                  `json:"accountNumber,omitempty"`
	OrderNumber             string                  `json:"orderNumber,omitempty"`
	Branding                []BrandingRecord        `json:"branding,omitempty"`
	ProductID               string                  `json:"productId"`
	DerivedProductID        string                  `json:"derivedProductId,omitempty"`
	ProvidedProducts        []ProvidedProductRecord `json:"providedProducts,omitempty"`
	DerivedProvidedProducts []ProvidedProductRecord `json:"derivedProvidedProducts,omitempty"`
	Quantity                int64                   `json:"quantity"`
	StartDate               time.Time               `json:"startDate"`
	EndDate                 *time.Time              `json:"endDate,omitempty"`
}

// EntitlementRecord is a file under entitlements/
type EntitlementRecord struct {
	ID           string              `json:"id"`
	Owner        *OwnerRecord        `json:"owner,omitempty"`
	Pool         *PoolRecord         `json:"pool"`
	Quantity     int64               `json:"quantity"`
	Certificates []CertificateRecord `json:"certificates,omitempty"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      *time.Time          `json:"endDate,omitempty"`
}

// ContentRecord is a content set embedded in a product record
type ContentRecord struct {
	UUID               string   `json:"uuid,omitempty"`
	ID                 string   `json:"id"`
	Type               string   `json:"type"`
	Label              string   `json:"label"`
	Name               string   `json:"name"`
	Vendor             string   `json:"vendor"`
	ContentURL         string   `json:"contentUrl,omitempty"`
	GPGURL             string   `json:"gpgUrl,omitempty"`
	RequiredTags       string   `json:"requiredTags,omitempty"`
	ReleaseVersion     string   `json:"releaseVer,omitempty"`
	Arches             string   `json:"arches,omitempty"`
	MetadataExpiration *int64   `json:"metadataExpire,omitempty"`
	ModifiedProductIDs []string `json:"modifiedProductIds,omitempty"`
}

// ProductContentRecord attaches content to a product
type ProductContentRecord struct {
	Content ContentRecord `json:"content"`
	Enabled bool          `json:"enabled"`
}

// ProductRecord is a file under products/
type ProductRecord struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Multiplier         int64                  `json:"multiplier"`
	Attributes         map[string]string      `json:"attributes,omitempty"`
	DerivedProductID   string                 `json:"derivedProductId,omitempty"`
	ProvidedProductIDs []string               `json:"providedProductIds,omitempty"`
	ProductContent     []ProductContentRecord `json:"productContent,omitempty"`
}

// CapabilityRecord is a distributor capability
type CapabilityRecord struct {
	Name string `json:"name"`
}

// DistributorVersionRecord is a file under distributor_version/
type DistributorVersionRecord struct {
	ID           string             `json:"id,omitempty"`
	Name         string             `json:"name"`
	DisplayName  string             `json:"displayName"`
	Capabilities []CapabilityRecord `json:"capabilities,omitempty"`
}

// CdnRecord is a file under content_delivery_network/
type CdnRecord struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label"`
	Name  string `json:"name"`
	URL   string `json:"url"`
}
