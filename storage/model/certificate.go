package model

import (
	"time"
)

// CertificateSerial is a serial number record. Imported certificates always
// get a fresh serial so that serials of different systems never collide.
type CertificateSerial struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Expiration *time.Time `json:"expiration,omitempty"`
	Collected  bool       `json:"collected"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IdentityCertificate is the identity certificate of a consumer.
type IdentityCertificate struct {
	ID        string             `gorm:"primaryKey;size:64" json:"id"`
	Key       string             `gorm:"type:text" json:"key"`
	Cert      string             `gorm:"type:text" json:"cert"`
	SerialID  uint64             `json:"serial_id"`
	Serial    *CertificateSerial `gorm:"foreignKey:SerialID" json:"serial,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// EntitlementCertificate is a certificate issued for an entitlement.
type EntitlementCertificate struct {
	ID            string             `gorm:"primaryKey;size:64" json:"id"`
	Key           string             `gorm:"type:text" json:"key"`
	Cert          string             `gorm:"type:text" json:"cert"`
	SerialID      uint64             `json:"serial_id"`
	Serial        *CertificateSerial `gorm:"foreignKey:SerialID" json:"serial,omitempty"`
	EntitlementID string             `gorm:"index;size:64" json:"entitlement_id"`
	Entitlement   *Entitlement       `gorm:"foreignKey:EntitlementID" json:"-"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// SubscriptionCertificate is the certificate of an imported subscription,
// attached to the pools materialised from it.
type SubscriptionCertificate struct {
	ID        string             `gorm:"primaryKey;size:64" json:"id"`
	Key       string             `gorm:"type:text" json:"key"`
	Cert      string             `gorm:"type:text" json:"cert"`
	SerialID  uint64             `json:"serial_id"`
	Serial    *CertificateSerial `gorm:"foreignKey:SerialID" json:"serial,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ProductCertificate is the engineering certificate of a product.
type ProductCertificate struct {
	ProductID string    `gorm:"primaryKey;size:255" json:"product_id"`
	Key       string    `gorm:"type:text" json:"key"`
	Cert      string    `gorm:"type:text" json:"cert"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CertificateStore gives access to serials and the different certificate kinds.
type CertificateStore interface {
	CreateSerial(serial *CertificateSerial) error
	CreateIdentityCertificate(cert *IdentityCertificate) error
	SaveSubscriptionCertificate(cert *SubscriptionCertificate) error
	// EntitlementCertificatesByConsumer lists the certificates of all
	// entitlements of a consumer, with entitlement and pool loaded.
	EntitlementCertificatesByConsumer(consumerUUID string) ([]EntitlementCertificate, error)
	CreateEntitlementCertificate(cert *EntitlementCertificate) error
	// ProductCertificate returns the certificate for a product, or (nil, nil).
	ProductCertificate(productID string) (*ProductCertificate, error)
	SaveProductCertificate(cert *ProductCertificate) error
}
