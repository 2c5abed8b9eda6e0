package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// CertificatesStorage implements the CertificateStore interface
type CertificatesStorage struct {
	db *gorm.DB
}

// CreateSerial stores a new serial; the id is assigned by the database
func (s *CertificatesStorage) CreateSerial(serial *model.CertificateSerial) error {
	serial.ID = 0
	if err := s.db.Create(serial).Error; err != nil {
		return errors.Wrap(err, "certificates: create serial failed")
	}
	return nil
}

// CreateIdentityCertificate stores an identity certificate
func (s *CertificatesStorage) CreateIdentityCertificate(cert *model.IdentityCertificate) error {
	if cert.ID == "" {
		cert.ID = newID()
	}
	if cert.Serial != nil {
		cert.SerialID = cert.Serial.ID
	}
	if err := s.db.Omit(clause.Associations).Create(cert).Error; err != nil {
		return errors.Wrap(err, "certificates: create identity certificate failed")
	}
	return nil
}

// SaveSubscriptionCertificate creates or updates a subscription certificate
func (s *CertificatesStorage) SaveSubscriptionCertificate(cert *model.SubscriptionCertificate) error {
	if cert.ID == "" {
		cert.ID = newID()
	}
	if cert.Serial != nil {
		cert.SerialID = cert.Serial.ID
	}
	if err := s.db.Omit(clause.Associations).Save(cert).Error; err != nil {
		return errors.Wrap(err, "certificates: save subscription certificate failed")
	}
	return nil
}

// EntitlementCertificatesByConsumer lists the entitlement certificates of a consumer
func (s *CertificatesStorage) EntitlementCertificatesByConsumer(consumerUUID string) (
	[]model.EntitlementCertificate, error,
) {
	var certs []model.EntitlementCertificate
	err := s.db.Preload("Serial").
		Preload("Entitlement").
		Preload("Entitlement.Pool").
		Joins("JOIN entitlements ON entitlements.id = entitlement_certificates.entitlement_id").
		Where("entitlements.consumer_uuid = ?", consumerUUID).
		Order("entitlement_certificates.serial_id").
		Find(&certs).Error
	if err != nil {
		return nil, errors.Wrap(err, "certificates: list entitlement certificates failed")
	}
	return certs, nil
}

// CreateEntitlementCertificate stores an entitlement certificate
func (s *CertificatesStorage) CreateEntitlementCertificate(cert *model.EntitlementCertificate) error {
	if cert.ID == "" {
		cert.ID = newID()
	}
	if cert.Serial != nil {
		cert.SerialID = cert.Serial.ID
	}
	if err := s.db.Omit(clause.Associations).Create(cert).Error; err != nil {
		return errors.Wrap(err, "certificates: create entitlement certificate failed")
	}
	return nil
}

// ProductCertificate returns the certificate of a product
func (s *CertificatesStorage) ProductCertificate(productID string) (*model.ProductCertificate, error) {
	var cert model.ProductCertificate
	if err := s.db.Where("product_id = ?", productID).First(&cert).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "certificates: get product certificate failed")
	}
	return &cert, nil
}

// SaveProductCertificate creates or replaces the certificate of a product
func (s *CertificatesStorage) SaveProductCertificate(cert *model.ProductCertificate) error {
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(cert).Error; err != nil {
		return errors.Wrap(err, "certificates: save product certificate failed")
	}
	return nil
}
