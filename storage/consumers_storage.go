package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ConsumersStorage implements the ConsumerStore interface
type ConsumersStorage struct {
	db *gorm.DB
}

// Get returns the consumer with owner and identity certificate
func (s *ConsumersStorage) Get(consumerUUID string) (*model.Consumer, error) {
	var c model.Consumer
	err := s.db.Preload("Owner").
		Preload("IdentityCert").
		Preload("IdentityCert.Serial").
		Where("uuid = ?", consumerUUID).
		First(&c).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "consumers: get failed")
	}
	return &c, nil
}

// Create stores a consumer; referenced owner and certificate must exist
func (s *ConsumersStorage) Create(consumer *model.Consumer) error {
	if err := s.db.Omit(clause.Associations).Create(consumer).Error; err != nil {
		if isUniqueConstraintError(err) {
			return model.AlreadyExistsErrorFmt("consumer already exists: %s", consumer.UUID)
		}
		return errors.Wrap(err, "consumers: create failed")
	}
	return nil
}

// EntitlementsStorage implements the EntitlementStore interface
type EntitlementsStorage struct {
	db *gorm.DB
}

// ListByConsumer lists entitlements of a consumer in creation order
func (s *EntitlementsStorage) ListByConsumer(consumerUUID string) ([]model.Entitlement, error) {
	var ents []model.Entitlement
	err := s.db.Preload("Pool").
		Preload("Pool.Certificate").
		Preload("Certificates").
		Preload("Certificates.Serial").
		Where("consumer_uuid = ?", consumerUUID).
		Order("created_at, id").
		Find(&ents).Error
	if err != nil {
		return nil, errors.Wrap(err, "entitlements: list failed")
	}
	return ents, nil
}

// Create stores an entitlement; an empty id is generated
func (s *EntitlementsStorage) Create(entitlement *model.Entitlement) error {
	if entitlement.ID == "" {
		entitlement.ID = newID()
	}
	if err := s.db.Omit(clause.Associations).Create(entitlement).Error; err != nil {
		return errors.Wrap(err, "entitlements: create failed")
	}
	return nil
}
