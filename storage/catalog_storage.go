package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ConsumerTypesStorage implements the ConsumerTypeStore interface
type ConsumerTypesStorage struct {
	db *gorm.DB
}

// GetByLabel returns the consumer type with the passed label
func (s *ConsumerTypesStorage) GetByLabel(label string) (*model.ConsumerType, error) {
	var ct model.ConsumerType
	if err := s.db.Where("label = ?", label).First(&ct).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "consumer types: get failed")
	}
	return &ct, nil
}

// List returns all consumer types ordered by label
func (s *ConsumerTypesStorage) List() ([]model.ConsumerType, error) {
	var types []model.ConsumerType
	if err := s.db.Order("label").Find(&types).Error; err != nil {
		return nil, errors.Wrap(err, "consumer types: list failed")
	}
	return types, nil
}

// Upsert creates or updates consumer types by label
func (s *ConsumerTypesStorage) Upsert(types []*model.ConsumerType) error {
	if len(types) == 0 {
		return nil
	}
	err := s.db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "label"}},
			DoUpdates: clause.AssignmentColumns([]string{"manifest", "updated_at"}),
		},
	).Create(types).Error
	if err != nil {
		return errors.Wrap(err, "consumer types: upsert failed")
	}
	return nil
}

// DistributorVersionsStorage implements the DistributorVersionStore interface
type DistributorVersionsStorage struct {
	db *gorm.DB
}

// List returns all distributor versions ordered by name
func (s *DistributorVersionsStorage) List() ([]model.DistributorVersion, error) {
	var versions []model.DistributorVersion
	if err := s.db.Order("name").Find(&versions).Error; err != nil {
		return nil, errors.Wrap(err, "distributor versions: list failed")
	}
	return versions, nil
}

// Upsert creates or updates distributor versions by name
func (s *DistributorVersionsStorage) Upsert(versions []*model.DistributorVersion) error {
	if len(versions) == 0 {
		return nil
	}
	err := s.db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "capabilities", "updated_at"}),
		},
	).Create(versions).Error
	if err != nil {
		return errors.Wrap(err, "distributor versions: upsert failed")
	}
	return nil
}

// CdnsStorage implements the CdnStore interface
type CdnsStorage struct {
	db *gorm.DB
}

// GetByLabel returns the cdn with the passed label
func (s *CdnsStorage) GetByLabel(label string) (*model.Cdn, error) {
	var cdn model.Cdn
	if err := s.db.Where("label = ?", label).First(&cdn).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "cdns: get failed")
	}
	return &cdn, nil
}

// List returns all cdns ordered by label
func (s *CdnsStorage) List() ([]model.Cdn, error) {
	var cdns []model.Cdn
	if err := s.db.Order("label").Find(&cdns).Error; err != nil {
		return nil, errors.Wrap(err, "cdns: list failed")
	}
	return cdns, nil
}

// Upsert creates or updates cdns by label
func (s *CdnsStorage) Upsert(cdns []*model.Cdn) error {
	if len(cdns) == 0 {
		return nil
	}
	err := s.db.Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "label"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "url", "updated_at"}),
		},
	).Create(cdns).Error
	if err != nil {
		return errors.Wrap(err, "cdns: upsert failed")
	}
	return nil
}
