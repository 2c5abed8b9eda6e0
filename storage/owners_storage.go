package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// OwnersStorage implements the OwnerStore interface
type OwnersStorage struct {
	db *gorm.DB
}

func (s *OwnersStorage) withUpstream() *gorm.DB {
	return s.db.Preload("UpstreamConsumer").
		Preload("UpstreamConsumer.IdentityCert").
		Preload("UpstreamConsumer.IdentityCert.Serial")
}

// Get returns the owner with the passed key
func (s *OwnersStorage) Get(key string) (*model.Owner, error) {
	var owner model.Owner
	if err := s.withUpstream().Where(&model.Owner{Key: key}).First(&owner).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "owners: get failed")
	}
	return &owner, nil
}

// GetByID returns the owner with the passed id
func (s *OwnersStorage) GetByID(id string) (*model.Owner, error) {
	var owner model.Owner
	if err := s.withUpstream().Where("id = ?", id).First(&owner).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "owners: get by id failed")
	}
	return &owner, nil
}

// GetByUpstreamUUID returns the owner bound to the upstream consumer with the passed uuid
func (s *OwnersStorage) GetByUpstreamUUID(upstreamUUID string) (*model.Owner, error) {
	var uc model.UpstreamConsumer
	if err := s.db.Where("uuid = ?", upstreamUUID).First(&uc).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "owners: get by upstream uuid failed")
	}
	return s.GetByID(uc.OwnerID)
}

// Create stores a new owner; an empty id is generated
func (s *OwnersStorage) Create(owner *model.Owner) error {
	if owner.ID == "" {
		owner.ID = newID()
	}
	if err := s.db.Omit(clause.Associations).Create(owner).Error; err != nil {
		if isUniqueConstraintError(err) {
			return model.AlreadyExistsErrorFmt("owner already exists: %s", owner.Key)
		}
		return errors.Wrap(err, "owners: create failed")
	}
	return nil
}

// List returns all owners ordered by key
func (s *OwnersStorage) List() ([]model.Owner, error) {
	var owners []model.Owner
	if err := s.withUpstream().Order("owner_key").Find(&owners).Error; err != nil {
		return nil, errors.Wrap(err, "owners: list failed")
	}
	return owners, nil
}

// SetUpstreamConsumer replaces the upstream consumer of an owner
func (s *OwnersStorage) SetUpstreamConsumer(ownerID string, consumer *model.UpstreamConsumer) error {
	return s.db.Transaction(
		func(tx *gorm.DB) error {
			if err := tx.Where("owner_id = ?", ownerID).Delete(&model.UpstreamConsumer{}).Error; err != nil {
				return errors.Wrap(err, "owners: replace upstream consumer failed")
			}
			consumer.OwnerID = ownerID
			if consumer.ID == "" {
				consumer.ID = newID()
			}
			if err := tx.Omit(clause.Associations).Create(consumer).Error; err != nil {
				if isUniqueConstraintError(err) {
					return model.AlreadyExistsErrorFmt("upstream consumer already in use: %s", consumer.UUID)
				}
				return errors.Wrap(err, "owners: store upstream consumer failed")
			}
			return nil
		},
	)
}

// ClearUpstreamConsumer removes the upstream consumer of an owner and returns it
func (s *OwnersStorage) ClearUpstreamConsumer(ownerID string) (*model.UpstreamConsumer, error) {
	var uc model.UpstreamConsumer
	if err := s.db.Where("owner_id = ?", ownerID).First(&uc).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "owners: clear upstream consumer failed")
	}
	if err := s.db.Delete(&uc).Error; err != nil {
		return nil, errors.Wrap(err, "owners: clear upstream consumer failed")
	}
	return &uc, nil
}
