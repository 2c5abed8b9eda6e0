package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ExporterMetadataStorage implements the ExporterMetadataStore interface
type ExporterMetadataStorage struct {
	db *gorm.DB
}

// GetByType returns the record of a scope without owner
func (s *ExporterMetadataStorage) GetByType(metadataType string) (*model.ExporterMetadata, error) {
	return s.GetByTypeAndOwner(metadataType, "")
}

// GetByTypeAndOwner returns the record of an owner scope
func (s *ExporterMetadataStorage) GetByTypeAndOwner(metadataType, ownerID string) (*model.ExporterMetadata, error) {
	var m model.ExporterMetadata
	if err := s.db.Where("type = ? AND owner_id = ?", metadataType, ownerID).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "exporter metadata: get failed")
	}
	return &m, nil
}

// Save creates or updates a record
func (s *ExporterMetadataStorage) Save(metadata *model.ExporterMetadata) error {
	if err := s.db.Save(metadata).Error; err != nil {
		if isUniqueConstraintError(err) {
			return model.AlreadyExistsErrorFmt(
				"exporter metadata already exists: %s/%s", metadata.Type, metadata.OwnerID,
			)
		}
		return errors.Wrap(err, "exporter metadata: save failed")
	}
	return nil
}

// Delete removes a record
func (s *ExporterMetadataStorage) Delete(metadata *model.ExporterMetadata) error {
	if err := s.db.Delete(&model.ExporterMetadata{}, metadata.ID).Error; err != nil {
		return errors.Wrap(err, "exporter metadata: delete failed")
	}
	return nil
}
