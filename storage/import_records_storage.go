package storage

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/candlepin/candlepin-sub033/storage/model"
)

// ImportRecordsStorage implements the ImportRecordStore interface
type ImportRecordsStorage struct {
	db *gorm.DB
}

// Create appends a record
func (s *ImportRecordsStorage) Create(record *model.ImportRecord) error {
	record.ID = 0
	if err := s.db.Create(record).Error; err != nil {
		return errors.Wrap(err, "import records: create failed")
	}
	return nil
}

// ListByOwner lists the records of an owner, newest first
func (s *ImportRecordsStorage) ListByOwner(ownerID string) ([]model.ImportRecord, error) {
	var records []model.ImportRecord
	err := s.db.Where("owner_id = ?", ownerID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, "import records: list failed")
	}
	return records, nil
}

// RulesStorage implements the RulesStore interface
type RulesStorage struct {
	db *gorm.DB
}

// Current returns the most recently stored rules
func (s *RulesStorage) Current() (*model.Rules, error) {
	var r model.Rules
	if err := s.db.Order("id DESC").First(&r).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "rules: get current failed")
	}
	return &r, nil
}

// Save stores a new rule set which becomes the active one
func (s *RulesStorage) Save(rules *model.Rules) error {
	rules.ID = 0
	if err := s.db.Create(rules).Error; err != nil {
		return errors.Wrap(err, "rules: save failed")
	}
	return nil
}

// JobsStorage implements the JobStore interface
type JobsStorage struct {
	db *gorm.DB
}

// Get returns the job with the passed id
func (s *JobsStorage) Get(id string) (*model.JobStatus, error) {
	var job model.JobStatus
	if err := s.db.Where("id = ?", id).First(&job).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "jobs: get failed")
	}
	return &job, nil
}

// Save creates or updates a job; an empty id is generated
func (s *JobsStorage) Save(job *model.JobStatus) error {
	if job.ID == "" {
		job.ID = newID()
	}
	if err := s.db.Save(job).Error; err != nil {
		return errors.Wrap(err, "jobs: save failed")
	}
	return nil
}
