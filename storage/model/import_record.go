package model

import (
	"time"

	"gorm.io/datatypes"
)

// ImportStatus is the outcome recorded for an import attempt.
type ImportStatus string

// Import statuses
const (
	ImportStatusSuccess            ImportStatus = "SUCCESS"
	ImportStatusSuccessWithWarning ImportStatus = "SUCCESS_WITH_WARNING"
	ImportStatusFailure            ImportStatus = "FAILURE"
	ImportStatusDelete             ImportStatus = "DELETE"
)

// ImportUpstreamConsumer is the snapshot of an upstream consumer kept with an import record.
type ImportUpstreamConsumer struct {
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	TypeLabel         string `json:"type"`
	OwnerID           string `json:"owner_id"`
	WebURL            string `json:"web_url,omitempty"`
	APIURL            string `json:"api_url,omitempty"`
	ContentAccessMode string `json:"content_access_mode,omitempty"`
}

// ImportRecord is an append-only audit entry for one import attempt or undo.
type ImportRecord struct {
	ID               uint                                        `gorm:"primaryKey" json:"id"`
	OwnerID          string                                      `gorm:"index;size:64" json:"owner_id"`
	Status           ImportStatus                                `gorm:"size:32" json:"status"`
	StatusMessage    string                                      `gorm:"type:text" json:"status_message"`
	GeneratedBy      string                                      `json:"generated_by,omitempty"`
	GeneratedDate    *time.Time                                  `json:"generated_date,omitempty"`
	FileName         string                                      `json:"file_name,omitempty"`
	UpstreamConsumer *datatypes.JSONType[ImportUpstreamConsumer] `json:"upstream_consumer,omitempty"`
	CreatedAt        time.Time                                   `json:"created_at"`
}

// RecordStatus sets status and message.
func (r *ImportRecord) RecordStatus(status ImportStatus, message string) {
	r.Status = status
	r.StatusMessage = message
}

// SetUpstreamConsumer stores a snapshot of the passed upstream consumer.
func (r *ImportRecord) SetUpstreamConsumer(snapshot *ImportUpstreamConsumer) {
	if snapshot == nil {
		r.UpstreamConsumer = nil
		return
	}
	t := datatypes.NewJSONType(*snapshot)
	r.UpstreamConsumer = &t
}

// ImportRecordStore gives access to import records.
type ImportRecordStore interface {
	Create(record *ImportRecord) error
	// ListByOwner lists an owner's records, newest first.
	ListByOwner(ownerID string) ([]ImportRecord, error)
}
