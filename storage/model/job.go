package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobState is the state of an asynchronous manifest job.
type JobState string

// Job states
const (
	JobStateCreated  JobState = "CREATED"
	JobStateRunning  JobState = "RUNNING"
	JobStateFinished JobState = "FINISHED"
	JobStateFailed   JobState = "FAILED"
)

// Job kinds
const (
	JobKindImport = "import"
	JobKindExport = "export"
)

// JobStatus tracks an asynchronous import or export.
type JobStatus struct {
	ID         string                      `gorm:"primaryKey;size:64" json:"id"`
	Kind       string                      `gorm:"size:16" json:"kind"`
	TargetKey  string                      `gorm:"index;size:255" json:"target"`
	State      JobState                    `gorm:"size:16" json:"state"`
	Result     string                      `gorm:"type:text" json:"result,omitempty"`
	Conflicts  datatypes.JSONSlice[string] `json:"conflicts,omitempty"`
	ManifestID string                      `gorm:"size:64" json:"manifest_id,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// Done reports whether the job reached a final state.
func (j *JobStatus) Done() bool {
	return j.State == JobStateFinished || j.State == JobStateFailed
}

// JobStore gives access to job statuses.
type JobStore interface {
	// Get returns the job with the passed id, or (nil, nil).
	Get(id string) (*JobStatus, error)
	Save(job *JobStatus) error
}
