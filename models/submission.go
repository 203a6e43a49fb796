package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission statuses. A submission starts pending and reaches exactly one
// terminal status.
const (
	SubmissionPending   = "pending"
	SubmissionApproved  = "approved"
	SubmissionRejected  = "rejected"
	SubmissionWithdrawn = "withdrawn"
)

// Submission is one instantiation of a RequestType for one requester. It is
// owned by the workflow engine once created: status and step index change
// only through engine transitions, and rows are soft-archived, never deleted.
type Submission struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RequestTypeID string `gorm:"type:uuid;index;not null"`
	RequesterID   string `gorm:"type:uuid;index;not null"`

	// CurrentStepIndex tracks which step of the request type is active while
	// the submission is pending.
	CurrentStepIndex int `gorm:"not null;default:0"`

	Status string `gorm:"not null;default:pending"`

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ArchivedAt gorm.DeletedAt `gorm:"index"`
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
