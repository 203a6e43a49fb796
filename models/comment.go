package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Comment/audit entry types.
const (
	CommentTypeComment       = "comment"
	CommentTypeApprovalNote  = "approval_note"
	CommentTypeRejectionNote = "rejection_note"
	CommentTypeSystem        = "system"
	CommentTypeWithdrawal    = "withdrawal"
	CommentTypeEscalation    = "escalation"
)

// SubmissionComment is one entry in a submission's append-only audit and
// comment trail. Entries are inserted on every state transition (system
// authored) and by human actors; they are never updated or deleted.
// IsInternal entries are hidden from the requester.
type SubmissionComment struct {
	ID           string  `gorm:"type:uuid;primaryKey"`
	SubmissionID string  `gorm:"type:uuid;index;not null"`
	ActionID     *string `gorm:"type:uuid;index"`

	// AuthorID is nil for system-authored entries.
	AuthorID *string `gorm:"type:uuid"`

	Content    string `gorm:"not null"`
	Type       string `gorm:"not null;default:comment"`
	IsInternal bool   `gorm:"not null;default:false"`

	// Attachments holds uploaded file metadata (name, url, size, content type).
	Attachments datatypes.JSON

	CreatedAt time.Time
}

func (SubmissionComment) TableName() string {
	return "submission_comments"
}

func (c *SubmissionComment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
