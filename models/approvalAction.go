package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionPending  = "pending"
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// ApprovalAction is one approver's slot within a step of a submission. One
// row is created per resolved approver when the step is activated; rows are
// immutable once acted upon.
type ApprovalAction struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	SubmissionID string `gorm:"type:uuid;index;not null"`
	StepIndex    int    `gorm:"not null"`

	// Exactly one approver reference is relevant, selected by ApproverKind.
	// A position-kind action may additionally carry ApproverUserID when
	// resolution pinned the position to its single current holder.
	ApproverKind       string  `gorm:"not null"`
	ApproverUserID     *string `gorm:"type:uuid;index"`
	ApproverRoleID     *string `gorm:"type:uuid;index"`
	ApproverPositionID *string `gorm:"type:uuid;index"`

	Status  string `gorm:"not null;default:pending"`
	Reason  string
	ActedBy *string `gorm:"type:uuid"`
	ActedAt *time.Time

	// DelegatedFromUserID is set when the decision was recorded by a delegate:
	// it holds the nominal approver the actor was standing in for. The
	// approver reference above is never rewritten by delegation.
	DelegatedFromUserID *string `gorm:"type:uuid"`

	// DecisionTrace records which authorization rule permitted the decision.
	DecisionTrace datatypes.JSON

	DueAt         *time.Time
	ReminderCount int `gorm:"not null;default:0"`

	// Escalation layers an additional right to act on top of the original
	// approver reference; it never replaces it.
	IsEscalated         bool `gorm:"not null;default:false"`
	EscalatedAt         *time.Time
	EscalatedFromUserID *string `gorm:"type:uuid"`
	EscalatedToUserID   *string `gorm:"type:uuid;index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *ApprovalAction) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
