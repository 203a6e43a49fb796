package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Approval modes supported by a step. The mode decides when a step is
// considered resolved given the decisions recorded so far.
const (
	ModeAny      = "any"      // one approval resolves the step
	ModeAll      = "all"      // unanimous approval required, one rejection fails fast
	ModeMajority = "majority" // strict majority of all actions on the step
)

// Approver descriptor kinds. A descriptor names who may act on a step:
// a concrete user, any holder of a role, or the holder of a position.
const (
	ApproverKindUser     = "user"
	ApproverKindRole     = "role"
	ApproverKindPosition = "position"
)

// RequestType is an immutable-per-version template for a request: an ordered
// list of approval steps.
type RequestType struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"not null"`
	Description string

	// Steps are ordered by SortOrder; step 0 is activated at submission time.
	Steps []ApprovalStep `gorm:"foreignKey:RequestTypeID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ApprovalStep is one stage in a request type's approval sequence.
type ApprovalStep struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RequestTypeID string `gorm:"type:uuid;index"`

	// SortOrder defines the step's place in the sequence (0-based).
	SortOrder int `gorm:"not null"`

	// ApprovalMode is one of ModeAny, ModeAll, ModeMajority.
	ApprovalMode string `gorm:"not null"`

	// SLAHours is the optional time budget for the step. When set, every
	// action created for the step gets DueAt = activation time + SLAHours.
	SLAHours *int

	Approvers []StepApprover `gorm:"foreignKey:StepID"`

	CreatedAt time.Time
}

// StepApprover is one approver descriptor on a step: a kind tag plus the id
// of the referenced user, role or position. The kind tag drives dispatch in
// the resolver and the authorization predicate, so a row can never carry two
// conflicting references.
type StepApprover struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	StepID string `gorm:"type:uuid;index"`

	// Kind is one of ApproverKindUser, ApproverKindRole, ApproverKindPosition.
	Kind string `gorm:"not null"`

	// RefID is the user, role or position id, depending on Kind.
	RefID string `gorm:"not null"`
}

func (rt *RequestType) BeforeCreate(tx *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	return nil
}

func (s *ApprovalStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

func (a *StepApprover) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
