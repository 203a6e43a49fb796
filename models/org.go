package models

import "time"

// Read-only collaborator tables owned by the user/employee modules. The
// engine queries them to resolve approvers and check eligibility; it never
// writes to them.

type User struct {
	ID    string `gorm:"type:uuid;primaryKey"`
	Name  string
	Email string
}

type UserRole struct {
	ID     string `gorm:"type:uuid;primaryKey"`
	UserID string `gorm:"type:uuid;index;not null"`
	RoleID string `gorm:"type:uuid;index;not null"`
}

// Designation ties a user to a position within the organizational hierarchy.
// Position-based approver resolution and sector fencing read the primary
// active designation.
type Designation struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	UserID     string `gorm:"type:uuid;index;not null"`
	PositionID string `gorm:"type:uuid;index;not null"`
	UnitID     *string `gorm:"type:uuid"`
	SectorID   *string `gorm:"type:uuid"`
	IsPrimary  bool   `gorm:"not null;default:false"`
	IsActive   bool   `gorm:"not null;default:true"`

	CreatedAt time.Time
}
