package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delegation is a time-bounded grant letting one user act as another's
// approver. A delegation is effective iff it is active, has started, and has
// not ended. Effectiveness is evaluated at call time, so a delegation that
// lapses mid-flight immediately stops being honored.
type Delegation struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	DelegatorID string `gorm:"type:uuid;index;not null"`
	DelegateID  string `gorm:"type:uuid;index;not null"`

	StartsAt time.Time `gorm:"not null"`
	EndsAt   *time.Time
	IsActive bool `gorm:"not null;default:true"`

	CreatedAt time.Time
}

func (d *Delegation) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}
