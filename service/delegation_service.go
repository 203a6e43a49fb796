package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	model "github.com/peopleflow/approval-engine/models"
	"gorm.io/gorm"
)

// effectiveDelegationScope narrows a delegation query to records that are
// effective right now: active, started, and not yet ended.
func effectiveDelegationScope(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&model.Delegation{}).
		Where("is_active = ?", true).
		Where("starts_at <= ?", now).
		Where("ends_at IS NULL OR ends_at >= ?", now)
}

// ActiveDelegateFor returns the delegate of the single effective delegation
// for a delegator, or nil when there is none. When several effective
// delegations overlap, the most recently created one wins; the tie-break is
// deliberate rather than incidental result ordering.
func (s *WorkflowService) ActiveDelegateFor(delegatorID string) (*string, error) {
	var del model.Delegation
	err := effectiveDelegationScope(s.db, time.Now()).
		Where("delegator_id = ?", delegatorID).
		Order("created_at DESC").
		First(&del).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up delegation for %s: %w", delegatorID, err)
	}
	return &del.DelegateID, nil
}

// DelegatorsFor returns all users who have currently delegated their approval
// authority to the given user.
func (s *WorkflowService) DelegatorsFor(delegateID string) ([]string, error) {
	return delegatorsFor(s.db, delegateID)
}

func delegatorsFor(db *gorm.DB, delegateID string) ([]string, error) {
	var delegations []model.Delegation
	if err := effectiveDelegationScope(db, time.Now()).
		Where("delegate_id = ?", delegateID).
		Find(&delegations).Error; err != nil {
		return nil, fmt.Errorf("failed to look up delegators for %s: %w", delegateID, err)
	}

	seen := make(map[string]bool, len(delegations))
	delegators := make([]string, 0, len(delegations))
	for _, d := range delegations {
		if !seen[d.DelegatorID] {
			seen[d.DelegatorID] = true
			delegators = append(delegators, d.DelegatorID)
		}
	}
	return delegators, nil
}

// CanActOnBehalfOf reports whether actorID may stand in for nominalID: either
// they are the same user, or an effective delegation exists from the nominal
// approver to the actor.
func (s *WorkflowService) CanActOnBehalfOf(actorID, nominalID string) (bool, error) {
	if actorID == nominalID {
		return true, nil
	}
	var count int64
	if err := effectiveDelegationScope(s.db, time.Now()).
		Where("delegator_id = ? AND delegate_id = ?", nominalID, actorID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check delegation from %s to %s: %w", nominalID, actorID, err)
	}
	return count > 0, nil
}

// CreateDelegation records a new delegation grant. Delegations are owned by
// their delegator; the engine itself never mutates them.
func (s *WorkflowService) CreateDelegation(delegatorID, delegateID string, startsAt time.Time, endsAt *time.Time) (*model.Delegation, error) {
	if delegatorID == delegateID {
		return nil, &ValidationError{Detail: "cannot delegate to yourself"}
	}
	if endsAt != nil && !endsAt.After(startsAt) {
		return nil, &ValidationError{Detail: "delegation end must be after its start"}
	}

	del := model.Delegation{
		DelegatorID: delegatorID,
		DelegateID:  delegateID,
		StartsAt:    startsAt,
		EndsAt:      endsAt,
		IsActive:    true,
	}
	if err := s.db.Create(&del).Error; err != nil {
		log.Printf("[CreateDelegation] Error creating delegation: %v", err)
		return nil, fmt.Errorf("failed to create delegation: %w", err)
	}
	log.Printf("[CreateDelegation] %s delegated to %s until %v", delegatorID, delegateID, endsAt)
	return &del, nil
}

// RevokeDelegation deactivates a delegation. Only the delegator may revoke.
func (s *WorkflowService) RevokeDelegation(delegationID, actorID string) error {
	var del model.Delegation
	if err := s.db.First(&del, "id = ?", delegationID).Error; err != nil {
		log.Printf("[RevokeDelegation] Error fetching delegation %s: %v", delegationID, err)
		return fmt.Errorf("failed to fetch delegation: %w", err)
	}
	if del.DelegatorID != actorID {
		return &AuthorizationError{ActorID: actorID, Detail: "only the delegator may revoke a delegation"}
	}
	if err := s.db.Model(&del).Update("is_active", false).Error; err != nil {
		log.Printf("[RevokeDelegation] Error revoking delegation %s: %v", delegationID, err)
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}
	return nil
}

// ListDelegations returns all delegations where the user is delegator or
// delegate, newest first.
func (s *WorkflowService) ListDelegations(userID string) ([]model.Delegation, error) {
	var delegations []model.Delegation
	if err := s.db.
		Where("delegator_id = ? OR delegate_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&delegations).Error; err != nil {
		log.Printf("[ListDelegations] Error fetching delegations for %s: %v", userID, err)
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	return delegations, nil
}
