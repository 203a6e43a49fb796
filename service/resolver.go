package services

import (
	"fmt"
	"log"

	model "github.com/peopleflow/approval-engine/models"
	"gorm.io/gorm"
)

// ResolvedApprover is one concrete approval slot produced from a step's
// approver descriptors. Kind mirrors the descriptor kind; UserID is set when
// resolution pinned the slot to a concrete user.
type ResolvedApprover struct {
	Kind       string
	UserID     *string
	RoleID     *string
	PositionID *string
}

// resolveApprovers materializes a step's declared approver descriptors into
// the approval slots the engine will create actions for. It is a pure lookup;
// callers persist the result.
//
//   - user descriptors pin directly to that user.
//   - role descriptors stay dynamic: the role id is stored and membership is
//     checked at act time.
//   - position descriptors pin to the single current primary holder when there
//     is exactly one; with none or several the position id alone is stored and
//     matching is deferred to act time, where the sector fence applies.
//
// A step whose descriptor list is empty is a hard configuration error: the
// submission would be stuck, so activation halts instead of silently skipping.
func resolveApprovers(tx *gorm.DB, step model.ApprovalStep) ([]ResolvedApprover, error) {
	if len(step.Approvers) == 0 {
		return nil, &ConfigurationError{StepIndex: step.SortOrder,
			Detail: "step has no approver descriptors"}
	}

	resolved := make([]ResolvedApprover, 0, len(step.Approvers))
	for _, desc := range step.Approvers {
		refID := desc.RefID
		switch desc.Kind {
		case model.ApproverKindUser:
			resolved = append(resolved, ResolvedApprover{
				Kind:   model.ApproverKindUser,
				UserID: &refID,
			})
		case model.ApproverKindRole:
			resolved = append(resolved, ResolvedApprover{
				Kind:   model.ApproverKindRole,
				RoleID: &refID,
			})
		case model.ApproverKindPosition:
			var holders []model.Designation
			if err := tx.
				Where("position_id = ? AND is_primary = ? AND is_active = ?", refID, true, true).
				Find(&holders).Error; err != nil {
				return nil, fmt.Errorf("failed to resolve position %s: %w", refID, err)
			}
			slot := ResolvedApprover{
				Kind:       model.ApproverKindPosition,
				PositionID: &refID,
			}
			if len(holders) == 1 {
				userID := holders[0].UserID
				slot.UserID = &userID
			} else if len(holders) > 1 {
				log.Printf("[resolveApprovers] Position %s has %d primary holders, deferring to act-time matching", refID, len(holders))
			}
			resolved = append(resolved, slot)
		default:
			return nil, &ConfigurationError{StepIndex: step.SortOrder,
				Detail: fmt.Sprintf("unknown approver descriptor kind %q", desc.Kind)}
		}
	}
	return resolved, nil
}
