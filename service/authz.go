package services

import (
	"errors"
	"fmt"

	model "github.com/peopleflow/approval-engine/models"
	"gorm.io/gorm"
)

// RoleDirectory answers role membership queries. Membership is re-checked on
// every call, so role grants and revocations after action creation take
// effect immediately.
type RoleDirectory interface {
	UserHasRole(userID, roleID string) (bool, error)
}

// OrgDirectory answers organizational designation queries.
type OrgDirectory interface {
	// PrimaryDesignation returns the user's primary active designation, or
	// nil when the user has none.
	PrimaryDesignation(userID string) (*model.Designation, error)
}

// DecisionTrace records which authorization rule fired and why. It replaces
// side-effect logging inside the predicate: callers persist or log it.
type DecisionTrace struct {
	Rule    string `json:"rule"`
	Allowed bool   `json:"allowed"`
	Detail  string `json:"detail,omitempty"`
}

// Authorizer evaluates whether an actor may decide an approval action. It is
// deliberately delegation-agnostic: the engine resolves delegation one level
// up and re-runs the predicate as the delegator.
type Authorizer struct {
	roles RoleDirectory
	org   OrgDirectory
}

func NewAuthorizer(roles RoleDirectory, org OrgDirectory) *Authorizer {
	return &Authorizer{roles: roles, org: org}
}

// CanAct reports whether actorID may record a decision on the action, given
// the submission's requester. Branches are checked in order and the first
// applicable one decides.
func (az *Authorizer) CanAct(action model.ApprovalAction, actorID, requesterID string) (bool, DecisionTrace, error) {
	// Terminal actions are immutable.
	if action.Status != model.ActionPending {
		return false, DecisionTrace{Rule: "terminal_action", Allowed: false,
			Detail: "action status is " + action.Status}, nil
	}

	// An action pinned to a concrete user (including a position resolved to
	// its single holder) admits exactly that user.
	if action.ApproverUserID != nil {
		if actorID == *action.ApproverUserID {
			return true, DecisionTrace{Rule: "pinned_user", Allowed: true}, nil
		}
		return false, DecisionTrace{Rule: "pinned_user", Allowed: false,
			Detail: "action is pinned to another user"}, nil
	}

	if action.ApproverRoleID != nil {
		holds, err := az.roles.UserHasRole(actorID, *action.ApproverRoleID)
		if err != nil {
			return false, DecisionTrace{}, fmt.Errorf("role membership lookup failed: %w", err)
		}
		if holds {
			return true, DecisionTrace{Rule: "role_member", Allowed: true}, nil
		}
		return false, DecisionTrace{Rule: "role_member", Allowed: false,
			Detail: "actor does not hold required role"}, nil
	}

	if action.ApproverPositionID != nil {
		des, err := az.org.PrimaryDesignation(actorID)
		if err != nil {
			return false, DecisionTrace{}, fmt.Errorf("designation lookup failed: %w", err)
		}
		if des == nil {
			return false, DecisionTrace{Rule: "position_holder", Allowed: false,
				Detail: "actor has no primary designation"}, nil
		}
		if des.PositionID != *action.ApproverPositionID {
			return false, DecisionTrace{Rule: "position_holder", Allowed: false,
				Detail: "actor does not hold required position"}, nil
		}

		// Unpinned position approvals are fenced to the requester's sector.
		// When either party has no sector the check is skipped and access is
		// permitted, a compatibility choice the trace makes visible.
		reqDes, err := az.org.PrimaryDesignation(requesterID)
		if err != nil {
			return false, DecisionTrace{}, fmt.Errorf("requester designation lookup failed: %w", err)
		}
		if reqDes == nil || reqDes.SectorID == nil || des.SectorID == nil {
			return true, DecisionTrace{Rule: "sector_fail_open", Allowed: true,
				Detail: "actor or requester has no sector"}, nil
		}
		if *reqDes.SectorID != *des.SectorID {
			return false, DecisionTrace{Rule: "sector_fence", Allowed: false,
				Detail: "actor sector differs from requester sector"}, nil
		}
		return true, DecisionTrace{Rule: "sector_match", Allowed: true}, nil
	}

	// Should be unreachable: every action carries an approver reference.
	return false, DecisionTrace{Rule: "no_approver_ref", Allowed: false,
		Detail: "action has no approver reference"}, nil
}

// GORM-backed directory implementations used by the engine at runtime. Tests
// substitute mocks for the interfaces above.

type gormRoleDirectory struct {
	db *gorm.DB
}

func (d gormRoleDirectory) UserHasRole(userID, roleID string) (bool, error) {
	var count int64
	if err := d.db.Model(&model.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

type gormOrgDirectory struct {
	db *gorm.DB
}

func (d gormOrgDirectory) PrimaryDesignation(userID string) (*model.Designation, error) {
	var des model.Designation
	err := d.db.Where("user_id = ? AND is_primary = ? AND is_active = ?", userID, true, true).
		First(&des).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &des, nil
}

func newAuthorizer(db *gorm.DB) *Authorizer {
	return NewAuthorizer(gormRoleDirectory{db: db}, gormOrgDirectory{db: db})
}
