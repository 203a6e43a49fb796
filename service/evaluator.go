package services

import (
	model "github.com/peopleflow/approval-engine/models"
)

// StepOutcome is the verdict of evaluating a step's actions against its
// approval mode.
type StepOutcome string

const (
	StepStillPending StepOutcome = "still_pending"
	StepApproved     StepOutcome = "step_approved"
	StepRejected     StepOutcome = "step_rejected"
)

// EvaluateStep determines whether a step is resolved given a snapshot of its
// actions. It is pure and order-independent: decisions on sibling actions may
// arrive in any order and the verdict only depends on the counts.
//
//   - any: approved as soon as one action is approved; rejected only when
//     every action is rejected, since a lone rejection leaves peers free to
//     approve.
//   - all: rejected as soon as one action is rejected; approved only when
//     every action is approved.
//   - majority: approved once approvals form a strict majority; rejected the
//     moment a strict majority has become mathematically unreachable, so an
//     even split never leaves the step pending forever.
func EvaluateStep(mode string, actions []model.ApprovalAction) StepOutcome {
	total := len(actions)
	if total == 0 {
		return StepStillPending
	}

	approved, rejected := 0, 0
	for _, a := range actions {
		switch a.Status {
		case model.ActionApproved:
			approved++
		case model.ActionRejected:
			rejected++
		}
	}

	switch mode {
	case model.ModeAny:
		if approved > 0 {
			return StepApproved
		}
		if rejected == total {
			return StepRejected
		}
	case model.ModeAll:
		if rejected > 0 {
			return StepRejected
		}
		if approved == total {
			return StepApproved
		}
	case model.ModeMajority:
		need := total/2 + 1
		if approved >= need {
			return StepApproved
		}
		// Approvals can still reach the threshold only while the undecided
		// pool is large enough: approved + pending >= need.
		if rejected > total-need {
			return StepRejected
		}
	}
	return StepStillPending
}
