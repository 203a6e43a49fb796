package services

import (
	"testing"

	"github.com/peopleflow/approval-engine/models"
	"github.com/stretchr/testify/assert"
)

func actionsWith(statuses ...string) []models.ApprovalAction {
	actions := make([]models.ApprovalAction, len(statuses))
	for i, status := range statuses {
		actions[i] = models.ApprovalAction{Status: status}
	}
	return actions
}

func TestEvaluateStep(t *testing.T) {
	const (
		p = models.ActionPending
		a = models.ActionApproved
		r = models.ActionRejected
	)

	tests := []struct {
		name    string
		mode    string
		actions []models.ApprovalAction
		want    StepOutcome
	}{
		// ANY: one approval resolves, one rejection does not kill the step
		{"any: single approval wins immediately", models.ModeAny, actionsWith(a, p, p), StepApproved},
		{"any: rejection with pending peers stays open", models.ModeAny, actionsWith(r, p), StepStillPending},
		{"any: all rejected fails", models.ModeAny, actionsWith(r, r, r), StepRejected},
		{"any: approval beats earlier rejection", models.ModeAny, actionsWith(r, a), StepApproved},
		{"any: all pending", models.ModeAny, actionsWith(p, p), StepStillPending},

		// ALL: fail fast on rejection, unanimity to approve
		{"all: one rejection fails fast", models.ModeAll, actionsWith(a, r), StepRejected},
		{"all: partial approval stays open", models.ModeAll, actionsWith(a, p), StepStillPending},
		{"all: unanimous approval", models.ModeAll, actionsWith(a, a, a), StepApproved},
		{"all: rejection with pending peers fails", models.ModeAll, actionsWith(r, p, p), StepRejected},

		// MAJORITY: strict majority, reject once it is unreachable
		{"majority: 2 of 3 approves", models.ModeMajority, actionsWith(a, a, p), StepApproved},
		{"majority: 1 of 3 stays open", models.ModeMajority, actionsWith(a, p, p), StepStillPending},
		{"majority: 2 of 3 rejections certain", models.ModeMajority, actionsWith(r, r, p), StepRejected},
		{"majority: split pair rejects", models.ModeMajority, actionsWith(a, r), StepRejected},
		{"majority: lone rejection of pair rejects", models.ModeMajority, actionsWith(r, p), StepRejected},
		{"majority: 3 of 5 approves", models.ModeMajority, actionsWith(a, a, a, r, p), StepApproved},
		{"majority: 3 of 5 rejections certain", models.ModeMajority, actionsWith(r, r, r, p, p), StepRejected},
		{"majority: 2 rejections of 5 stay open", models.ModeMajority, actionsWith(r, r, a, p, p), StepStillPending},
		{"majority: single approver approves", models.ModeMajority, actionsWith(a), StepApproved},
		{"majority: single approver rejects", models.ModeMajority, actionsWith(r), StepRejected},

		{"no actions stays pending", models.ModeAny, nil, StepStillPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateStep(tt.mode, tt.actions))
		})
	}
}

// The verdict must not depend on the order decisions arrived in.
func TestEvaluateStepOrderIndependent(t *testing.T) {
	forward := actionsWith(models.ActionApproved, models.ActionRejected, models.ActionPending)
	backward := actionsWith(models.ActionPending, models.ActionRejected, models.ActionApproved)

	for _, mode := range []string{models.ModeAny, models.ModeAll, models.ModeMajority} {
		assert.Equal(t, EvaluateStep(mode, forward), EvaluateStep(mode, backward), "mode %s", mode)
	}
}
