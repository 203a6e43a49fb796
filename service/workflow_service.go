package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	model "github.com/peopleflow/approval-engine/models"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/elastic/go-elasticsearch/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowService drives submissions through their approval sequence: it
// activates steps, records decisions, applies delegation and escalation, and
// keeps the audit trail.
type WorkflowService struct {
	db       *gorm.DB
	esClient *elasticsearch.Client
	s3Client *s3.S3
}

// NewWorkflowService initializes the service. The Elasticsearch and S3
// clients are optional: without them search indexing and attachment uploads
// are skipped, everything else works.
func NewWorkflowService(db *gorm.DB) (*WorkflowService, error) {
	svc := &WorkflowService{db: db}

	esURL := os.Getenv("ELASTICSEARCH_URL")
	if esURL != "" {
		esClient, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: []string{esURL},
		})
		if err != nil {
			log.Printf("Warning: Failed to create Elasticsearch client: %v", err)
		} else {
			svc.esClient = esClient
		}
	}

	region := os.Getenv("S3_REGION")
	endpoint := os.Getenv("S3_ENDPOINT")
	accessKey := os.Getenv("S3_ACCESS_KEY")
	secretKey := os.Getenv("S3_SECRET_KEY")
	if region != "" && endpoint != "" && accessKey != "" && secretKey != "" {
		sess, err := session.NewSession(&aws.Config{
			Region:           aws.String(region),
			Endpoint:         aws.String(endpoint),
			DisableSSL:       aws.Bool(false),
			Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
			S3ForcePathStyle: aws.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		svc.s3Client = s3.New(sess)
	} else {
		log.Println("S3 configuration incomplete, attachment uploads disabled")
	}

	return svc, nil
}

// stepAt returns the step at the given index of a request type's ordered
// sequence, or nil when the index is past the last step.
func stepAt(tx *gorm.DB, requestTypeID string, index int) (*model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	if err := tx.Preload("Approvers").
		Where("request_type_id = ?", requestTypeID).
		Order("sort_order ASC").
		Find(&steps).Error; err != nil {
		return nil, fmt.Errorf("failed to load steps for request type %s: %w", requestTypeID, err)
	}
	if index < 0 || index >= len(steps) {
		return nil, nil
	}
	return &steps[index], nil
}

// CreateSubmission instantiates a request type for a requester and activates
// its first step, all within one transaction.
func (s *WorkflowService) CreateSubmission(requestTypeID, requesterID string) (*model.Submission, error) {
	var sub model.Submission
	var created []model.ApprovalAction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var rt model.RequestType
		if err := tx.First(&rt, "id = ?", requestTypeID).Error; err != nil {
			log.Printf("[CreateSubmission] Error fetching request type %s: %v", requestTypeID, err)
			return &ValidationError{Detail: "unknown request type"}
		}

		first, err := stepAt(tx, requestTypeID, 0)
		if err != nil {
			return err
		}
		if first == nil {
			return &ConfigurationError{StepIndex: 0, Detail: "request type has no steps"}
		}

		sub = model.Submission{
			RequestTypeID:    requestTypeID,
			RequesterID:      requesterID,
			CurrentStepIndex: 0,
			Status:           model.SubmissionPending,
		}
		if err := tx.Create(&sub).Error; err != nil {
			log.Printf("[CreateSubmission] Error creating submission: %v", err)
			return fmt.Errorf("failed to create submission: %w", err)
		}

		s.appendEntry(tx, sub.ID, nil, nil, "Request submitted", model.CommentTypeSystem, true, nil)

		created, err = s.activateStep(tx, &sub, *first)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.indexSubmission(&sub)
	s.notifyActionsCreated(created)
	log.Printf("[CreateSubmission] Submission %s created for requester %s", sub.ID, requesterID)
	return &sub, nil
}

// ActivateFirstStep activates step 0 of a submission that was created by an
// external intake flow and has no actions yet.
func (s *WorkflowService) ActivateFirstStep(submissionID string) error {
	var created []model.ApprovalAction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var sub model.Submission
		if err := tx.First(&sub, "id = ?", submissionID).Error; err != nil {
			log.Printf("[ActivateFirstStep] Error fetching submission %s: %v", submissionID, err)
			return fmt.Errorf("failed to fetch submission: %w", err)
		}
		if sub.Status != model.SubmissionPending {
			return &StateConflictError{Detail: "submission is " + sub.Status}
		}

		var count int64
		if err := tx.Model(&model.ApprovalAction{}).
			Where("submission_id = ?", sub.ID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count actions: %w", err)
		}
		if count > 0 {
			return &StateConflictError{Detail: "submission already has approval actions"}
		}

		first, err := stepAt(tx, sub.RequestTypeID, 0)
		if err != nil {
			return err
		}
		if first == nil {
			return &ConfigurationError{StepIndex: 0, Detail: "request type has no steps"}
		}

		created, err = s.activateStep(tx, &sub, *first)
		return err
	})
	if err != nil {
		return err
	}

	s.notifyActionsCreated(created)
	return nil
}

// activateStep resolves a step's approvers and creates one pending action per
// resolved slot, deriving DueAt from the step's SLA. Step i+1 is only ever
// activated after step i resolved approved, so activation is strictly
// sequential.
func (s *WorkflowService) activateStep(tx *gorm.DB, sub *model.Submission, step model.ApprovalStep) ([]model.ApprovalAction, error) {
	switch step.ApprovalMode {
	case model.ModeAny, model.ModeAll, model.ModeMajority:
	default:
		// An unknown mode would evaluate to still-pending forever and strand
		// the submission, so activation halts up front.
		return nil, &ConfigurationError{StepIndex: step.SortOrder,
			Detail: fmt.Sprintf("unknown approval mode %q", step.ApprovalMode)}
	}

	resolved, err := resolveApprovers(tx, step)
	if err != nil {
		log.Printf("[activateStep] Halting activation of step %d on submission %s: %v", step.SortOrder, sub.ID, err)
		return nil, err
	}

	var dueAt *time.Time
	if step.SLAHours != nil {
		t := time.Now().Add(time.Duration(*step.SLAHours) * time.Hour)
		dueAt = &t
	}

	actions := make([]model.ApprovalAction, 0, len(resolved))
	for _, slot := range resolved {
		action := model.ApprovalAction{
			SubmissionID:       sub.ID,
			StepIndex:          step.SortOrder,
			ApproverKind:       slot.Kind,
			ApproverUserID:     slot.UserID,
			ApproverRoleID:     slot.RoleID,
			ApproverPositionID: slot.PositionID,
			Status:             model.ActionPending,
			DueAt:              dueAt,
		}
		if err := tx.Create(&action).Error; err != nil {
			log.Printf("[activateStep] Error creating approval action: %v", err)
			return nil, fmt.Errorf("failed to create approval action: %w", err)
		}
		actions = append(actions, action)
	}

	s.appendEntry(tx, sub.ID, nil, nil,
		fmt.Sprintf("Step %d activated with %d approval slot(s)", step.SortOrder, len(actions)),
		model.CommentTypeSystem, true, nil)

	log.Printf("[activateStep] Step %d of submission %s activated with %d action(s)", step.SortOrder, sub.ID, len(actions))
	return actions, nil
}

// authorizeDecision applies the two-phase authorization: escalation grant
// first, then the predicate for the actor themselves, then once per delegator
// the actor may stand in for. Returns the delegator the actor acted for, if
// any, plus the decision trace of the rule that fired.
func (s *WorkflowService) authorizeDecision(tx *gorm.DB, action model.ApprovalAction, actorID, requesterID string) (*string, DecisionTrace, error) {
	if action.IsEscalated && action.EscalatedToUserID != nil && *action.EscalatedToUserID == actorID {
		return nil, DecisionTrace{Rule: "escalated_to", Allowed: true,
			Detail: "actor holds an escalation grant on this action"}, nil
	}

	az := newAuthorizer(tx)
	ok, trace, err := az.CanAct(action, actorID, requesterID)
	if err != nil {
		return nil, DecisionTrace{}, err
	}
	if ok {
		return nil, trace, nil
	}

	delegators, err := delegatorsFor(tx, actorID)
	if err != nil {
		return nil, DecisionTrace{}, err
	}
	for _, delegator := range delegators {
		ok, dtrace, err := az.CanAct(action, delegator, requesterID)
		if err != nil {
			return nil, DecisionTrace{}, err
		}
		if ok {
			dtrace.Rule = "delegated:" + dtrace.Rule
			dtrace.Detail = "acting as delegate of " + delegator
			d := delegator
			return &d, dtrace, nil
		}
	}

	return nil, trace, &AuthorizationError{ActorID: actorID, Detail: "not permitted to act on this approval"}
}

// RecordDecision records an approve or reject decision on one approval action
// by an authorized actor (possibly a delegate or escalation grantee), then
// evaluates the step and advances or terminates the submission. The whole
// transition is one transaction, and the status update is guarded by a
// compare-and-set so that of two concurrent decisions exactly one succeeds.
func (s *WorkflowService) RecordDecision(actionID, actorID, decision, reason string) (*model.ApprovalAction, error) {
	if decision != model.ActionApproved && decision != model.ActionRejected {
		return nil, &ValidationError{Detail: fmt.Sprintf("decision must be %q or %q", model.ActionApproved, model.ActionRejected)}
	}
	if decision == model.ActionRejected && strings.TrimSpace(reason) == "" {
		return nil, &ValidationError{Detail: "a reason is required when rejecting"}
	}

	var action model.ApprovalAction
	var sub model.Submission
	var created []model.ApprovalAction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&action, "id = ?", actionID).Error; err != nil {
			log.Printf("[RecordDecision] Error fetching action %s: %v", actionID, err)
			return fmt.Errorf("failed to fetch approval action: %w", err)
		}
		if action.Status != model.ActionPending {
			return &StateConflictError{Detail: "action is already " + action.Status}
		}

		if err := tx.First(&sub, "id = ?", action.SubmissionID).Error; err != nil {
			log.Printf("[RecordDecision] Error fetching submission %s: %v", action.SubmissionID, err)
			return fmt.Errorf("failed to fetch submission: %w", err)
		}
		if sub.Status != model.SubmissionPending {
			return &StateConflictError{Detail: "submission is " + sub.Status}
		}

		delegatedFrom, trace, err := s.authorizeDecision(tx, action, actorID, sub.RequesterID)
		if err != nil {
			return err
		}

		traceJSON, err := json.Marshal(trace)
		if err != nil {
			traceJSON = []byte("{}")
		}

		now := time.Now()
		updates := map[string]interface{}{
			"status":         decision,
			"reason":         reason,
			"acted_by":       actorID,
			"acted_at":       now,
			"decision_trace": datatypes.JSON(traceJSON),
			"updated_at":     now,
		}
		if delegatedFrom != nil {
			updates["delegated_from_user_id"] = *delegatedFrom
		}

		// Conditional update predicated on the prior status: a concurrent
		// decision that won the race leaves zero rows affected here.
		res := tx.Model(&model.ApprovalAction{}).
			Where("id = ? AND status = ?", actionID, model.ActionPending).
			Updates(updates)
		if res.Error != nil {
			log.Printf("[RecordDecision] Error updating action %s: %v", actionID, res.Error)
			return fmt.Errorf("failed to update approval action: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &StateConflictError{Detail: "action was decided concurrently"}
		}

		noteType := model.CommentTypeApprovalNote
		verb := "approved"
		if decision == model.ActionRejected {
			noteType = model.CommentTypeRejectionNote
			verb = "rejected"
		}
		content := fmt.Sprintf("Step %d %s", action.StepIndex, verb)
		if strings.TrimSpace(reason) != "" {
			content = content + ": " + reason
		}
		s.appendEntry(tx, sub.ID, &action.ID, &actorID, content, noteType, false, nil)

		return s.resolveStep(tx, &sub, action.StepIndex, &created)
	})
	if err != nil {
		return nil, err
	}

	if err := s.db.First(&action, "id = ?", actionID).Error; err != nil {
		log.Printf("[RecordDecision] Error reloading action %s: %v", actionID, err)
	}
	s.indexSubmission(&sub)
	s.notifyActionsCreated(created)
	return &action, nil
}

// resolveStep runs the step evaluator over the step's current action snapshot
// and applies the outcome: advance to the next step, approve the submission,
// or reject it. Sibling pending actions on a resolved step are left untouched
// as historical record.
func (s *WorkflowService) resolveStep(tx *gorm.DB, sub *model.Submission, stepIndex int, created *[]model.ApprovalAction) error {
	step, err := stepAt(tx, sub.RequestTypeID, stepIndex)
	if err != nil {
		return err
	}
	if step == nil {
		return &ConfigurationError{StepIndex: stepIndex, Detail: "submission points past the last step"}
	}

	var siblings []model.ApprovalAction
	if err := tx.
		Where("submission_id = ? AND step_index = ?", sub.ID, stepIndex).
		Find(&siblings).Error; err != nil {
		return fmt.Errorf("failed to load step actions: %w", err)
	}

	switch EvaluateStep(step.ApprovalMode, siblings) {
	case StepStillPending:
		return nil

	case StepRejected:
		sub.Status = model.SubmissionRejected
		if err := tx.Model(sub).Update("status", model.SubmissionRejected).Error; err != nil {
			return fmt.Errorf("failed to reject submission: %w", err)
		}
		s.appendEntry(tx, sub.ID, nil, nil,
			fmt.Sprintf("Request rejected at step %d", stepIndex),
			model.CommentTypeSystem, true, nil)
		log.Printf("[resolveStep] Submission %s rejected at step %d", sub.ID, stepIndex)
		return nil

	case StepApproved:
		next, err := stepAt(tx, sub.RequestTypeID, stepIndex+1)
		if err != nil {
			return err
		}
		if next == nil {
			sub.Status = model.SubmissionApproved
			if err := tx.Model(sub).Update("status", model.SubmissionApproved).Error; err != nil {
				return fmt.Errorf("failed to approve submission: %w", err)
			}
			s.appendEntry(tx, sub.ID, nil, nil, "Request approved",
				model.CommentTypeSystem, true, nil)
			log.Printf("[resolveStep] Submission %s fully approved", sub.ID)
			return nil
		}

		sub.CurrentStepIndex = stepIndex + 1
		if err := tx.Model(sub).Update("current_step_index", sub.CurrentStepIndex).Error; err != nil {
			return fmt.Errorf("failed to advance submission: %w", err)
		}
		actions, err := s.activateStep(tx, sub, *next)
		if err != nil {
			return err
		}
		*created = append(*created, actions...)
		return nil
	}
	return nil
}

// Withdraw moves a pending submission to withdrawn. Only the requester may
// withdraw. Outstanding actions are left in place; consumers must check the
// submission status first, which RecordDecision does.
func (s *WorkflowService) Withdraw(submissionID, actorID string) error {
	var sub model.Submission

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&sub, "id = ?", submissionID).Error; err != nil {
			log.Printf("[Withdraw] Error fetching submission %s: %v", submissionID, err)
			return fmt.Errorf("failed to fetch submission: %w", err)
		}
		if sub.RequesterID != actorID {
			return &AuthorizationError{ActorID: actorID, Detail: "only the requester may withdraw a submission"}
		}

		res := tx.Model(&model.Submission{}).
			Where("id = ? AND status = ?", submissionID, model.SubmissionPending).
			Update("status", model.SubmissionWithdrawn)
		if res.Error != nil {
			return fmt.Errorf("failed to withdraw submission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &StateConflictError{Detail: "submission is " + sub.Status}
		}
		sub.Status = model.SubmissionWithdrawn

		s.appendEntry(tx, sub.ID, nil, &actorID, "Request withdrawn by requester",
			model.CommentTypeWithdrawal, false, nil)
		return nil
	})
	if err != nil {
		return err
	}

	s.indexSubmission(&sub)
	log.Printf("[Withdraw] Submission %s withdrawn by %s", submissionID, actorID)
	return nil
}

// Escalate layers an additional right to act onto an overdue pending action.
// The original approver reference stays untouched; the new actor is recorded
// on the escalation fields, mirroring how delegation grants without rewriting.
func (s *WorkflowService) Escalate(actionID, newActorID string) error {
	var action model.ApprovalAction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&action, "id = ?", actionID).Error; err != nil {
			log.Printf("[Escalate] Error fetching action %s: %v", actionID, err)
			return fmt.Errorf("failed to fetch approval action: %w", err)
		}
		if action.Status != model.ActionPending {
			return &StateConflictError{Detail: "action is already " + action.Status}
		}
		now := time.Now()
		if action.DueAt == nil || action.DueAt.After(now) {
			return &ValidationError{Detail: "action is not overdue"}
		}

		updates := map[string]interface{}{
			"is_escalated":          true,
			"escalated_at":          now,
			"escalated_to_user_id":  newActorID,
			"reminder_count":        action.ReminderCount + 1,
			"updated_at":            now,
		}
		if action.ApproverUserID != nil {
			updates["escalated_from_user_id"] = *action.ApproverUserID
		}

		res := tx.Model(&model.ApprovalAction{}).
			Where("id = ? AND status = ?", actionID, model.ActionPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to escalate action: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &StateConflictError{Detail: "action was decided concurrently"}
		}

		s.appendEntry(tx, action.SubmissionID, &action.ID, nil,
			fmt.Sprintf("Approval escalated to user %s after SLA breach", newActorID),
			model.CommentTypeEscalation, true, nil)
		return nil
	})
	if err != nil {
		return err
	}

	s.notifyEscalation(action, newActorID)
	log.Printf("[Escalate] Action %s escalated to %s", actionID, newActorID)
	return nil
}

// ListOverdueActions returns pending, not yet escalated actions whose SLA has
// lapsed. The periodic sweep feeds these into Escalate with a target actor
// chosen by its own policy.
func (s *WorkflowService) ListOverdueActions() ([]model.ApprovalAction, error) {
	var actions []model.ApprovalAction
	if err := s.db.
		Where("status = ? AND is_escalated = ? AND due_at IS NOT NULL AND due_at < ?",
			model.ActionPending, false, time.Now()).
		Find(&actions).Error; err != nil {
		log.Printf("[ListOverdueActions] Error fetching overdue actions: %v", err)
		return nil, fmt.Errorf("failed to list overdue actions: %w", err)
	}
	return actions, nil
}

// ListPendingActionsForUser assembles a user's approval inbox: actions pinned
// to them, matching their roles or position, delegated to them, or escalated
// to them, restricted to still-pending submissions.
func (s *WorkflowService) ListPendingActionsForUser(userID string) ([]map[string]interface{}, error) {
	var roleIDs []string
	if err := s.db.Model(&model.UserRole{}).
		Where("user_id = ?", userID).
		Pluck("role_id", &roleIDs).Error; err != nil {
		log.Printf("[ListPendingActionsForUser] Error fetching roles for %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch roles: %w", err)
	}

	des, err := gormOrgDirectory{db: s.db}.PrimaryDesignation(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch designation: %w", err)
	}

	delegators, err := delegatorsFor(s.db, userID)
	if err != nil {
		return nil, err
	}

	cond := s.db.Where("approver_user_id = ?", userID).
		Or("escalated_to_user_id = ?", userID)
	if len(roleIDs) > 0 {
		cond = cond.Or("approver_role_id IN ?", roleIDs)
	}
	if des != nil {
		cond = cond.Or("approver_position_id = ? AND approver_user_id IS NULL", des.PositionID)
	}
	if len(delegators) > 0 {
		cond = cond.Or("approver_user_id IN ?", delegators)
	}

	var actions []model.ApprovalAction
	if err := s.db.
		Where("status = ?", model.ActionPending).
		Where(cond).
		Order("created_at ASC").
		Find(&actions).Error; err != nil {
		log.Printf("[ListPendingActionsForUser] Error fetching actions for %s: %v", userID, err)
		return nil, fmt.Errorf("failed to fetch pending actions: %w", err)
	}

	result := make([]map[string]interface{}, 0, len(actions))
	for _, action := range actions {
		var sub model.Submission
		if err := s.db.First(&sub, "id = ?", action.SubmissionID).Error; err != nil {
			log.Printf("[ListPendingActionsForUser] Error fetching submission %s: %v", action.SubmissionID, err)
			continue
		}
		if sub.Status != model.SubmissionPending {
			continue
		}
		result = append(result, map[string]interface{}{
			"action_id":     action.ID,
			"submission_id": sub.ID,
			"requester_id":  sub.RequesterID,
			"step_index":    action.StepIndex,
			"approver_kind": action.ApproverKind,
			"due_at":        action.DueAt,
			"is_escalated":  action.IsEscalated,
			"created_at":    action.CreatedAt,
		})
	}
	return result, nil
}

// GetSubmission returns a submission with its actions and the comments the
// viewer is allowed to see.
func (s *WorkflowService) GetSubmission(submissionID, viewerID string) (map[string]interface{}, error) {
	var sub model.Submission
	if err := s.db.First(&sub, "id = ?", submissionID).Error; err != nil {
		log.Printf("[GetSubmission] Error fetching submission %s: %v", submissionID, err)
		return nil, fmt.Errorf("failed to fetch submission: %w", err)
	}

	var actions []model.ApprovalAction
	if err := s.db.
		Where("submission_id = ?", submissionID).
		Order("step_index ASC, created_at ASC").
		Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch actions: %w", err)
	}

	comments, err := s.ListComments(submissionID, viewerID)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":                 sub.ID,
		"request_type_id":    sub.RequestTypeID,
		"requester_id":       sub.RequesterID,
		"status":             sub.Status,
		"current_step_index": sub.CurrentStepIndex,
		"created_at":         sub.CreatedAt,
		"updated_at":         sub.UpdatedAt,
		"actions":            actions,
		"comments":           comments,
	}, nil
}
